package cognito

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Config holds the app client settings of a user pool.
type Config struct {
	// Region is the AWS region of the pool (e.g. "eu-west-1").
	Region string

	// ClientID is the app client ID.
	ClientID string

	// ClientSecret is set for app clients created with a secret. Requests
	// then carry a SECRET_HASH.
	ClientSecret string

	// Endpoint overrides the regional endpoint (local emulators, tests).
	Endpoint string

	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client

	// RequestsPerSecond paces outgoing calls. Zero disables pacing.
	RequestsPerSecond float64
	// Burst is the pacing burst; defaults to 1.
	Burst int

	// Now overrides the clock used for token expiry.
	Now func() time.Time
}

func (c Config) endpoint() string {
	if ep := strings.TrimSpace(c.Endpoint); ep != "" {
		return ep
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", strings.TrimSpace(c.Region))
}

func (c Config) validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New("cognito: client id is required")
	}
	if strings.TrimSpace(c.Endpoint) == "" && strings.TrimSpace(c.Region) == "" {
		return errors.New("cognito: region or endpoint is required")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("cognito: requests per second must be >= 0")
	}
	return nil
}
