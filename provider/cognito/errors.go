package cognito

import (
	"errors"
	"fmt"
	"strings"

	goLogin "github.com/MrEthical07/goLogin"
)

// ErrNoSession is returned when an operation needs a signed-in user.
var ErrNoSession = errors.New("cognito: no session")

// APIError is an error document returned by the user-pool API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cognito: %s (status %d)", e.Type, e.StatusCode)
	}
	return fmt.Sprintf("cognito: %s: %s", e.Type, e.Message)
}

var exceptionKinds = map[string]goLogin.Kind{
	"UsernameExistsException":        goLogin.KindAlreadyExists,
	"AliasExistsException":           goLogin.KindAlreadyExists,
	"InvalidPasswordException":       goLogin.KindInvalidPassword,
	"InvalidParameterException":      goLogin.KindInvalidParameter,
	"CodeMismatchException":          goLogin.KindInvalidCode,
	"ExpiredCodeException":           goLogin.KindCodeExpired,
	"NotAuthorizedException":         goLogin.KindInvalidCredentials,
	"UserNotConfirmedException":      goLogin.KindUserNotConfirmed,
	"UserNotFoundException":          goLogin.KindUserNotFound,
	"TooManyRequestsException":       goLogin.KindTooManyRequests,
	"TooManyFailedAttemptsException": goLogin.KindTooManyRequests,
	"LimitExceededException":         goLogin.KindTooManyRequests,
	"CodeDeliveryFailureException":   goLogin.KindNetwork,
}

// ClassifyError maps Cognito exceptions onto goLogin kinds.
func (c *Client) ClassifyError(err error) (goLogin.Kind, string, bool) {
	if errors.Is(err, ErrNoSession) {
		return goLogin.KindInvalidCredentials, err.Error(), true
	}
	var ae *APIError
	if !errors.As(err, &ae) {
		return goLogin.KindUnknown, "", false
	}
	kind, ok := exceptionKinds[ae.Type]
	if !ok {
		if ae.StatusCode >= 500 {
			return goLogin.KindNetwork, ae.Error(), true
		}
		return goLogin.KindUnknown, ae.Message, ae.Message != ""
	}
	return kind, ae.Message, true
}

// exceptionName strips the namespace some endpoints put in front of the type,
// e.g. "com.amazon.cognito...#CodeMismatchException".
func exceptionName(t string) string {
	if i := strings.LastIndex(t, "#"); i >= 0 {
		t = t[i+1:]
	}
	if i := strings.Index(t, ":"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}
