package goLogin

import (
	"context"
	"time"
)

// Session is the process-wide authentication state shown by front-ends.
// DisplayName is non-empty only when Authenticated is true.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	DisplayName   string `json:"display_name,omitempty"`
}

// StoredCredential is the single "remember me" record used to pre-fill the
// sign-in form, as returned by Engine.RememberedCredential.
type StoredCredential struct {
	Username string
	Password string
	SavedAt  time.Time
}

// DeliveryInfo describes where the provider sent a confirmation code.
type DeliveryInfo struct {
	Destination string `json:"destination,omitempty"`
	Medium      string `json:"medium,omitempty"`
	Attribute   string `json:"attribute,omitempty"`
}

// SignUpRequest carries the fields of a new registration.
type SignUpRequest struct {
	Email    string
	Username string
	Password string
}

// SignInResult reports the provider's answer to a password sign-in.
// Complete is false when the provider wants another challenge step
// (MFA, forced password change); NextStep names it when known.
type SignInResult struct {
	Complete bool
	NextStep string
}

// IdentityProvider is the managed identity service behind the gateway.
// Implementations return their own errors; the gateway normalizes them.
type IdentityProvider interface {
	SignUp(ctx context.Context, req SignUpRequest) error
	ConfirmSignUp(ctx context.Context, username, code string) error
	SignIn(ctx context.Context, username, password string) (SignInResult, error)
	ResendSignUpCode(ctx context.Context, username string) (DeliveryInfo, error)
	ResetPassword(ctx context.Context, username string) (DeliveryInfo, error)
	ConfirmResetPassword(ctx context.Context, username, newPassword, code string) error
	FetchSession(ctx context.Context) (bool, error)
	CurrentUser(ctx context.Context) (string, error)
	SignOut(ctx context.Context) error
}

// ErrorClassifier is implemented by providers that can map their own errors
// onto a Kind. ok is false when err is not recognized.
type ErrorClassifier interface {
	ClassifyError(err error) (kind Kind, detail string, ok bool)
}

// Step is the position of a flow controller in its journey.
type Step uint8

const (
	// StepEntry is the sign-up form and the sign-in form.
	StepEntry Step = iota
	StepAwaitingConfirmation
	StepRequestCode
	StepAwaitingReset
	StepCompleted
	// StepClosed is reported after Close.
	StepClosed
)

var stepNames = [...]string{
	StepEntry:                "entry",
	StepAwaitingConfirmation: "awaiting_confirmation",
	StepRequestCode:          "request_code",
	StepAwaitingReset:        "awaiting_reset",
	StepCompleted:            "completed",
	StepClosed:               "closed",
}

func (s Step) String() string {
	if int(s) >= len(stepNames) {
		return "invalid"
	}
	return stepNames[s]
}

// MarshalText encodes s by name.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FlowState is a snapshot of a flow controller. Controllers own the live
// value; callers only ever see copies.
type FlowState struct {
	Step            Step   `json:"step"`
	Loading         bool   `json:"loading"`
	ErrorKind       Kind   `json:"error_kind,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	ResendCountdown int    `json:"resend_countdown"`
	ResendAvailable bool   `json:"resend_available"`
	// Confirmed is set once the provider accepted the code; the remaining
	// work is the follow-up sign-in.
	Confirmed bool `json:"confirmed,omitempty"`
	// Username is the identifier the flow is working with.
	Username string `json:"username,omitempty"`
}

// HasError reports whether an error message is pending dismissal.
func (s FlowState) HasError() bool {
	return s.ErrorMessage != ""
}
