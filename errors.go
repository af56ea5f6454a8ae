package goLogin

import (
	"errors"
	"strings"
)

// Kind classifies an authentication failure independent of the provider that
// produced it.
type Kind uint8

const (
	// KindUnknown covers any failure the gateway could not classify. The
	// provider detail is kept on the Error.
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindUserNotConfirmed
	KindUserNotFound
	KindInvalidCode
	KindCodeExpired
	KindAlreadyExists
	KindInvalidPassword
	KindInvalidParameter
	// KindPasswordMismatch is detected locally and never reaches the gateway.
	KindPasswordMismatch
	KindNetwork
	KindTooManyRequests
	KindSignInIncomplete
	KindSignInAfterConfirmFailed
	KindSignInAfterResetFailed
	kindCount
)

var kindNames = [kindCount]string{
	KindUnknown:                  "unknown",
	KindInvalidCredentials:       "invalid_credentials",
	KindUserNotConfirmed:         "user_not_confirmed",
	KindUserNotFound:             "user_not_found",
	KindInvalidCode:              "invalid_code",
	KindCodeExpired:              "code_expired",
	KindAlreadyExists:            "already_exists",
	KindInvalidPassword:          "invalid_password",
	KindInvalidParameter:         "invalid_parameter",
	KindPasswordMismatch:         "password_mismatch",
	KindNetwork:                  "network",
	KindTooManyRequests:          "too_many_requests",
	KindSignInIncomplete:         "sign_in_incomplete",
	KindSignInAfterConfirmFailed: "sign_in_after_confirm_failed",
	KindSignInAfterResetFailed:   "sign_in_after_reset_failed",
}

// User-visible messages. The three sign-in related strings are the exact
// texts the login screens have always shown.
var kindMessages = [kindCount]string{
	KindUnknown:                  "Something went wrong. Please try again.",
	KindInvalidCredentials:       "Incorrect username or password.",
	KindUserNotConfirmed:         "Please verify your email before signing in.",
	KindUserNotFound:             "No account was found for that email.",
	KindInvalidCode:              "The verification code is incorrect.",
	KindCodeExpired:              "The verification code has expired. Request a new one.",
	KindAlreadyExists:            "An account with this email already exists.",
	KindInvalidPassword:          "Password does not meet the requirements.",
	KindInvalidParameter:         "Some of the details entered are not valid.",
	KindPasswordMismatch:         "Passwords do not match",
	KindNetwork:                  "Unable to reach the server. Check your connection.",
	KindTooManyRequests:          "Too many attempts. Please wait and try again.",
	KindSignInIncomplete:         "Sign in not completed.",
	KindSignInAfterConfirmFailed: "Sign-in failed",
	KindSignInAfterResetFailed:   "Sign-in failed",
}

// String returns the stable snake_case name of k.
func (k Kind) String() string {
	if k >= kindCount {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// MarshalText encodes k by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Message returns the human-readable text shown for k.
func (k Kind) Message() string {
	if k >= kindCount {
		return kindMessages[KindUnknown]
	}
	return kindMessages[k]
}

// Error is the normalized failure returned by the gateway and the flow
// controllers. Two Errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("goLogin: ")
	b.WriteString(e.Kind.String())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Message returns the text a front-end should display for e. Unknown
// failures show the provider detail when there is one.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	if e.Kind == KindUnknown && e.Detail != "" {
		return e.Detail
	}
	return e.Kind.Message()
}

func newError(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

// KindOf returns the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the user-visible message for err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Message()
	}
	return KindUnknown.Message()
}

var (
	ErrInvalidCredentials       = &Error{Kind: KindInvalidCredentials}
	ErrUserNotConfirmed         = &Error{Kind: KindUserNotConfirmed}
	ErrUserNotFound             = &Error{Kind: KindUserNotFound}
	ErrInvalidCode              = &Error{Kind: KindInvalidCode}
	ErrCodeExpired              = &Error{Kind: KindCodeExpired}
	ErrAlreadyExists            = &Error{Kind: KindAlreadyExists}
	ErrInvalidPassword          = &Error{Kind: KindInvalidPassword}
	ErrInvalidParameter         = &Error{Kind: KindInvalidParameter}
	ErrPasswordMismatch         = &Error{Kind: KindPasswordMismatch}
	ErrNetwork                  = &Error{Kind: KindNetwork}
	ErrTooManyRequests          = &Error{Kind: KindTooManyRequests}
	ErrSignInIncomplete         = &Error{Kind: KindSignInIncomplete}
	ErrSignInAfterConfirmFailed = &Error{Kind: KindSignInAfterConfirmFailed}
	ErrSignInAfterResetFailed   = &Error{Kind: KindSignInAfterResetFailed}
	ErrUnknown                  = &Error{Kind: KindUnknown}
)

// Controller errors. They are returned to the caller and never written into
// FlowState.
var (
	// ErrBusy is returned when an action is submitted while another one is in flight.
	ErrBusy = errors.New("flow busy")
	// ErrFlowClosed is returned by every operation after Close.
	ErrFlowClosed = errors.New("flow closed")
	// ErrInvalidStep is returned when an action does not apply to the current step.
	ErrInvalidStep = errors.New("action not valid for current step")
	// ErrResendCooldown is returned when a resend is requested before the countdown elapsed.
	ErrResendCooldown = errors.New("resend not available yet")
	// ErrEngineNotReady is returned by a zero or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
