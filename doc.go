// Package goLogin drives the sign-up, email verification, sign-in and
// password-reset journeys of a login app against a managed identity provider.
//
// An [Engine] built with [Builder.Build] owns one process-wide [SessionState],
// the identity [Gateway] and the "remember me" credential cache. Each journey
// is a flow controller ([SignUpFlow], [SignInFlow], [ResetFlow]) that a
// front-end creates, drives with blocking Submit calls and observes through
// [FlowState] snapshots. Controller methods are safe to call from multiple
// goroutines; a second submission while one is in flight returns [ErrBusy].
//
// # Architecture boundaries
//
// goLogin is the public surface. It exposes [Engine], [Builder], [Config],
// the controllers and value types. Provider wire formats live in
// provider/cognito, credential storage in credential, and front-ends in
// httpapi and internal/shell.
//
// # What this package must NOT do
//
//   - Log or audit passwords, codes or tokens.
//   - Write to stdout or stderr; logging goes through the injected slog.Logger.
//   - Surface a remote sign-out failure to the user.
//   - Import any sub-package that re-imports goLogin (no import cycles).
package goLogin
