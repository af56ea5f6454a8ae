// Package internal contains helpers private to goLogin.
//
// # Sub-packages
//
//   - countdown — the resend cooldown timer driven by an injectable ticker
//   - fakeidp — an in-memory identity provider for offline runs and tests
//   - appconfig — environment and .env loading for the command
//   - shell — the terminal front-end
package internal
