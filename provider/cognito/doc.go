// Package cognito implements goLogin.IdentityProvider against an Amazon
// Cognito user pool, speaking the user-pool JSON 1.1 API over HTTP.
//
// The client keeps the pool session (ID, access and refresh tokens) in
// memory. Token claims are read without signature verification: the tokens
// come straight from the provider over TLS and are only used to learn the
// username and expiry, never to authorize anything.
package cognito
