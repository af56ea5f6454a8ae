// Package middleware holds the HTTP middleware of the JSON front-end:
// request tagging, request logging, panic recovery and per-client throttling.
//
// # Architecture boundaries
//
// This package translates HTTP requests into the context values goLogin
// copies into audit events and logs. It does NOT drive flows itself; all
// auth decisions are made by the flow controllers behind httpapi.
//
// # What this package must NOT do
//
//   - Read request bodies (they may carry passwords and codes).
//   - Hold per-flow state.
package middleware
