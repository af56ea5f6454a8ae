// Package httpapi exposes the goLogin flow controllers as a JSON API.
//
// Each flow is created with POST /v1/flows/{kind} and driven with
// POST /v1/flows/{id}/{action}. Failures the user should see are part of the
// flow state and come back with 200; only controller errors (busy, closed,
// wrong step) map to non-2xx statuses. Passwords and codes are accepted in
// request bodies and never echoed.
package httpapi
