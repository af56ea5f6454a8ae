// Package credential persists the single "remember me" record used to
// pre-fill the sign-in form.
//
// # Storage
//
// A [Cache] encodes the record, optionally seals it with a [Sealer], and
// hands the bytes to a [Backend] under one fixed service key. Backends exist
// for process memory, a local file and Redis.
//
// # Encoding
//
// Records are a one-byte schema version followed by a compact JSON object.
// Unknown versions are rejected on read and treated as absent by the cache.
//
// # What this package must NOT do
//
//   - Import goLogin (no upward imports).
//   - Log or return the stored password in error strings.
package credential
