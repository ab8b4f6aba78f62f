// Package nep is a client for the NEP metered-utility API.
//
// Client posts to the account endpoint to discover premise ids and to the
// usage endpoint to query per-service usage history. Every request carries a
// bearer token and is bounded by a fixed timeout; timeouts, transport errors
// and non-2xx responses all surface as *HTTPError.
//
// ExtractLatest turns a usage response into the most recent reading and never
// fails; malformed responses yield 0 and a logged warning.
package nep
