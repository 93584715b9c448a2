// Package gemini implements natural language event parsing with Google's
// Gemini API.
//
// The Parser builds its API client lazily on first use, so a missing API
// key never prevents the service from starting. Status reports whether
// the client has been built and whether building it failed.
//
// Calls are retried with exponential backoff and jitter when the API
// reports a transient failure. Blocked or malformed responses are
// returned immediately.
package gemini
