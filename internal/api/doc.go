// Package api is the client for the disaster REST API.
//
// Every data endpoint answers with an envelope
//
//	{"success": true, "data": ..., "count": 3, "last_updated": "..."}
//
// [Client] unwraps it, validates the payload and returns typed values. Any
// failure is a [*FetchError]; use errors.Is with [ErrNetwork] or [ErrAPI] to
// tell transport problems from server-side ones. [Client.ProbeHealth] is the
// exception: it reports a bool and never fails.
package api
