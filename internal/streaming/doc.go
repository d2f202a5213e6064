// Package streaming writes Server-Sent Events responses.
//
// An [EventWriter] sets the event stream headers, frames each message as
//
//	event: <name>
//	data: <line>
//
// and flushes it immediately. Each write runs under a write deadline set
// through [http.ResponseController], so a client that stops reading fails
// the write instead of blocking the handler. Flush and deadline calls reach
// the connection through middleware wrappers that implement Unwrap.
package streaming
