// Package indexer turns a directory tree into asset records without starving
// the host of CPU or disk bandwidth.
//
// A session runs in two phases. The scan phase walks the tree and collects
// candidates (see package scanner). The index phase stats and fingerprints
// the candidates in small batches with a fixed delay between batches:
//
//	defaults: 5 candidates per batch, 50ms between batches, 500ms pause poll
//
// The Controller is an actor. Commands (Start, Pause, Resume, Cancel) go in
// through Send, events (Ready, Progress, Paused, Cancelled, Completed, Error)
// come out of Events. Both are closed sets and marshal to tagged JSON:
//
//	{"type":"progress","status":"indexing","total":4,"indexed":4,"currentFile":"/media/clip.mp4"}
//
// Pause and cancel are cooperative. A Token is checked on entry to every
// directory during the scan and before every batch during indexing; a file
// that is being hashed is never interrupted. Cancellation keeps the records
// of finished batches and reports them in the Cancelled event.
//
// Only one session runs at a time. A Start received while a session is
// active is answered with an Error event and does not disturb the session.
//
// Hub fans the event stream out to the catalog writer, SSE clients and
// anything else that wants to observe sessions.
package indexer
