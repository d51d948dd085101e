// Package roster tracks which musicians are currently playing.
//
// Musicians announce themselves repeatedly over an unreliable channel. The
// Tracker upserts each announcement keyed by musician id, stamping it with
// the local arrival time, and Snapshot evicts whoever has been silent for
// longer than liveness.Window before reporting the rest.
//
// Tracker is safe for concurrent use by one or more announcement readers and
// any number of query handlers.
package roster
