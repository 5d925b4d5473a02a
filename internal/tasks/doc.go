// Package tasks runs the client-side work against the vinyl facade.
//
// # Reconciliation
//
// [Reconciler] is a small state machine:
//
//	Unauthenticated → AwaitingDevice → Idle ⇄ Reconciling
//	                                    ↓ ↑
//	                                   Error
//
// It polls the current playback on an interval, never more often than the configured minimum,
// and feeds every snapshot through [Reconciler.Apply]. When the track changes to one outside
// the allowed playlist, a premium session gets a single corrective play command while any
// other session only gets an advisory [models.TransitionIntent].
//
// # Progress Reporting
//
// [Reconciler.Run] and [BulkExport] report through a [ProgressUpdate] channel. Sends never
// block; loop updates carry a [View] copy in Data.
//
// # Bulk Export
//
// [BulkExport] fetches the notes of many tracks with a rate limiter and writes them with a
// worker pool, one file per track plus a manifest.
package tasks
