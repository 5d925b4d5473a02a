// Package ui implements the turntable player as a bubbletea program.
//
// The [Model] renders what the reconciliation loop reports: a connect prompt while
// unauthenticated, device instructions until a device is found, and then the turntable with
// the current track, its neighbours in the queue, and any transition banner. A side panel
// lists the notes on the current track; notes can be added and reacted to in place.
//
// Loop state arrives as [tasks.ProgressUpdate] values on a channel. Commands go back through
// the [Player] interface, and the next update shows their effect.
package ui
