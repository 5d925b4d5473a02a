// Package models defines the domain entities of the vinyl player.
//
// The package contains three groups of types:
//
// 1. Playback values read from the provider, never persisted:
//   - [PlaybackSnapshot] : what is playing, where, and in which context at one instant
//   - [Track], [Device], [Playlist], [Queue], [Account]
//
// 2. Player policy:
//   - [AllowedContext] : the single playlist in which playback is enforced
//   - [TransitionIntent] : the one corrective action currently shown to the listener
//
// 3. Persistent entities:
//   - [Note] : a listener annotation on a track, with its [Reactions] tally
//
// Persistent entities implement [Model]; stores implement [Repository].
package models
