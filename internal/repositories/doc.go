// Package repositories implements SQLite persistence for listener notes.
//
// [NoteRepository] stores notes with atomic sequence generation and soft deletes via
// deleted_at timestamps; deleted notes are excluded from every query. Reactions live in
// their own table, one row per (note, emoji, user), and are folded into a [models.Reactions]
// tally on read. Toggling goes through [models.Reactions.Toggle] inside a transaction so the
// stored rows always follow the same rule as the in-memory map.
package repositories
