// Package store reads robot status records from the flat-file backing store.
//
// The store is a JSON array of raw entries (see model.RawKeys). It is
// opened, read fully and closed on every Load; nothing is cached, so edits
// to the file show up on the next read.
//
// Loads are all-or-nothing: one bad entry rejects the whole file.
package store
