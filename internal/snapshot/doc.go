// Package snapshot implements the pull side of the service: one load of the
// backing store per call, returned whole.
package snapshot
