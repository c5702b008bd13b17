// Package model defines the robot status record shared across the service.
//
// Records come from the backing store in a loosely-typed raw form with
// human-readable keys ("Robot ID", "Last Updated", ...). Normalize turns one
// raw entry into a Record; Record.Wire produces the public JSON shape.
//
// Conventions:
//   - Raw timestamps: "2006-01-02 15:04:05", no zone, read as UTC
//   - Wire timestamps: ISO 8601 "2006-01-02T15:04:05"
//   - Battery and CPU are percentages (0-100), RAM unit is unspecified; none are range-checked
package model
