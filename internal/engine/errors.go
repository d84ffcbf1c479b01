package engine

import "errors"

// ErrInvalidCommand marks caller mistakes: unknown planet or resource
// names, unusable amounts. The command is reported back and ignored; no
// simulation state changes.
var ErrInvalidCommand = errors.New("invalid command")

// ErrOutOfRange marks non-positive day counts, speeds, and intervals.
// Rejected before any state change.
var ErrOutOfRange = errors.New("parameter out of range")
