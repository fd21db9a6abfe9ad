// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Parse-time conditions are carried on the parse result,
// configuration problems are returned as Go errors.
var (
	// Parse outcome errors
	ErrNoMatch            = errors.New("parsim: no tcam row matched")
	ErrLoopBudgetExceeded = errors.New("parsim: parse iteration budget exceeded")
	ErrOutOfBoundsRead    = errors.New("parsim: read past end of packet")

	// Configuration errors
	ErrConfigInvalid = errors.New("parsim: invalid configuration")
	ErrRowIndex      = errors.New("parsim: row index out of range")
	ErrNoConfig      = errors.New("parsim: parser instance has no configuration")

	// Runtime errors
	ErrUnknownInstance = errors.New("parsim: unknown parser instance")
	ErrSourceClosed    = errors.New("parsim: packet source closed")
	ErrRunnerStopped   = errors.New("parsim: runner stopped")
)
