package service

import "github.com/cockroachdb/errors"

var (
	// ErrUnknownThread is returned for a thread that was never registered
	// with this reclaimer or has already left.
	ErrUnknownThread = errors.New("service: unknown thread")

	// ErrScan wraps scanner failures. Nothing is released in a cycle that
	// returns it.
	ErrScan = errors.New("service: scan failed")
)
