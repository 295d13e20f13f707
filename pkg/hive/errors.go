package hive

import "errors"

var (
	// ErrInvalidNumThreads is returned by Builder.Build when NumThreads < 1.
	ErrInvalidNumThreads = errors.New("hive: num_threads must be >= 1")

	// ErrHiveFatal is returned by submission operations once a Fatal
	// ApplyError has been observed: a Fatal outcome halts the hive.
	ErrHiveFatal = errors.New("hive: hive halted after fatal task error")

	// ErrShuttingDown is returned by submission operations after Shutdown
	// has been called.
	ErrShuttingDown = errors.New("hive: hive is shutting down")
)
