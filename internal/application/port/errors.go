package port

import "errors"

var (
	// ErrSourceUnavailable is reported when device enumeration fails.
	ErrSourceUnavailable = errors.New("device source unavailable")

	// ErrDeviceQuery is reported when a single device cannot be queried.
	ErrDeviceQuery = errors.New("device query failed")

	// ErrSinkInitialization is fatal: the collector cannot start.
	ErrSinkInitialization = errors.New("sink initialization failed")

	// ErrSinkWrite is returned from a cycle whose batch was not persisted.
	ErrSinkWrite = errors.New("sink write failed")
)
