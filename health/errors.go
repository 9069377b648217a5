package health

import "errors"

var (
	// ErrCheckFailed indicates a check found the component broken.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a check did not finish in time.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates no checker is registered under a name.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrProbeMismatch indicates the store returned something other than
	// the probe entry just written.
	ErrProbeMismatch = errors.New("health: probe entry mismatch")
)
