package loadtest

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned before any load is generated when a
	// scenario or sustained run is given parameters it cannot honour.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrPreflight is returned when the target fails its health check.
	ErrPreflight = errors.New("preflight check failed")

	// ErrAlreadyRunning is returned when a Runner is asked to start a
	// scenario while another one is in progress.
	ErrAlreadyRunning = errors.New("scenario already running")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
