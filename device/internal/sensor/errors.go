package sensor

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownModel is returned when a slot names a model no driver
	// is registered for.
	ErrUnknownModel = errors.New("sensor: unknown model")

	// ErrInvalidPins is returned when a pin list has the wrong arity or
	// cannot be parsed.
	ErrInvalidPins = errors.New("sensor: invalid pin assignment")

	// ErrUnavailable marks transient device faults: bus errors, missing
	// acknowledgements, timeouts, bad checksums. The engine answers them
	// with a CPU-derived estimate. Any other read error is treated as a
	// defect.
	ErrUnavailable = errors.New("sensor: device unavailable")

	errReadInFlight = errors.New("previous read still running")
)

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// IsUnavailable reports whether err is a transient device fault.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
