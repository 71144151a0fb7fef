package settings

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
)

// Validate reports every problem in s joined into one error.
func (s Settings) Validate() error {
	return errors.Join(append(s.SlotErrors(), s.ValidateGeneral())...)
}

// SlotErrors reports the problems confined to single slots: an unknown
// model or an unusable pin list. Each one disables only its slot.
func (s Settings) SlotErrors() []error {
	var errs []error
	for i, sl := range s.Slots {
		n := i + 1
		if sl.Model != "" && !slices.Contains(Models, sl.Model) {
			errs = append(errs, invalid("%s %q is not one of %v", slotKey(n, "name"), sl.Model, Models))
		}
		if sl.BadPins != "" {
			errs = append(errs, invalid("%s %q is not a pin list", slotKey(n, "pins"), sl.BadPins))
			continue
		}
		switch len(sl.Pins) {
		case 0, 2, 4:
		default:
			errs = append(errs, invalid("%s needs 2 (I2C) or 4 (SPI) pins, got %d", slotKey(n, "pins"), len(sl.Pins)))
		}
	}
	return errs
}

// ValidateGeneral checks everything outside the slots.
func (s Settings) ValidateGeneral() error {
	var errs []error
	if s.DeviceName == "" {
		errs = append(errs, invalid("%s is empty", KeyDeviceName))
	}
	if s.AcquisitionInterval < MinInterval {
		errs = append(errs, invalid("%s must be at least %v, got %v", KeyInterval, MinInterval, s.AcquisitionInterval))
	}
	if s.MQTTBroker != "" && (s.MQTTPort < 1 || s.MQTTPort > 65535) {
		errs = append(errs, invalid("%s %d out of range", KeyMQTTPort, s.MQTTPort))
	}
	if s.SubmitEnabled {
		u, err := url.Parse(s.SubmitURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, invalid("%s %q is not an http(s) URL", KeySubmitURL, s.SubmitURL))
		}
	}
	return errors.Join(errs...)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}
