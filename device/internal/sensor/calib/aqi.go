package calib

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned when an index cannot be computed from the
// given inputs or parameters.
var ErrInvalidInput = errors.New("calib: invalid input")

// AQIParams configures the gas-resistance air quality index. The score is
// split between a gas sub-score (GasShare of ScoreMax) and a humidity
// sub-score (the rest). Resistances are device-specific and should be
// measured on the hardware in use.
type AQIParams struct {
	ScoreMax float64
	GasShare float64

	// SaturationOhm is the resistance of a saturated (worst case) sensor.
	SaturationOhm float64
	// BaselineOhm is the resistance measured in clean air.
	BaselineOhm float64

	HumidityOptimum float64
	HumidityRange   float64
}

// DefaultAQIParams scores on 0..100, higher meaning worse air.
var DefaultAQIParams = AQIParams{
	ScoreMax:        100,
	GasShare:        0.75,
	SaturationOhm:   750,
	BaselineOhm:     80000,
	HumidityOptimum: 40,
	HumidityRange:   60,
}

// Validate reports whether the parameters yield a well-defined index.
func (p AQIParams) Validate() error {
	switch {
	case p.ScoreMax <= 0:
		return fmt.Errorf("%w: score max must be positive, got %v", ErrInvalidInput, p.ScoreMax)
	case p.GasShare < 0 || p.GasShare > 1:
		return fmt.Errorf("%w: gas share must be within [0,1], got %v", ErrInvalidInput, p.GasShare)
	case p.SaturationOhm <= 0:
		return fmt.Errorf("%w: saturation resistance must be positive, got %v", ErrInvalidInput, p.SaturationOhm)
	case p.BaselineOhm <= p.SaturationOhm:
		return fmt.Errorf("%w: baseline resistance %v must exceed saturation %v", ErrInvalidInput, p.BaselineOhm, p.SaturationOhm)
	case p.HumidityRange <= 0:
		return fmt.Errorf("%w: humidity range must be positive, got %v", ErrInvalidInput, p.HumidityRange)
	}
	return nil
}

// AirQualityIndex combines a logarithmic gas-resistance sub-score and a
// humidity deviation sub-score and inverts the sum onto [0, ScoreMax].
// Resistances beyond the saturation/baseline interval are clamped to it.
func AirQualityIndex(rh, gasOhm float64, p AQIParams) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if gasOhm <= 0 || math.IsNaN(gasOhm) {
		return 0, fmt.Errorf("%w: gas resistance must be positive, got %v", ErrInvalidInput, gasOhm)
	}

	gasMax := p.GasShare * p.ScoreMax
	r := clamp(gasOhm, p.SaturationOhm, p.BaselineOhm)
	sg := gasMax * (math.Log10(r) - math.Log10(p.SaturationOhm)) /
		(math.Log10(p.BaselineOhm) - math.Log10(p.SaturationOhm))

	humMax := p.ScoreMax - gasMax
	sh := humMax * (1 - math.Abs(rh-p.HumidityOptimum)/p.HumidityRange)
	sh = clamp(sh, 0, humMax)

	return clamp(p.ScoreMax-(sg+sh), 0, p.ScoreMax), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
