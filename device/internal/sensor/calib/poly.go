// Package calib holds the pure numeric functions applied to sensor
// readings: temperature correction polynomials, heat index and the
// gas-resistance air quality index.
package calib

import "math"

// Poly2 is a second-degree polynomial in measured temperature (t) and
// relative humidity (h):
//
//	Intercept + T*t + H*h + T2*t² + TH*t*h + H2*h²
type Poly2 struct {
	Intercept float64
	T         float64
	H         float64
	T2        float64
	TH        float64
	H2        float64
}

// Eval returns the corrected temperature for a measured temperature t (°C)
// and relative humidity h (%).
func (p Poly2) Eval(t, h float64) float64 {
	return p.Intercept +
		p.T*t +
		p.H*h +
		p.T2*t*t +
		p.TH*t*h +
		p.H2*h*h
}

// Coefficients fitted offline against a reference thermometer.
var (
	BME280Poly = Poly2{
		Intercept: -22.378940,
		T:         3.497112,
		H:         -0.267584,
		T2:        -0.060241,
		TH:        0.000282,
		H2:        0.003162,
	}

	BME680Poly = Poly2{
		Intercept: -27.800990,
		T:         2.686044,
		H:         0.577078,
		T2:        -0.026907,
		TH:        -0.018497,
		H2:        -0.003123,
	}
)

// Identity returns the measured temperature unchanged. Models without a
// fitted polynomial use it as their correction.
func Identity(t, _ float64) float64 { return t }

// Round1 rounds v to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
