package calib

// Rothfusz regression coefficients (°F, %RH).
const (
	hiC1 = -42.379
	hiC2 = 2.04901523
	hiC3 = 10.14333127
	hiC4 = -0.22475541
	hiC5 = -0.00683783
	hiC6 = -0.05481717
	hiC7 = 0.00122874
	hiC8 = 0.00085282
	hiC9 = -0.00000199
)

// RothfuszThresholdF is the Fahrenheit temperature at and above which the
// full regression is used instead of the simple Steadman approximation.
const RothfuszThresholdF = 80.0

// HeatIndex returns the apparent temperature in °C, rounded to one decimal,
// for an air temperature tC (°C) and relative humidity rh (%).
func HeatIndex(tC, rh float64) float64 {
	hi := heatIndexF(tC*9/5+32, rh)
	return Round1((hi - 32) * 5 / 9)
}

func heatIndexF(tf, rh float64) float64 {
	if tf >= RothfuszThresholdF {
		return hiC1 +
			hiC2*tf +
			hiC3*rh +
			hiC4*tf*rh +
			hiC5*tf*tf +
			hiC6*rh*rh +
			hiC7*tf*tf*rh +
			hiC8*tf*rh*rh +
			hiC9*tf*tf*rh*rh
	}
	return 0.5 * (tf + 61.0 + (tf-68.0)*1.2 + rh*0.094)
}
