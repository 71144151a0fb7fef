package sensor

import (
	"encoding/json"
	"math"
	"strconv"

	"labmonitor/device/internal/sensor/calib"
)

// Placeholder is rendered for quantities a reading does not carry.
const Placeholder = "--"

// Metric is a formatted numeric quantity that may be absent.
type Metric struct {
	Value    float64
	Valid    bool
	Decimals int
}

// Tenths rounds v to one decimal place.
func Tenths(v float64) Metric {
	return Metric{Value: calib.Round1(v), Valid: true, Decimals: 1}
}

// Whole truncates v towards zero.
func Whole(v float64) Metric {
	return Metric{Value: math.Trunc(v), Valid: true}
}

func tenthsOf(v *float64) Metric {
	if v == nil {
		return Metric{}
	}
	return Tenths(*v)
}

func wholeOf(v *float64) Metric {
	if v == nil {
		return Metric{}
	}
	return Whole(*v)
}

func (m Metric) String() string {
	if !m.Valid || math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return Placeholder
	}
	return strconv.FormatFloat(m.Value, 'f', m.Decimals, 64)
}

// MarshalJSON encodes the metric as its string form so that consumers see
// the placeholder and numbers in one field type.
func (m Metric) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}
