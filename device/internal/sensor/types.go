package sensor

import (
	"strconv"
	"strings"
)

// Model names a supported sensor part. Values match the names used in the
// settings file.
type Model string

const (
	ModelBME280      Model = "BME280"
	ModelBMP280      Model = "BMP280"
	ModelBME680      Model = "BME680"
	ModelMCP9808     Model = "MCP9808"
	ModelMAX31865    Model = "MAX31865"
	ModelAHT21       Model = "AHT21"
	ModelENS160AHT21 Model = "ENS160_AHT21"
)

// Models lists every model in the order offered to operators.
var Models = []Model{
	ModelAHT21,
	ModelMCP9808,
	ModelMAX31865,
	ModelBME280,
	ModelBMP280,
	ModelBME680,
	ModelENS160AHT21,
}

// SourceType records where a reading's temperature came from.
type SourceType string

const (
	SourceSensor      SourceType = "sensor"
	SourceCPURaw      SourceType = "cpu-raw"
	SourceCPUAdjusted SourceType = "cpu-adjusted"
)

// SlotConfig describes one physical sensor position. Pins are [SCL, SDA]
// for I2C parts and [CLK, MOSI, MISO, CS] for SPI parts; an empty list
// selects the platform default bus.
type SlotConfig struct {
	Name      string
	Model     Model
	Pins      []int
	Calibrate bool
}

func (c SlotConfig) String() string {
	if c.Name != "" {
		return c.Name
	}
	return string(c.Model)
}

// FormatPins renders pins the way the settings file spells them.
func FormatPins(pins []int) string {
	parts := make([]string, len(pins))
	for i, p := range pins {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

// RawReading is what a driver measured. Optional quantities are nil when
// the part cannot measure them.
type RawReading struct {
	// Temperature in °C. After registry dispatch with calibration enabled
	// this holds the corrected value.
	Temperature float64
	// MeasuredTemperature is the uncorrected value reported by the part.
	MeasuredTemperature float64

	Humidity      *float64 // %RH
	Pressure      *float64 // Pa
	GasResistance *float64 // Ω
	AirQuality    *float64 // ENS160 UBA index, 1..5
	TVOC          *float64 // ppb
	ECO2          *float64 // ppm
}

// Derived holds metrics computed from a raw reading.
type Derived struct {
	HeatIndex       *float64
	AirQualityIndex *float64
}

// DriverVersion identifies the revision of the driver set and registry.
// Readings carry it as libSensors_version, apart from the firmware version.
const DriverVersion = "2025.11.10.2"

// SensorReading is the model-agnostic output for one slot.
type SensorReading struct {
	Temperature     Metric     `json:"temperature"`
	Humidity        Metric     `json:"RH"`
	Pressure        Metric     `json:"pressure"`
	GasResistance   Metric     `json:"gas"`
	AirQualityIndex Metric     `json:"IAQ"`
	TVOC            Metric     `json:"TVOC"`
	ECO2            Metric     `json:"eCO2"`
	HeatIndex       Metric     `json:"HI"`
	Source          SourceType `json:"type"`
	DriverVersion   string     `json:"libSensors_version"`
}

// Float returns a pointer to v. Drivers use it to fill optional fields.
func Float(v float64) *float64 { return &v }
