// Package settings reads and writes the device settings file: a flat TOML
// document in the layout produced by the original settings editor.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var (
	// ErrInvalid wraps every validation and parse failure.
	ErrInvalid = errors.New("settings: invalid value")
	// ErrUnknownKey is returned by Set for keys this package does not own.
	ErrUnknownKey = errors.New("settings: unknown key")
)

// Models are the sensor model names a slot may name.
var Models = []string{"AHT21", "MCP9808", "MAX31865", "BME280", "BMP280", "BME680", "ENS160_AHT21"}

const (
	DefaultInterval = 30 * time.Second
	MinInterval     = time.Second
	DefaultMQTTPort = 1883
)

// Flat keys outside the sensor{N}_* family.
const (
	KeyDeviceName = "device_name"
	KeySubmit     = "is_pico_submit_mongo"
	KeySubmitURL  = "mongo_url"
	KeySecretKey  = "mongo_secret_key"
	KeyCertPath   = "cert_path"
	KeyMQTTBroker = "mqtt_broker"
	KeyMQTTPort   = "mqtt_port"
	KeyInterval   = "acquisition_interval"
)

var tailKeys = []string{KeySubmit, KeySubmitURL, KeySecretKey, KeyCertPath, KeyMQTTBroker, KeyMQTTPort, KeyInterval}

// Slot is one sensor{N}_* group.
type Slot struct {
	Model       string
	Pins        []int
	CorrectTemp bool

	// BadPins holds a pin list Parse could not read, kept as found so
	// Validate can name it and Save writes it back.
	BadPins string
}

// Settings is the decoded settings file.
type Settings struct {
	DeviceName string
	// Slots[i] is sensor{i+1}.
	Slots []Slot

	SubmitEnabled bool
	SubmitURL     string
	SecretKey     string
	CertPath      string

	MQTTBroker string
	MQTTPort   int

	AcquisitionInterval time.Duration

	// Extra holds keys this package does not interpret, such as WiFi
	// credentials, and writes them back unchanged.
	Extra map[string]any
}

// Default returns the settings a fresh device starts with.
func Default() Settings {
	return Settings{
		DeviceName: "LabMonitor",
		Slots: []Slot{
			{Model: "BME280", Pins: []int{10, 11, 8, 9}, CorrectTemp: true},
			{Model: "MAX31865", Pins: []int{18, 19, 16, 17}},
			{Model: "MCP9808", Pins: []int{15, 14}},
		},
		MQTTPort:            DefaultMQTTPort,
		AcquisitionInterval: DefaultInterval,
	}
}

// Load reads and parses path.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a flat settings document. Booleans may be TOML booleans or
// the strings "True"/"False"; pins may be a "10,11,8,9" string or an array.
func Parse(data []byte) (Settings, error) {
	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	s := Settings{MQTTPort: DefaultMQTTPort, AcquisitionInterval: DefaultInterval}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var errs []error
	for _, k := range keys {
		v := raw[k]
		if !known(k) {
			if s.Extra == nil {
				s.Extra = map[string]any{}
			}
			s.Extra[k] = v
			continue
		}
		if n, field, ok := parseSlotKey(k); ok && field == "pins" {
			s.setPinsLenient(n, v)
			continue
		}
		str, err := scalar(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalid, k, err))
			continue
		}
		if err := s.Set(k, str); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// setPinsLenient assigns sensor{n}_pins, keeping the raw text in BadPins
// when it is not a pin list.
func (s *Settings) setPinsLenient(n int, v any) {
	str, err := scalar(v)
	if err == nil {
		if err = s.Set(slotKey(n, "pins"), str); err == nil {
			return
		}
	} else {
		str = fmt.Sprint(v)
	}
	sl := s.slot(n)
	sl.Pins = nil
	sl.BadPins = strings.TrimSpace(str)
}

// Save writes s to path, replacing the file atomically.
func (s Settings) Save(path string) error {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("save settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Encode writes s as flat TOML in canonical key order, extra keys last.
func (s Settings) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	for _, f := range s.Fields() {
		if err := enc.Encode(map[string]any{f.Key: f.typed()}); err != nil {
			return fmt.Errorf("encode %s: %w", f.Key, err)
		}
	}
	extra := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		extra = append(extra, k)
	}
	slices.Sort(extra)
	for _, k := range extra {
		if err := enc.Encode(map[string]any{k: s.Extra[k]}); err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
	}
	return nil
}

// Field is one settings key in its file spelling.
type Field struct {
	Key   string
	Value string
}

// typed restores the TOML type the original editor wrote.
func (f Field) typed() any {
	switch f.Key {
	case KeyMQTTPort:
		if n, err := strconv.Atoi(f.Value); err == nil {
			return n
		}
	case KeyInterval:
		if n, err := strconv.Atoi(f.Value); err == nil {
			return n
		}
	}
	return f.Value
}

// Fields lists every interpreted key in canonical order.
func (s Settings) Fields() []Field {
	fs := []Field{{KeyDeviceName, s.DeviceName}}
	for i := range s.Slots {
		n := i + 1
		for _, field := range []string{"name", "pins", "correct_temp"} {
			v, _ := s.Get(slotKey(n, field))
			fs = append(fs, Field{slotKey(n, field), v})
		}
	}
	for _, k := range tailKeys {
		v, _ := s.Get(k)
		fs = append(fs, Field{k, v})
	}
	return fs
}

// Get returns the file spelling of key.
func (s Settings) Get(key string) (string, bool) {
	if n, field, ok := parseSlotKey(key); ok {
		if n > len(s.Slots) {
			return "", false
		}
		sl := s.Slots[n-1]
		switch field {
		case "name":
			return sl.Model, true
		case "pins":
			if sl.BadPins != "" {
				return sl.BadPins, true
			}
			return FormatPins(sl.Pins), true
		default:
			return formatBool(sl.CorrectTemp), true
		}
	}
	switch key {
	case KeyDeviceName:
		return s.DeviceName, true
	case KeySubmit:
		return formatBool(s.SubmitEnabled), true
	case KeySubmitURL:
		return s.SubmitURL, true
	case KeySecretKey:
		return s.SecretKey, true
	case KeyCertPath:
		return s.CertPath, true
	case KeyMQTTBroker:
		return s.MQTTBroker, true
	case KeyMQTTPort:
		return strconv.Itoa(s.MQTTPort), true
	case KeyInterval:
		return strconv.Itoa(int(s.AcquisitionInterval / time.Second)), true
	}
	return "", false
}

// Set assigns key from its file spelling. Setting sensor{N}_* beyond the
// last slot grows Slots to N.
func (s *Settings) Set(key, value string) error {
	value = strings.TrimSpace(value)
	if n, field, ok := parseSlotKey(key); ok {
		sl := s.slot(n)
		switch field {
		case "name":
			if strings.EqualFold(value, "none") {
				value = ""
			}
			sl.Model = value
		case "pins":
			pins, err := ParsePins(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			sl.Pins = pins
			sl.BadPins = ""
		default:
			b, err := parseBool(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			sl.CorrectTemp = b
		}
		return nil
	}

	switch key {
	case KeyDeviceName:
		s.DeviceName = value
	case KeySubmit:
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		s.SubmitEnabled = b
	case KeySubmitURL:
		s.SubmitURL = strings.TrimRight(value, "/")
	case KeySecretKey:
		s.SecretKey = value
	case KeyCertPath:
		s.CertPath = value
	case KeyMQTTBroker:
		s.MQTTBroker = value
	case KeyMQTTPort:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s %q: %w", ErrInvalid, key, value, err)
		}
		s.MQTTPort = n
	case KeyInterval:
		d, err := parseInterval(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		s.AcquisitionInterval = d
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}

// slot returns sensor{n}, growing Slots with empty slots so numbering is
// preserved.
func (s *Settings) slot(n int) *Slot {
	for len(s.Slots) < n {
		s.Slots = append(s.Slots, Slot{})
	}
	return &s.Slots[n-1]
}

// ParsePins parses a comma separated pin list such as "10,11,8,9".
func ParsePins(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	pins := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: pins %q: %w", ErrInvalid, s, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: pins %q: negative pin %d", ErrInvalid, s, n)
		}
		pins = append(pins, n)
	}
	return pins, nil
}

// FormatPins is the inverse of ParsePins.
func FormatPins(pins []int) string {
	parts := make([]string, len(pins))
	for i, p := range pins {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func known(key string) bool {
	if _, _, ok := parseSlotKey(key); ok {
		return true
	}
	return key == KeyDeviceName || slices.Contains(tailKeys, key)
}

func slotKey(n int, field string) string {
	return fmt.Sprintf("sensor%d_%s", n, field)
}

// parseSlotKey splits "sensor3_pins" into (3, "pins").
func parseSlotKey(key string) (int, string, bool) {
	rest, ok := strings.CutPrefix(key, "sensor")
	if !ok {
		return 0, "", false
	}
	num, field, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, "", false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return 0, "", false
	}
	switch field {
	case "name", "pins", "correct_temp":
		return n, field, true
	}
	return 0, "", false
}

func parseBool(s string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("%w: boolean %q", ErrInvalid, s)
	}
	return b, nil
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// parseInterval accepts whole seconds or a Go duration string.
func parseInterval(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: interval %q", ErrInvalid, s)
	}
	return d, nil
}

// scalar renders a decoded TOML value in file spelling.
func scalar(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return formatBool(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			s, err := scalar(e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ","), nil
	}
	return "", fmt.Errorf("unsupported value %T", v)
}
