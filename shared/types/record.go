package types

import (
	"encoding/json"
	"fmt"
)

// Placeholder marks a metric the slot cannot report.
const Placeholder = "--"

// Keys the ingestion service requires on every record. A device may run
// with no slots, so no sens{N}_* key is required.
var RequiredKeys = []string{"version", "ip", "UTC"}

// Record keys outside the per-slot fields.
const (
	KeyDeviceName           = "device_name"
	KeyIP                   = "ip"
	KeyVersion              = "version"
	KeyLibVersion           = "libSensors_version"
	KeyUTC                  = "UTC"
	KeyClientSubmissionTime = "client_submission_time"
)

// SlotFields is one slot's contribution to a Record. Every value is already
// formatted; missing metrics hold Placeholder.
type SlotFields struct {
	Name string
	Type string
	Temp string
	RH   string
	P    string
	Gas  string
	IAQ  string
	TVOC string
	ECO2 string
	HI   string
}

// Record is the flat document a device emits per poll: sens{N}_* fields for
// each slot plus device metadata.
type Record struct {
	DeviceName string
	IP         string
	Version    string
	LibVersion string
	// UTC is the device clock in nanoseconds since the epoch.
	UTC int64
	// ClientSubmissionTime is set by the submitter in milliseconds since the
	// epoch. Zero means unset.
	ClientSubmissionTime int64
	Slots                []SlotFields
}

// SlotKey returns the record key for field of slot n (1-based).
func SlotKey(n int, field string) string {
	return fmt.Sprintf("sens%d_%s", n, field)
}

// Fields flattens r into the wire form.
func (r Record) Fields() map[string]any {
	m := make(map[string]any, 6+10*len(r.Slots))
	for i, s := range r.Slots {
		n := i + 1
		m[SlotKey(n, "Temp")] = orPlaceholder(s.Temp)
		m[SlotKey(n, "RH")] = orPlaceholder(s.RH)
		m[SlotKey(n, "P")] = orPlaceholder(s.P)
		m[SlotKey(n, "Gas")] = orPlaceholder(s.Gas)
		m[SlotKey(n, "IAQ")] = orPlaceholder(s.IAQ)
		m[SlotKey(n, "TVOC")] = orPlaceholder(s.TVOC)
		m[SlotKey(n, "eCO2")] = orPlaceholder(s.ECO2)
		m[SlotKey(n, "HI")] = orPlaceholder(s.HI)
		m[SlotKey(n, "type")] = s.Type
		m[SlotKey(n, "name")] = s.Name
	}
	m[KeyIP] = r.IP
	m[KeyVersion] = r.Version
	m[KeyLibVersion] = r.LibVersion
	m[KeyUTC] = r.UTC
	m[KeyDeviceName] = r.DeviceName
	if r.ClientSubmissionTime != 0 {
		m[KeyClientSubmissionTime] = r.ClientSubmissionTime
	}
	return m
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

// MissingKeys lists the RequiredKeys absent from doc.
func MissingKeys(doc map[string]any) []string {
	var missing []string
	for _, k := range RequiredKeys {
		if _, ok := doc[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}
