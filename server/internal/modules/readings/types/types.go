package types

import (
	"encoding/json"
	"time"
)

// Device summarizes what the store holds for one device name.
type Device struct {
	Name      string    `json:"name"`
	LastSeen  time.Time `json:"lastSeen"`
	Documents int       `json:"documents"`
}

// Document is one stored record. Body is the submitted JSON object with the
// server-derived datetime fields added.
type Document struct {
	ID         string          `json:"id"`
	DeviceName string          `json:"deviceName"`
	Time       time.Time       `json:"time"`
	ClientTime time.Time       `json:"-"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Body       json.RawMessage `json:"body"`
}
