package types

import "strings"

// ReadingsTopicFilter matches every device's readings topic.
const ReadingsTopicFilter = "labmonitor/+/readings"

// ReadingsTopic is the MQTT topic a device publishes its records on.
func ReadingsTopic(device string) string {
	return "labmonitor/" + topicSegment(device) + "/readings"
}

// Presence payloads published retained on StatusTopic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// StatusTopic carries a device's retained presence; the broker publishes
// StatusOffline as the will when the device drops without disconnecting.
func StatusTopic(device string) string {
	return "labmonitor/" + topicSegment(device) + "/status"
}

// DeviceFromTopic extracts the device segment of a readings topic.
func DeviceFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "labmonitor" || parts[2] != "readings" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// topicSegment keeps a device name from introducing topic levels or
// wildcards.
func topicSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#':
			return '_'
		}
		return r
	}, s)
}
