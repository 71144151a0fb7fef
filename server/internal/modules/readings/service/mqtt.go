package service

import (
	"context"
	"time"

	shared "labmonitor/shared/types"
)

const messageTimeout = 10 * time.Second

// MQTTSubscriber interface for attaching message handlers
type MQTTSubscriber interface {
	SetMessageHandler(handler func(topic string, payload []byte) error)
}

// Register routes records published on the readings topics into Ingest.
func (s *Service) Register(subscriber MQTTSubscriber) {
	subscriber.SetMessageHandler(s.HandleMessage)
}

// HandleMessage ingests one MQTT payload. The topic's device segment names
// the device when the record does not.
func (s *Service) HandleMessage(topic string, payload []byte) error {
	device, _ := shared.DeviceFromTopic(topic)
	s.logger.Debug("processing mqtt record", "topic", topic, "device", device)

	ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	defer cancel()
	id, err := s.Ingest(ctx, payload, device)
	if err != nil {
		s.logger.Error("failed to ingest mqtt record", "topic", topic, "error", err)
		return err
	}
	s.logger.Debug("successfully stored mqtt record", "topic", topic, "id", id)
	return nil
}
