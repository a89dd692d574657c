package channel

import (
	"context"
	"encoding/json"
	"time"
)

// Publisher is the part of the MQTT client the UI channel needs.
// *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// uiNotification is the payload published for user interfaces.
type uiNotification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTT publishes notifications to a topic watched by wall panels and apps.
type MQTT struct {
	publisher Publisher
	topic     string
	qos       byte
	logger    Logger
	now       func() time.Time
}

// NewMQTT creates a channel publishing to topic.
func NewMQTT(publisher Publisher, topic string, qos byte, logger Logger) *MQTT {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTT{publisher: publisher, topic: topic, qos: qos, logger: logger, now: time.Now}
}

// SendTextMessage publishes title and body as JSON.
func (m *MQTT) SendTextMessage(_ context.Context, title, body string) {
	payload, err := json.Marshal(uiNotification{Title: title, Message: body, Timestamp: m.now().UTC()})
	if err != nil {
		m.logger.Error("marshalling ui notification", "error", err)
		return
	}
	if err := m.publisher.Publish(m.topic, payload, m.qos, false); err != nil {
		m.logger.Error("ui notification publish failed", "topic", m.topic, "error", err)
	}
}
