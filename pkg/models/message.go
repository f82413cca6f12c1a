package models

import (
	"fmt"
	"time"
)

// Message represents a text message travelling through the topic
type Message struct {
	ID        string            `json:"id"`
	Value     []byte            `json:"value"`
	Headers   map[string]string `json:"headers"`
	Topic     string            `json:"topic,omitempty"`
	Partition int               `json:"partition"`
	Offset    int64             `json:"offset"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewTextMessage builds an outgoing message carrying text as its value.
func NewTextMessage(id, text string) *Message {
	return &Message{
		ID:      id,
		Value:   []byte(text),
		Headers: map[string]string{HeaderMessageID: id},
	}
}

// Text returns the message payload.
func (m *Message) Text() string {
	return string(m.Value)
}

// Position formats topic, partition and offset the way consumer logs print them.
func (m *Message) Position() string {
	return fmt.Sprintf("%s [[%d]] @%d", m.Topic, m.Partition, m.Offset)
}

// MessageHeader constants
const (
	HeaderMessageID = "message-id"
)
