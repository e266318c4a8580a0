package clients

import (
	"encoding/json"
	"fmt"
)

// Message types exchanged with clients.
const (
	TypeSkipWait    = "skip-wait"
	TypeSyncSuccess = "sync-success"
)

// Message is a structured message between the cache and its clients.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SyncSuccess is the payload of a sync-success message.
type SyncSuccess struct {
	RecordCount int `json:"recordCount"`
}

// NewMessage builds a message with data encoded as JSON.
func NewMessage(typ string, data any) (Message, error) {
	msg := Message{Type: typ}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s message: %w", typ, err)
	}
	msg.Data = raw
	return msg, nil
}

// SyncSuccessMessage builds the notification sent after a successful flush.
func SyncSuccessMessage(recordCount int) Message {
	raw, _ := json.Marshal(SyncSuccess{RecordCount: recordCount})
	return Message{Type: TypeSyncSuccess, Data: raw}
}

// ParseMessage decodes a message received from a client.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("message type cannot be empty")
	}
	return msg, nil
}
