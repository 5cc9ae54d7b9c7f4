// Package gridws implements the real-time update relay: the connection
// registry, the wire codec, the broadcast core, the websocket handler, and
// the synthetic-update generator for demo mode.
package gridws

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire message kinds.
const (
	MsgConnected = "connected"
	MsgUpdate    = "update"
)

// TimestampFormat is how outbound update timestamps are rendered. The relay
// assigns them at acceptance, so timestamp order equals broadcast order.
const TimestampFormat = time.RFC3339Nano

// Message is one wire frame. NewValue stays a raw scalar so the relay never
// re-interprets a client's number formatting on the way through.
type Message struct {
	Type      string          `json:"type"`
	Text      string          `json:"message,omitempty"`
	RowID     string          `json:"rowId,omitempty"`
	ColumnID  string          `json:"columnId,omitempty"`
	NewValue  json.RawMessage `json:"newValue,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// CellUpdate is the unit of state change flowing through the relay.
type CellUpdate struct {
	RowID     string
	ColumnID  string
	NewValue  json.RawMessage
	Timestamp time.Time
}

// ParseMessage decodes one inbound frame. It enforces structural shape only:
// a type, and for updates the rowId/columnId/newValue fields. Business
// semantics of the value are not validated here.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("missing message type")
	}
	if msg.Type == MsgUpdate {
		if msg.RowID == "" {
			return nil, fmt.Errorf("update missing rowId")
		}
		if msg.ColumnID == "" {
			return nil, fmt.Errorf("update missing columnId")
		}
		if len(msg.NewValue) == 0 || string(msg.NewValue) == "null" {
			return nil, fmt.Errorf("update missing newValue")
		}
	}
	return &msg, nil
}

// ConnectedMessage returns the greeting frame sent once after accept.
func ConnectedMessage(text string) []byte {
	b, _ := json.Marshal(Message{Type: MsgConnected, Text: text})
	return b
}

// UpdateMessage returns the outbound frame for one accepted update.
func UpdateMessage(u CellUpdate) []byte {
	b, _ := json.Marshal(Message{
		Type:      MsgUpdate,
		RowID:     u.RowID,
		ColumnID:  u.ColumnID,
		NewValue:  u.NewValue,
		Timestamp: u.Timestamp.UTC().Format(TimestampFormat),
	})
	return b
}
