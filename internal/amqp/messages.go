package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action describes what happened to a record.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// RecordChangedMessage announces a mutation of one record. It carries only
// the coordinates of the change; consumers re-read the month from the store.
type RecordChangedMessage struct {
	Kind      string    `json:"kind"`
	Action    Action    `json:"action"`
	ID        string    `json:"id"`
	OwnerID   string    `json:"userId"`
	Month     string    `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordChangedMessage(kind string, action Action, id, ownerID, month string) *RecordChangedMessage {
	return &RecordChangedMessage{
		Kind:      kind,
		Action:    action,
		ID:        id,
		OwnerID:   ownerID,
		Month:     month,
		Timestamp: time.Now().UTC(),
	}
}

func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangedMessageFromJSON decodes and sanity-checks a message body.
func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	var msg RecordChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" || msg.Month == "" {
		return nil, fmt.Errorf("message missing owner or month")
	}
	return &msg, nil
}
