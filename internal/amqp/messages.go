package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reasons carried by LedgerChangedMessage.
const (
	ReasonUpsert = "upsert"
	ReasonBatch  = "batch"
	ReasonReset  = "reset"
)

// LedgerChangedMessage announces that the entries of one date changed. It
// carries no entry data; consumers read the date back from the store.
type LedgerChangedMessage struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(date, reason string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		ID:        uuid.NewString(),
		Date:      date,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes a message and rejects one without a date.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Date == "" {
		return nil, fmt.Errorf("message %q has no date", msg.ID)
	}
	return &msg, nil
}
