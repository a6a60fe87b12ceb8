package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionSyncMessage asks the sync worker to push one transaction to the
// external ledger. It only carries the ID; the worker reloads the row.
type TransactionSyncMessage struct {
	MessageID     string    `json:"message_id"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionSyncMessage creates a sync message with a fresh message ID
func NewTransactionSyncMessage(transactionID string) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		MessageID:     uuid.NewString(),
		TransactionID: transactionID,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON decodes a message and rejects one without a transaction ID
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" {
		return nil, ErrMissingTransactionID
	}
	return &msg, nil
}
