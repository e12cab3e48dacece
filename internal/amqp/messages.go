package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message kinds on the upload queue. Upserts carry the revision version so
// the worker can skip pushes for rows edited again in the meantime; deletes
// only need the id.
const (
	KindUpsert = "upsert"
	KindDelete = "delete"
)

// InvoiceUploadMessage is a lightweight queue entry. It carries only the
// invoice id and revision; the worker fetches the full row from the
// database before pushing it to the remote gateway.
type InvoiceUploadMessage struct {
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewUpsertMessage(id string, version int64) *InvoiceUploadMessage {
	return &InvoiceUploadMessage{
		Kind:      KindUpsert,
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func NewDeleteMessage(id string) *InvoiceUploadMessage {
	return &InvoiceUploadMessage{
		Kind:      KindDelete,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *InvoiceUploadMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func InvoiceUploadMessageFromJSON(data []byte) (*InvoiceUploadMessage, error) {
	var msg InvoiceUploadMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind != KindUpsert && msg.Kind != KindDelete {
		return nil, fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	return &msg, nil
}
