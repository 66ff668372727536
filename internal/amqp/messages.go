package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"mkoba/internal/core"
)

// AuditFactMessage carries one audit fact from the API to the worker.
// PeriodID lets the worker refresh the affected ledger without parsing
// the record identifier.
type AuditFactMessage struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Table     string    `json:"table"`
	RecordID  string    `json:"record_id"`
	PeriodID  string    `json:"period_id,omitempty"`
	At        time.Time `json:"at"`
	Timestamp time.Time `json:"timestamp"`
}

var errMissingID = errors.New("audit fact message without id")

// NewAuditFactMessage wraps f for publication.
func NewAuditFactMessage(f core.AuditFact, periodID string) *AuditFactMessage {
	return &AuditFactMessage{
		ID:        f.ID,
		ActorID:   f.ActorID,
		Action:    string(f.Action),
		Table:     f.Table,
		RecordID:  f.RecordID,
		PeriodID:  periodID,
		At:        f.At,
		Timestamp: time.Now(),
	}
}

// Fact converts the message back into the domain fact.
func (m *AuditFactMessage) Fact() core.AuditFact {
	return core.AuditFact{
		ID:       m.ID,
		ActorID:  m.ActorID,
		Action:   core.AuditAction(m.Action),
		Table:    m.Table,
		RecordID: m.RecordID,
		At:       m.At,
	}
}

// ToJSON converts the message to JSON bytes
func (m *AuditFactMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AuditFactMessageFromJSON decodes a message and rejects one without an ID.
func AuditFactMessageFromJSON(data []byte) (*AuditFactMessage, error) {
	var msg AuditFactMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errMissingID
	}
	return &msg, nil
}
