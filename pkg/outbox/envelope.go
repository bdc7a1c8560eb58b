package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
)

const currentVersion = 1

// PayloadEnvelope is the JSON stored in outbox_events.payload. EventID
// equals the row id and doubles as the consumer idempotency key.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

func (e DomainEvent) toRow(id uuid.UUID, now time.Time) (models.OutboxEvent, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("outbox: encode %s data: %w", e.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    e.Version,
		EventID:    id.String(),
		OccurredAt: e.OccurredAt,
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = currentVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = now
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("outbox: encode envelope: %w", err)
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       payload,
	}, nil
}

// DecodeEnvelope unpacks a stored row and, when dst is non-nil, decodes its
// data into dst.
func DecodeEnvelope(row models.OutboxEvent, dst any) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope %s: %w", row.ID, err)
	}
	if dst == nil || len(env.Data) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return env, fmt.Errorf("decode %s payload %s: %w", row.EventType, row.ID, err)
	}
	return env, nil
}
