// Package events announces maintenance status changes to other services.
package events

import (
	"context"
	"fmt"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/n3tuk/maintenance-gate/internal/model"
)

// TopicStatusChanged is published after every successful status write.
const TopicStatusChanged = "maintenance.status.changed"

// Event ids are idPrefix followed by idLength characters from idAlphabet.
const (
	idPrefix   = "mnt-"
	idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	idLength   = 12
)

// Publisher sends events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// StatusChanged describes one maintenance status write.
type StatusChanged struct {
	ID         string    `json:"id"`
	RecordID   int64     `json:"record_id"`
	Active     bool      `json:"ativo"`
	Message    string    `json:"mensagem"`
	CreatedBy  string    `json:"criado_por"`
	AdminID    string    `json:"admin_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewStatusChanged builds the event for a stored record. adminID is the
// session that made the write.
func NewStatusChanged(rec *model.MaintenanceRecord, adminID string) (StatusChanged, error) {
	id, err := nanoid.Generate(idAlphabet, idLength)
	if err != nil {
		return StatusChanged{}, fmt.Errorf("generating event id: %w", err)
	}

	return StatusChanged{
		ID:         idPrefix + id,
		RecordID:   rec.ID,
		Active:     rec.Active,
		Message:    rec.Message,
		CreatedBy:  rec.CreatedBy,
		AdminID:    adminID,
		OccurredAt: rec.UpdatedAt,
	}, nil
}
