package model

import (
	"strings"
	"time"
)

const (
	// DefaultMessage is shown to blocked users when the stored message is empty
	// or when no maintenance record exists.
	DefaultMessage = "Sistema em manutenção"

	// DefaultPageMessage is the message used by the maintenance page and the
	// control panel when no message was supplied.
	DefaultPageMessage = "Sistema em manutenção. Tente novamente mais tarde."

	// ActorAdmin is the actor label the control panel sends with every write.
	ActorAdmin = "ADMIN"
)

// Error texts shown by the control panel.
const (
	ErrConnection   = "Erro ao conectar com o servidor"
	ErrLoadStatus   = "Erro ao carregar status de manutenção"
	ErrChangeStatus = "Erro ao alterar status"
)

// MaintenanceRecord is one row of the maintenance history. The record with the
// highest ID is the current one; older rows are ignored.
type MaintenanceRecord struct {
	// ID orders records; the highest ID wins.
	ID int64 `json:"id"`

	// Active reports whether the gate is diverting traffic.
	Active bool `json:"ativo"`

	// Message is the free text shown to blocked users.
	Message string `json:"mensagem"`

	// StartedAt and EndedAt are informational only.
	StartedAt *time.Time `json:"data_inicio,omitempty"`
	EndedAt   *time.Time `json:"data_fim,omitempty"`

	// UpdatedAt is the time of the write that produced this record.
	UpdatedAt time.Time `json:"atualizado_em"`

	// CreatedBy is the actor label supplied by the writer.
	CreatedBy string `json:"criado_por,omitempty"`
}

// Status is the subset of a record the gate needs.
type Status struct {
	Active  bool   `json:"ativo"`
	Message string `json:"mensagem"`
}

// InactiveStatus is the fail-open status used when nothing better is known.
func InactiveStatus() Status {
	return Status{Active: false, Message: DefaultMessage}
}

// Status converts the record to a Status, applying the message fallback.
func (r *MaintenanceRecord) Status() Status {
	return Status{Active: r.Active, Message: MessageOrDefault(r.Message, DefaultMessage)}
}

// MessageOrDefault returns msg, or fallback when msg is blank.
func MessageOrDefault(msg, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}

// StatusUpdate is the body of a status write.
type StatusUpdate struct {
	Active    bool   `json:"ativo"`
	Message   string `json:"mensagem"`
	CreatedBy string `json:"criadoPor"`
}

// NewRecord builds the record a status write will persist. StartedAt is set
// when activating and EndedAt when deactivating.
func (u StatusUpdate) NewRecord(now time.Time) *MaintenanceRecord {
	rec := &MaintenanceRecord{
		Active:    u.Active,
		Message:   u.Message,
		UpdatedAt: now,
		CreatedBy: u.CreatedBy,
	}
	if u.Active {
		rec.StartedAt = &now
	} else {
		rec.EndedAt = &now
	}
	return rec
}

// StatusResponse is the envelope returned by the status read endpoints.
type StatusResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// WriteResponse is the envelope returned by the status write endpoint.
type WriteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AdminStatus is the record as shown to administrators. Message is the raw
// stored text, without the fallback, so the panel can edit it.
type AdminStatus struct {
	Active    bool       `json:"ativo"`
	Message   string     `json:"mensagem"`
	StartedAt *time.Time `json:"data_inicio,omitempty"`
	EndedAt   *time.Time `json:"data_fim,omitempty"`
	UpdatedAt *time.Time `json:"atualizado_em,omitempty"`
	CreatedBy string     `json:"criado_por,omitempty"`
}

// AdminStatus converts the record for the admin status endpoint.
func (r *MaintenanceRecord) AdminStatus() AdminStatus {
	status := AdminStatus{
		Active:    r.Active,
		Message:   r.Message,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		CreatedBy: r.CreatedBy,
	}
	if !r.UpdatedAt.IsZero() {
		updated := r.UpdatedAt
		status.UpdatedAt = &updated
	}
	return status
}
