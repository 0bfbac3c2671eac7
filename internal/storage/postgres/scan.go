package postgres

import (
	"database/sql"
	"time"

	"github.com/n3tuk/maintenance-gate/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanMaintenance scans a single row into a model.MaintenanceRecord.
// The row must contain columns in the order defined by maintenanceColumns.
// Tables created before the migrations ran may hold NULL in any column but id.
func scanMaintenance(row scannable) (*model.MaintenanceRecord, error) {
	var rec model.MaintenanceRecord
	var (
		message   sql.NullString
		startedAt sql.NullTime
		endedAt   sql.NullTime
		updatedAt sql.NullTime
		createdBy sql.NullString
	)

	err := row.Scan(
		&rec.ID,
		&rec.Active,
		&message,
		&startedAt,
		&endedAt,
		&updatedAt,
		&createdBy,
	)
	if err != nil {
		return nil, err
	}

	rec.Message = message.String
	rec.StartedAt = timePtr(startedAt)
	rec.EndedAt = timePtr(endedAt)
	rec.UpdatedAt = updatedAt.Time
	rec.CreatedBy = createdBy.String

	return &rec, nil
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
