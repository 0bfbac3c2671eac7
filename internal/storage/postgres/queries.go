package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/n3tuk/maintenance-gate/internal/model"
	"github.com/n3tuk/maintenance-gate/internal/storage"
)

// maintenanceColumns is the column list used for SELECT statements on manutencao_sistema.
const maintenanceColumns = `id, ativo, mensagem, data_inicio, data_fim, atualizado_em, criado_por`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryLatestMaintenance(ctx context.Context, db executor) (*model.MaintenanceRecord, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+maintenanceColumns+` FROM manutencao_sistema ORDER BY id DESC LIMIT 1`)
	rec, err := scanMaintenance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest maintenance: %w", err)
	}
	return rec, nil
}

func queryInsertMaintenance(ctx context.Context, db executor, rec *model.MaintenanceRecord) (*model.MaintenanceRecord, error) {
	stored := *rec
	err := db.QueryRowContext(ctx, `
		INSERT INTO manutencao_sistema (ativo, mensagem, data_inicio, data_fim, atualizado_em, criado_por)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		rec.Active,
		rec.Message,
		nullTimePtr(rec.StartedAt),
		nullTimePtr(rec.EndedAt),
		rec.UpdatedAt,
		nullString(rec.CreatedBy),
	).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("insert maintenance: %w", err)
	}
	return &stored, nil
}

// queryIsActiveAdmin compares on id::text so the lookup works whatever
// column type the application uses for administrator ids.
func queryIsActiveAdmin(ctx context.Context, db executor, id string) (bool, error) {
	var found string
	err := db.QueryRowContext(ctx,
		`SELECT id::text FROM administradores WHERE ativo = true AND id::text = $1 LIMIT 1`, id,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query administrator: %w", err)
	}
	return true, nil
}

func queryPruneMaintenance(ctx context.Context, db executor, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	res, err := db.ExecContext(ctx, `
		DELETE FROM manutencao_sistema
		WHERE id NOT IN (SELECT id FROM manutencao_sistema ORDER BY id DESC LIMIT $1)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune maintenance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune maintenance rows affected: %w", err)
	}
	return n, nil
}
