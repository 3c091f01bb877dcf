package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) Store {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO generation_usage
			(workspace_id, request_id, operation, provider, model,
			 input_tokens, output_tokens, cost_cents, latency_ms, success)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		rec.WorkspaceID, rec.RequestID, rec.Operation, rec.Provider, rec.Model,
		rec.InputTokens, rec.OutputTokens, rec.CostCents, rec.LatencyMs, rec.Success,
	).Scan(&rec.ID, &rec.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to append usage record: %w", err)
	}

	return nil
}

func (s *PostgresStore) ListByWorkspace(ctx context.Context, workspaceID string, from, to time.Time) ([]*Record, error) {
	query := `
		SELECT id, workspace_id, request_id, operation, provider, model,
		       input_tokens, output_tokens, cost_cents, latency_ms, success, created_at
		FROM generation_usage
		WHERE workspace_id = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, workspaceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var r Record
		err := rows.Scan(
			&r.ID, &r.WorkspaceID, &r.RequestID, &r.Operation, &r.Provider, &r.Model,
			&r.InputTokens, &r.OutputTokens, &r.CostCents, &r.LatencyMs, &r.Success, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage records: %w", err)
	}

	return records, nil
}

func (s *PostgresStore) TotalCostByWorkspace(ctx context.Context, workspaceID string, from, to time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost_cents), 0)
		FROM generation_usage
		WHERE workspace_id = $1 AND created_at BETWEEN $2 AND $3
	`
	var total float64
	err := s.db.QueryRow(ctx, query, workspaceID, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to get total cost: %w", err)
	}

	return total, nil
}
