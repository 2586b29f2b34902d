package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lyzr/orchestrator/common/db"
	"github.com/lyzr/orchestrator/flow"
)

// PostgresBackend is the durable archival store Archive() writes into,
// using the same parameterised-query shape as common/db's pgxpool
// wrapper.
type PostgresBackend struct {
	db *db.DB
}

// NewPostgresBackend wraps an existing pool. Callers are expected to have
// already applied the `fec_execution_archive` table migration:
//
//	CREATE TABLE fec_execution_archive (
//	    execution_id TEXT PRIMARY KEY,
//	    flow_id      TEXT NOT NULL,
//	    tenant_id    TEXT NOT NULL,
//	    status       TEXT NOT NULL,
//	    snapshot     JSONB NOT NULL,
//	    started_at   TIMESTAMPTZ NOT NULL,
//	    completed_at TIMESTAMPTZ
//	);
func NewPostgresBackend(database *db.DB) *PostgresBackend {
	return &PostgresBackend{db: database}
}

// Archive inserts a terminal execution's snapshot into the archive table.
func (p *PostgresBackend) Archive(ctx context.Context, es *flow.ExecutionState) error {
	snap, err := ToSnapshot(es)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO fec_execution_archive
			(execution_id, flow_id, tenant_id, status, snapshot, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (execution_id) DO UPDATE SET
			status = EXCLUDED.status,
			snapshot = EXCLUDED.snapshot,
			completed_at = EXCLUDED.completed_at
	`
	_, err = p.db.Exec(ctx, query,
		es.ExecutionID, es.FlowID, es.TenantID, string(es.Status), raw, es.StartedAt, es.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("persistence: archive execution %s: %w", es.ExecutionID, err)
	}
	return nil
}

// Load retrieves an archived execution's snapshot by id.
func (p *PostgresBackend) Load(ctx context.Context, executionID string) (*flow.ExecutionState, error) {
	query := `SELECT snapshot FROM fec_execution_archive WHERE execution_id = $1`
	var raw []byte
	if err := p.db.QueryRow(ctx, query, executionID).Scan(&raw); err != nil {
		return nil, fmt.Errorf("persistence: load archived execution %s: %w", executionID, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal archived snapshot: %w", err)
	}
	return FromSnapshot(&snap)
}

// ListByFlow returns execution ids archived for a given flow, most recent
// first — used by operators inspecting a flow's run history.
func (p *PostgresBackend) ListByFlow(ctx context.Context, flowID string, limit int) ([]string, error) {
	query := `
		SELECT execution_id FROM fec_execution_archive
		WHERE flow_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := p.db.Query(ctx, query, flowID, limit)
	if err != nil {
		return nil, fmt.Errorf("persistence: list archived executions for flow %s: %w", flowID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
