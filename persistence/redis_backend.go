package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/lyzr/orchestrator/common/logger"
	"github.com/lyzr/orchestrator/flow"
)

// RedisBackend is the hot-path snapshot store, grounded on the
// teacher's stream-based hot-state usage of common/redis — here
// repurposed from a token bus/CAS cache into an execution-snapshot store.
// A Redis set tracks recoverable execution ids so ListRecoverable doesn't
// need a KEYS scan.
type RedisBackend struct {
	rdb *redisv9.Client
	log *logger.Logger
	ttl time.Duration
}

const recoverableSetKey = "fec:recoverable"

// NewRedisBackend wraps an existing go-redis client. ttl is set as the
// expiry of every snapshot write, running or terminal (0 = no expiry), so
// a snapshot not re-saved within ttl is evicted (archived executions are
// written to Postgres separately and do not depend on this TTL).
func NewRedisBackend(rdb *redisv9.Client, log *logger.Logger, ttl time.Duration) *RedisBackend {
	return &RedisBackend{rdb: rdb, log: log, ttl: ttl}
}

func snapshotKey(executionID string) string {
	return "fec:snapshot:" + executionID
}

func (b *RedisBackend) SaveSnapshot(ctx context.Context, es *flow.ExecutionState) error {
	snap, err := ToSnapshot(es)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot: %w", err)
	}

	pipe := b.rdb.Pipeline()
	pipe.Set(ctx, snapshotKey(es.ExecutionID), raw, b.ttl)
	if es.Status.IsTerminal() {
		pipe.SRem(ctx, recoverableSetKey, es.ExecutionID)
	} else {
		pipe.SAdd(ctx, recoverableSetKey, es.ExecutionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persistence: redis save snapshot: %w", err)
	}
	return nil
}

func (b *RedisBackend) LoadSnapshot(ctx context.Context, executionID string) (*flow.ExecutionState, error) {
	raw, err := b.rdb.Get(ctx, snapshotKey(executionID)).Bytes()
	if err == redisv9.Nil {
		return nil, fmt.Errorf("persistence: no snapshot for execution %s", executionID)
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: redis load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal snapshot: %w", err)
	}
	return FromSnapshot(&snap)
}

func (b *RedisBackend) ListRecoverable(ctx context.Context) ([]string, error) {
	ids, err := b.rdb.SMembers(ctx, recoverableSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("persistence: redis list recoverable: %w", err)
	}
	return ids, nil
}

// Archive is not implemented by RedisBackend on its own — cmd/fecserver/
// container composes RedisBackend (hot) with a PostgresBackend (archival) via
// ArchivingManager, mirroring the split between common/redis
// hot state and common/db durable storage.
func (b *RedisBackend) Archive(ctx context.Context, es *flow.ExecutionState) error {
	return fmt.Errorf("persistence: RedisBackend does not archive; wrap with ArchivingManager")
}

func (b *RedisBackend) DeleteSnapshot(ctx context.Context, executionID string) error {
	pipe := b.rdb.Pipeline()
	pipe.Del(ctx, snapshotKey(executionID))
	pipe.SRem(ctx, recoverableSetKey, executionID)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("persistence: redis delete snapshot: %w", err)
	}
	return nil
}

// ArchivingManager composes a hot-path Manager (Redis or memory) with a
// PostgresBackend for Archive, so callers see one Manager implementing the
// full contract.
type ArchivingManager struct {
	Hot      Manager
	Archival *PostgresBackend
}

func (a *ArchivingManager) SaveSnapshot(ctx context.Context, es *flow.ExecutionState) error {
	return a.Hot.SaveSnapshot(ctx, es)
}

func (a *ArchivingManager) LoadSnapshot(ctx context.Context, executionID string) (*flow.ExecutionState, error) {
	return a.Hot.LoadSnapshot(ctx, executionID)
}

func (a *ArchivingManager) ListRecoverable(ctx context.Context) ([]string, error) {
	return a.Hot.ListRecoverable(ctx)
}

func (a *ArchivingManager) Archive(ctx context.Context, es *flow.ExecutionState) error {
	if err := a.Archival.Archive(ctx, es); err != nil {
		return err
	}
	return a.Hot.DeleteSnapshot(ctx, es.ExecutionID)
}

func (a *ArchivingManager) DeleteSnapshot(ctx context.Context, executionID string) error {
	return a.Hot.DeleteSnapshot(ctx, executionID)
}
