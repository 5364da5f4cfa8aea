package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Advisory lock namespaces. The two-int form of pg_try_advisory_xact_lock
// partitions the lock keyspace so project ids used by different subsystems
// never collide.
const (
	// LockNamespaceExploreCache serializes explore-cache refreshes per project.
	LockNamespaceExploreCache int32 = 1
)

// AdvisoryLockKey folds a 64-bit surrogate key into the 32-bit key space of
// the two-int advisory lock form by xor-ing the high and low halves. Ids
// below 2^31 map to themselves; a fold collision causes spurious lock
// contention, never missed exclusion.
func AdvisoryLockKey(id int64) int32 {
	return int32(uint32(id) ^ uint32(uint64(id)>>32))
}

// TryAdvisoryXactLock attempts a non-blocking exclusive lock on
// (namespace, key) scoped to the given transaction. There is no unlock:
// Postgres releases the lock when the transaction commits or rolls back.
// Returns true when the lock was acquired, false when another transaction
// holds it.
func TryAdvisoryXactLock(ctx context.Context, tx pgx.Tx, namespace int32, key int32) (bool, error) {
	var acquired bool
	err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1, $2)`, namespace, key).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("failed to try advisory lock (%d, %d): %w", namespace, key, err)
	}
	return acquired, nil
}
