// Package store persists verification records, their history and the write
// counter. Every backend applies a Write as one atomic effect: the record is
// replaced, one history entry is appended, and the counter is incremented.
package store

import (
	"context"
	"time"

	"autoshield/internal/registry/models"
	"autoshield/pkg/domain"
)

// Store is implemented by InMemoryStore, PostgresStore and RedisCache.
type Store interface {
	Apply(ctx context.Context, w models.Write) (models.Commit, error)
	// GetRecord returns sentinel.ErrNotFound for accounts never written.
	GetRecord(ctx context.Context, addr domain.Address) (models.Record, error)
	// GetRecords returns only the accounts that exist.
	GetRecords(ctx context.Context, addrs []domain.Address) (map[domain.Address]models.Record, error)
	History(ctx context.Context, addr domain.Address) ([]models.HistoryEntry, error)
	// HistoryPage returns up to limit entries with Seq > after, and whether more remain.
	HistoryPage(ctx context.Context, addr domain.Address, after uint64, limit int) ([]models.HistoryEntry, bool, error)
	Count(ctx context.Context) (uint64, error)
	Stats(ctx context.Context) (models.Stats, error)
}

// commitTime keeps lastChecked non-decreasing per account: a write whose
// clock reading is older than the stored record reuses the stored time.
func commitTime(at, previous time.Time) time.Time {
	at = at.UTC()
	if at.Before(previous) {
		return previous
	}
	return at
}
