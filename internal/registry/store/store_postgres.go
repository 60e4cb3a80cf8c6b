package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"autoshield/internal/registry/models"
	"autoshield/pkg/domain"
	"autoshield/pkg/platform/sentinel"
	"autoshield/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// Tables lists the registry tables, for test cleanup.
var Tables = []string{"verification_history", "verification_records", "verification_counter", "registry_authority"}

// PostgresStore persists registry state in PostgreSQL. Writes lock the single
// counter row, so writes from every instance sharing the database are
// serialized in commit order.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the registry tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate registry schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Apply(ctx context.Context, w models.Write) (models.Commit, error) {
	var commit models.Commit
	err := tx.RunInTx(ctx, s.db, func(ctx context.Context, dbTx *sql.Tx) error {
		var total uint64
		if err := dbTx.QueryRowContext(ctx,
			`SELECT total FROM verification_counter WHERE id = 1 FOR UPDATE`,
		).Scan(&total); err != nil {
			return fmt.Errorf("lock write counter: %w", err)
		}

		var (
			previous   time.Time
			historyLen uint64
		)
		err := dbTx.QueryRowContext(ctx,
			`SELECT last_checked, history_len FROM verification_records WHERE address = $1`,
			w.Address.Hex(),
		).Scan(&previous, &historyLen)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("load verification record: %w", err)
		}

		at := commitTime(w.At, previous).Truncate(time.Microsecond)
		seq := historyLen + 1
		score := strconv.FormatUint(w.ConfidenceScore, 10)

		if _, err := dbTx.ExecContext(ctx, `
			INSERT INTO verification_records (address, status, attestation_ref, last_checked, confidence_score, history_len)
			VALUES ($1, $2, $3, $4, $5::numeric, $6)
			ON CONFLICT (address) DO UPDATE SET
				status = EXCLUDED.status,
				attestation_ref = EXCLUDED.attestation_ref,
				last_checked = EXCLUDED.last_checked,
				confidence_score = EXCLUDED.confidence_score,
				history_len = EXCLUDED.history_len
		`, w.Address.Hex(), int16(w.Status), w.AttestationRef, at, score, int64(seq)); err != nil {
			return fmt.Errorf("upsert verification record: %w", err)
		}

		if _, err := dbTx.ExecContext(ctx, `
			INSERT INTO verification_history (address, seq, recorded_at, status, confidence_score)
			VALUES ($1, $2, $3, $4, $5::numeric)
		`, w.Address.Hex(), int64(seq), at, int16(w.Status), score); err != nil {
			return fmt.Errorf("append verification history: %w", err)
		}

		if err := dbTx.QueryRowContext(ctx,
			`UPDATE verification_counter SET total = total + 1 WHERE id = 1 RETURNING total`,
		).Scan(&total); err != nil {
			return fmt.Errorf("increment write counter: %w", err)
		}

		commit = models.Commit{
			Record: models.Record{
				Address:         w.Address,
				Status:          w.Status,
				AttestationRef:  w.AttestationRef,
				LastChecked:     at,
				ConfidenceScore: w.ConfidenceScore,
				Seq:             seq,
			},
			Entry: models.HistoryEntry{
				Seq:             seq,
				Timestamp:       at,
				Status:          w.Status,
				ConfidenceScore: w.ConfidenceScore,
			},
			Count: total,
		}
		return nil
	})
	if err != nil {
		return models.Commit{}, err
	}
	return commit, nil
}

const selectRecord = `
	SELECT address, status, attestation_ref, last_checked, confidence_score::text, history_len
	FROM verification_records`

func (s *PostgresStore) GetRecord(ctx context.Context, addr domain.Address) (models.Record, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE address = $1`, addr.Hex())
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Record{}, sentinel.ErrNotFound
		}
		return models.Record{}, fmt.Errorf("find verification record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) GetRecords(ctx context.Context, addrs []domain.Address) (map[domain.Address]models.Record, error) {
	out := make(map[domain.Address]models.Record, len(addrs))
	if len(addrs) == 0 {
		return out, nil
	}
	keys := make([]string, len(addrs))
	for i, addr := range addrs {
		keys[i] = addr.Hex()
	}
	rows, err := s.db.QueryContext(ctx, selectRecord+` WHERE address = ANY($1::text[])`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("find verification records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification record: %w", err)
		}
		out[record.Address] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification records: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) History(ctx context.Context, addr domain.Address) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, recorded_at, status, confidence_score::text
		FROM verification_history
		WHERE address = $1
		ORDER BY seq
	`, addr.Hex())
	if err != nil {
		return nil, fmt.Errorf("list verification history: %w", err)
	}
	return scanHistory(rows)
}

func (s *PostgresStore) HistoryPage(ctx context.Context, addr domain.Address, after uint64, limit int) ([]models.HistoryEntry, bool, error) {
	if limit <= 0 {
		return []models.HistoryEntry{}, false, nil
	}
	// One extra row tells us whether another page exists.
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, recorded_at, status, confidence_score::text
		FROM verification_history
		WHERE address = $1 AND seq > $2
		ORDER BY seq
		LIMIT $3
	`, addr.Hex(), int64(after), limit+1)
	if err != nil {
		return nil, false, fmt.Errorf("page verification history: %w", err)
	}
	entries, err := scanHistory(rows)
	if err != nil {
		return nil, false, err
	}
	if len(entries) > limit {
		return entries[:limit], true, nil
	}
	return entries, false, nil
}

func (s *PostgresStore) Count(ctx context.Context) (uint64, error) {
	var total uint64
	if err := s.db.QueryRowContext(ctx, `SELECT total FROM verification_counter WHERE id = 1`).Scan(&total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read write counter: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (models.Stats, error) {
	stats := models.Stats{ByStatus: make(map[models.Status]uint64, len(models.Statuses))}
	for _, st := range models.Statuses {
		stats.ByStatus[st] = 0
	}

	total, err := s.Count(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	stats.TotalWrites = total

	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM verification_records GROUP BY status`)
	if err != nil {
		return models.Stats{}, fmt.Errorf("aggregate verification records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status int16
			n      uint64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return models.Stats{}, fmt.Errorf("scan status aggregate: %w", err)
		}
		stats.ByStatus[models.Status(status)] = n
		stats.Accounts += n
	}
	if err := rows.Err(); err != nil {
		return models.Stats{}, fmt.Errorf("iterate status aggregate: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.Record, error) {
	var (
		address string
		status  int16
		score   string
		seq     int64
		record  models.Record
	)
	if err := row.Scan(&address, &status, &record.AttestationRef, &record.LastChecked, &score, &seq); err != nil {
		return models.Record{}, err
	}
	addr, err := domain.ParseAddress(address)
	if err != nil {
		return models.Record{}, fmt.Errorf("stored address %q: %w", address, err)
	}
	if record.ConfidenceScore, err = strconv.ParseUint(score, 10, 64); err != nil {
		return models.Record{}, fmt.Errorf("stored confidence score %q: %w", score, err)
	}
	record.Address = addr
	record.Status = models.Status(status)
	record.LastChecked = record.LastChecked.UTC()
	record.Seq = uint64(seq)
	return record, nil
}

func scanHistory(rows *sql.Rows) ([]models.HistoryEntry, error) {
	defer rows.Close()
	entries := []models.HistoryEntry{}
	for rows.Next() {
		var (
			seq    int64
			status int16
			score  string
			entry  models.HistoryEntry
		)
		if err := rows.Scan(&seq, &entry.Timestamp, &status, &score); err != nil {
			return nil, fmt.Errorf("scan verification history: %w", err)
		}
		n, err := strconv.ParseUint(score, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("stored confidence score %q: %w", score, err)
		}
		entry.Seq = uint64(seq)
		entry.Status = models.Status(status)
		entry.ConfidenceScore = n
		entry.Timestamp = entry.Timestamp.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification history: %w", err)
	}
	return entries, nil
}
