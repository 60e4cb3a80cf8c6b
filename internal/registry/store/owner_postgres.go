package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"autoshield/pkg/domain"
	"autoshield/pkg/platform/sentinel"
)

// ClaimOwner stores owner as the registry authority unless one is already
// stored, and returns the stored owner.
func (s *PostgresStore) ClaimOwner(ctx context.Context, owner domain.Address) (domain.Address, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO registry_authority (id, owner) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		owner.Hex(),
	); err != nil {
		return domain.ZeroAddress, fmt.Errorf("claim registry authority: %w", err)
	}
	return s.LoadOwner(ctx)
}

// LoadOwner returns the stored authority, or sentinel.ErrNotFound.
func (s *PostgresStore) LoadOwner(ctx context.Context) (domain.Address, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner FROM registry_authority WHERE id = 1`).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ZeroAddress, sentinel.ErrNotFound
		}
		return domain.ZeroAddress, fmt.Errorf("load registry authority: %w", err)
	}
	addr, err := domain.ParseAddress(owner)
	if err != nil {
		return domain.ZeroAddress, fmt.Errorf("stored authority %q: %w", owner, err)
	}
	return addr, nil
}

// SwapOwner replaces expected with next in one conditional update.
func (s *PostgresStore) SwapOwner(ctx context.Context, expected, next domain.Address) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE registry_authority SET owner = $2, updated_at = now() WHERE id = 1 AND owner = $1`,
		expected.Hex(), next.Hex(),
	)
	if err != nil {
		return false, fmt.Errorf("swap registry authority: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap registry authority: %w", err)
	}
	return n == 1, nil
}
