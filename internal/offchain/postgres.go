package offchain

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"idledger/pkg/platform/sentinel"
)

// PostgresStore persists mappings durably. The primary-key constraint on
// asset_id enforces one mapping per asset at the database level.
//
// Schema:
//
//	CREATE TABLE offchain_mappings (
//	    asset_id   TEXT PRIMARY KEY,
//	    ciphertext JSONB NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func (s *PostgresStore) Put(ctx context.Context, mapping Mapping) error {
	raw, err := json.Marshal(mapping.Ciphertext)
	if err != nil {
		return fmt.Errorf("encode ciphertext: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO offchain_mappings (asset_id, ciphertext, created_at) VALUES ($1, $2, $3)`,
		mapping.AssetID, raw, mapping.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("%w: insert mapping: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, assetID string) (Mapping, error) {
	var (
		mapping Mapping
		raw     []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT asset_id, ciphertext, created_at FROM offchain_mappings WHERE asset_id = $1`,
		assetID,
	).Scan(&mapping.AssetID, &raw, &mapping.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Mapping{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: select mapping: %v", sentinel.ErrUnavailable, err)
	}
	if err := json.Unmarshal(raw, &mapping.Ciphertext); err != nil {
		return Mapping{}, fmt.Errorf("decode ciphertext: %w", err)
	}
	return mapping, nil
}
