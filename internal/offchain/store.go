// Package offchain pairs an asset id with its encrypted sensitive payload.
// Only the payload's hash lives on-chain; the mapping here is the sole
// place the ciphertext exists. The ledger record stays authoritative: a
// mint must never fail because this store does, and VerifyAsset never
// reads it.
package offchain

import (
	"context"
	"time"

	"idledger/internal/keys"
)

// Mapping is one encrypted payload keyed by asset id. Exactly one mapping
// may exist per asset id; conflicting writes are rejected, never silently
// overwritten.
type Mapping struct {
	AssetID    string          `json:"assetId"`
	Ciphertext keys.Ciphertext `json:"ciphertext"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Store persists mappings. Implementations return sentinel.ErrConflict on
// a duplicate Put and sentinel.ErrNotFound on a missing Get.
type Store interface {
	Put(ctx context.Context, mapping Mapping) error
	Get(ctx context.Context, assetID string) (Mapping, error)
}
