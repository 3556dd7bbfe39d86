package contract

import (
	"context"
	"strings"

	"idledger/internal/ledger"
	dErrors "idledger/pkg/errors"
)

// QueryBySubject returns the public-safe projection of every asset held by
// a subject, via the subject secondary index.
func (c *IdentityContract) QueryBySubject(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	return c.queryIndex(ctx, subjectPrefix, req.ID)
}

// QueryByIssuer returns the public-safe projection of every asset minted
// by an issuer, via the issuer secondary index.
func (c *IdentityContract) QueryByIssuer(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	return c.queryIndex(ctx, issuerPrefix, req.ID)
}

func (c *IdentityContract) queryIndex(ctx context.Context, prefix, id string) (*QueryResult, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "query id is required")
	}
	scan := prefix + id + "/"
	keys, err := c.state.Keys(ctx, scan)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "scan index")
	}
	result := &QueryResult{Assets: make([]ledger.PublicProjection, 0, len(keys))}
	for _, key := range keys {
		assetID := strings.TrimPrefix(key, scan)
		asset, err := c.getAsset(ctx, assetID)
		if err != nil {
			// An index entry without its asset means a corrupted write path;
			// surface it rather than silently dropping the row.
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "hydrate indexed asset "+assetID)
		}
		result.Assets = append(result.Assets, asset.Public())
	}
	return result, nil
}

// GetStats counts assets by status. Used by the admin health report.
func (c *IdentityContract) GetStats(ctx context.Context) (*Stats, error) {
	keys, err := c.state.Keys(ctx, assetPrefix)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "scan assets")
	}
	stats := &Stats{}
	for _, key := range keys {
		asset, err := c.getAsset(ctx, strings.TrimPrefix(key, assetPrefix))
		if err != nil {
			return nil, err
		}
		stats.Total++
		switch asset.Status {
		case ledger.StatusActive:
			stats.Active++
		case ledger.StatusRevoked:
			stats.Revoked++
		}
	}
	return stats, nil
}
