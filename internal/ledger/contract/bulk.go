package contract

import (
	"context"

	"golang.org/x/sync/errgroup"

	dErrors "idledger/pkg/errors"
)

// bulkVerifyParallelism bounds concurrent reads in BulkVerify.
const bulkVerifyParallelism = 8

// BulkMint processes entries sequentially (mutations serialize on the
// transaction lock anyway) and isolates failures per item. One bad entry
// is recorded and skipped; items already committed are never rolled back.
func (c *IdentityContract) BulkMint(ctx context.Context, req BulkMintRequest) (*BulkResult, error) {
	if len(req.Entries) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "entries are required")
	}
	result := &BulkResult{Items: make([]BulkItemResult, len(req.Entries))}
	for i, entry := range req.Entries {
		receipt, err := c.MintAsset(ctx, entry)
		if err != nil {
			result.Items[i] = BulkItemResult{
				ID:      entry.ID,
				Success: false,
				Code:    string(dErrors.CodeOf(err)),
				Reason:  err.Error(),
			}
			result.Failed++
			continue
		}
		result.Items[i] = BulkItemResult{ID: entry.ID, Success: true, TxID: receipt.TxID}
		result.Succeeded++
	}
	return result, nil
}

// BulkVerify evaluates each id independently with bounded parallelism.
// Verification outcomes (NOT_FOUND, EXPIRED, REVOKED) are results, not
// errors, so a batch only fails on infrastructure trouble.
func (c *IdentityContract) BulkVerify(ctx context.Context, req BulkVerifyRequest) (*BulkVerifyResult, error) {
	if len(req.IDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "ids are required")
	}
	results := make([]VerificationResult, len(req.IDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkVerifyParallelism)
	for i, id := range req.IDs {
		g.Go(func() error {
			res, err := c.VerifyAsset(gctx, VerifyRequest{ID: id})
			if err != nil {
				// Keep the batch alive: report the item as invalid with the
				// failure code instead of aborting sibling verifications.
				results[i] = VerificationResult{Valid: false, Reason: string(dErrors.CodeOf(err)), AssetID: id}
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &BulkVerifyResult{Results: results}, nil
}
