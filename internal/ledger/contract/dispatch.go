package contract

import (
	"bytes"
	"context"
	"encoding/json"

	dErrors "idledger/pkg/errors"
)

// Operation names exposed at the contract boundary. The gateway invokes
// these by name with a JSON-encoded typed request and receives a JSON
// response.
const (
	OpMint           = "MintAsset"
	OpVerify         = "VerifyAsset"
	OpRevoke         = "RevokeAsset"
	OpRenew          = "RenewAsset"
	OpBulkMint       = "BulkMint"
	OpBulkVerify     = "BulkVerify"
	OpQueryBySubject = "QueryBySubject"
	OpQueryByIssuer  = "QueryByIssuer"
	OpGetStats       = "GetStats"
)

var mutatingOps = map[string]bool{
	OpMint:     true,
	OpRevoke:   true,
	OpRenew:    true,
	OpBulkMint: true,
}

// IsMutating reports whether op must go through the submit (ordering) path.
// Read operations must use evaluate; the gateway enforces the split.
func IsMutating(op string) bool { return mutatingOps[op] }

// KnownOp reports whether op is a contract operation at all.
func KnownOp(op string) bool {
	switch op {
	case OpMint, OpVerify, OpRevoke, OpRenew, OpBulkMint, OpBulkVerify,
		OpQueryBySubject, OpQueryByIssuer, OpGetStats:
		return true
	}
	return false
}

// decode unmarshals a request payload strictly: unknown fields are a
// validation error, not something to ignore.
func decode[T any](payload []byte, into *T) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "malformed request payload")
	}
	return nil
}

func respond(result any) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode response")
	}
	return raw, nil
}

// Dispatch routes a named operation to its handler. This is the single
// entry point the gateway invokes; it validates the payload against the
// operation's typed request schema before any business logic runs.
func (c *IdentityContract) Dispatch(ctx context.Context, op string, payload []byte) ([]byte, error) {
	switch op {
	case OpMint:
		var req MintRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		receipt, err := c.MintAsset(ctx, req)
		if err != nil {
			return nil, err
		}
		return respond(receipt)
	case OpVerify:
		var req VerifyRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		result, err := c.VerifyAsset(ctx, req)
		if err != nil {
			return nil, err
		}
		return respond(result)
	case OpRevoke:
		var req RevokeRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		receipt, err := c.RevokeAsset(ctx, req)
		if err != nil {
			return nil, err
		}
		return respond(receipt)
	case OpRenew:
		var req RenewRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		receipt, err := c.RenewAsset(ctx, req)
		if err != nil {
			return nil, err
		}
		return respond(receipt)
	case OpBulkMint:
		var req BulkMintRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		result, err := c.BulkMint(ctx, req)
		if err != nil {
			return nil, err
		}
		return respond(result)
	case OpBulkVerify:
		var req BulkVerifyRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		result, err := c.BulkVerify(ctx, req)
		if err != nil {
			return nil, err
		}
		return respond(result)
	case OpQueryBySubject:
		var req QueryRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		result, err := c.QueryBySubject(ctx, req)
		if err != nil {
			return nil, err
		}
		return respond(result)
	case OpQueryByIssuer:
		var req QueryRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		result, err := c.QueryByIssuer(ctx, req)
		if err != nil {
			return nil, err
		}
		return respond(result)
	case OpGetStats:
		stats, err := c.GetStats(ctx)
		if err != nil {
			return nil, err
		}
		return respond(stats)
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown operation %q", op)
	}
}
