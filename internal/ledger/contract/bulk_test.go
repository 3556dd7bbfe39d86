package contract

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idledger/internal/authz"
	"idledger/internal/keys"
	"idledger/internal/ledger/state"
	dErrors "idledger/pkg/errors"
	"idledger/pkg/requestcontext"
)

func newTestContract(t *testing.T) (*IdentityContract, *keys.Service, time.Time) {
	t.Helper()
	keySvc := keys.NewService(
		keys.WithEncryptionKey(bytes.Repeat([]byte{0x42}, 32)),
		keys.WithHMACSecret(bytes.Repeat([]byte{0x24}, 32)),
	)
	checker := authz.NewRoleChecker(map[string][]authz.Role{"issuer1": {authz.RoleIssuer}})
	now := time.Unix(1_700_000_000, 0)
	return New(state.NewMemoryStore(), keySvc, checker), keySvc, now
}

func signedMint(t *testing.T, keySvc *keys.Service, id, subject string, now time.Time) MintRequest {
	t.Helper()
	sig, err := keySvc.GenerateSignature(id, "hash-"+id, "issuer1", now)
	require.NoError(t, err)
	return MintRequest{
		ID:                 id,
		SubjectID:          subject,
		IssuerID:           "issuer1",
		KYCHash:            "hash-" + id,
		ExpiryTimestamp:    now.Add(24 * time.Hour).Unix(),
		Signature:          sig.Value,
		SignatureTimestamp: sig.Timestamp,
	}
}

func TestBulkMintIsolatesDuplicateFailure(t *testing.T) {
	c, keySvc, now := newTestContract(t)
	ctx := requestcontext.WithTime(context.Background(), now)

	// Pre-mint DID-2 so the middle batch entry collides.
	_, err := c.MintAsset(ctx, signedMint(t, keySvc, "DID-2", "existing", now))
	require.NoError(t, err)

	batch := BulkMintRequest{Entries: []MintRequest{
		signedMint(t, keySvc, "DID-1", "subjectA", now),
		signedMint(t, keySvc, "DID-2", "subjectB", now),
		signedMint(t, keySvc, "DID-3", "subjectC", now),
	}}
	result, err := c.BulkMint(ctx, batch)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	assert.True(t, result.Items[0].Success)
	assert.NotEmpty(t, result.Items[0].TxID)
	assert.False(t, result.Items[1].Success)
	assert.Equal(t, "DID-2", result.Items[1].ID)
	assert.Equal(t, string(dErrors.CodeConflict), result.Items[1].Code)
	assert.True(t, result.Items[2].Success)

	// The failed item leaked into nothing: siblings verify, and the
	// pre-existing DID-2 kept its original subject.
	for _, id := range []string{"DID-1", "DID-3"} {
		res, err := c.VerifyAsset(ctx, VerifyRequest{ID: id})
		require.NoError(t, err)
		assert.True(t, res.Valid, id)
	}
	existing, err := c.VerifyAsset(ctx, VerifyRequest{ID: "DID-2"})
	require.NoError(t, err)
	assert.Equal(t, "existing", existing.SubjectID)
}

func TestBulkMintRejectsEmptyBatch(t *testing.T) {
	c, _, now := newTestContract(t)
	ctx := requestcontext.WithTime(context.Background(), now)
	_, err := c.BulkMint(ctx, BulkMintRequest{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestBulkVerifyMixedOutcomes(t *testing.T) {
	c, keySvc, now := newTestContract(t)
	ctx := requestcontext.WithTime(context.Background(), now)

	_, err := c.MintAsset(ctx, signedMint(t, keySvc, "DID-1", "subjectA", now))
	require.NoError(t, err)
	_, err = c.MintAsset(ctx, signedMint(t, keySvc, "DID-2", "subjectB", now))
	require.NoError(t, err)
	_, err = c.RevokeAsset(ctx, RevokeRequest{ID: "DID-2", Reason: "fraud", RevokedBy: "issuer1"})
	require.NoError(t, err)

	result, err := c.BulkVerify(ctx, BulkVerifyRequest{IDs: []string{"DID-1", "DID-2", "DID-missing"}})
	require.NoError(t, err)
	require.Len(t, result.Results, 3)

	assert.True(t, result.Results[0].Valid)
	assert.False(t, result.Results[1].Valid)
	assert.Contains(t, result.Results[1].Reason, "REVOKED")
	assert.False(t, result.Results[2].Valid)
	assert.Equal(t, ReasonNotFound, result.Results[2].Reason)
}

func TestQueryBySubjectAndIssuer(t *testing.T) {
	c, keySvc, now := newTestContract(t)
	ctx := requestcontext.WithTime(context.Background(), now)

	_, err := c.MintAsset(ctx, signedMint(t, keySvc, "DID-1", "alice", now))
	require.NoError(t, err)
	_, err = c.MintAsset(ctx, signedMint(t, keySvc, "DID-2", "alice", now))
	require.NoError(t, err)
	_, err = c.MintAsset(ctx, signedMint(t, keySvc, "DID-3", "bob", now))
	require.NoError(t, err)

	bySubject, err := c.QueryBySubject(ctx, QueryRequest{ID: "alice"})
	require.NoError(t, err)
	require.Len(t, bySubject.Assets, 2)
	for _, asset := range bySubject.Assets {
		assert.Equal(t, "alice", asset.SubjectID)
	}

	byIssuer, err := c.QueryByIssuer(ctx, QueryRequest{ID: "issuer1"})
	require.NoError(t, err)
	assert.Len(t, byIssuer.Assets, 3)

	empty, err := c.QueryBySubject(ctx, QueryRequest{ID: "carol"})
	require.NoError(t, err)
	assert.Empty(t, empty.Assets)
}

func TestGetStats(t *testing.T) {
	c, keySvc, now := newTestContract(t)
	ctx := requestcontext.WithTime(context.Background(), now)

	_, err := c.MintAsset(ctx, signedMint(t, keySvc, "DID-1", "alice", now))
	require.NoError(t, err)
	_, err = c.MintAsset(ctx, signedMint(t, keySvc, "DID-2", "bob", now))
	require.NoError(t, err)
	_, err = c.RevokeAsset(ctx, RevokeRequest{ID: "DID-2", Reason: "fraud", RevokedBy: "issuer1"})
	require.NoError(t, err)

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Total: 2, Active: 1, Revoked: 1}, stats)
}

func TestDispatchTypedBoundary(t *testing.T) {
	c, keySvc, now := newTestContract(t)
	ctx := requestcontext.WithTime(context.Background(), now)

	t.Run("rejects unknown operation", func(t *testing.T) {
		_, err := c.Dispatch(ctx, "DropTables", nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		_, err := c.Dispatch(ctx, OpVerify, []byte(`{"id":"DID-1","bogus":true}`))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("verify roundtrip through dispatch", func(t *testing.T) {
		_, err := c.MintAsset(ctx, signedMint(t, keySvc, "DID-9", "dave", now))
		require.NoError(t, err)

		raw, err := c.Dispatch(ctx, OpVerify, []byte(`{"id":"DID-9"}`))
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"valid":true`)
	})

	t.Run("operation classification", func(t *testing.T) {
		assert.True(t, IsMutating(OpMint))
		assert.True(t, IsMutating(OpBulkMint))
		assert.False(t, IsMutating(OpVerify))
		assert.False(t, IsMutating(OpGetStats))
		assert.True(t, KnownOp(OpRenew))
		assert.False(t, KnownOp("Nope"))
	})
}
