// Package contract implements the identity asset state machine. It owns
// every DigitalIdentityAsset mutation: mint, verify, revoke, renew, the
// bulk variants, and the secondary-index queries. All state flows through a
// state.Store; all mutations pass the authorization checker and signature
// verification first.
package contract

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"idledger/internal/authz"
	"idledger/internal/events"
	"idledger/internal/keys"
	"idledger/internal/ledger"
	"idledger/internal/ledger/state"
	dErrors "idledger/pkg/errors"
	"idledger/pkg/platform/sentinel"
	"idledger/pkg/requestcontext"
)

// State key layout. Index entries live under their own prefixes and are
// written in the same serialized transaction as the asset, so the indexes
// can never diverge from the primary record.
const (
	assetPrefix   = "asset/"
	subjectPrefix = "idx/subject/"
	issuerPrefix  = "idx/issuer/"
)

// IdentityContract is the asset state machine. Mutations serialize on an
// internal lock, mirroring the ordering guarantee a ledger platform gives
// chaincode: no two mutations on the same world state interleave.
type IdentityContract struct {
	txMu   sync.Mutex
	state  state.Store
	keys   *keys.Service
	authz  authz.Checker
	events events.Sink
	logger *slog.Logger
}

// Option configures an IdentityContract.
type Option func(*IdentityContract)

// WithEventSink routes committed-transaction events to sink.
func WithEventSink(sink events.Sink) Option {
	return func(c *IdentityContract) { c.events = sink }
}

// WithLogger sets the contract logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *IdentityContract) { c.logger = logger }
}

// New builds the contract. The authorization checker is mandatory; there
// is no permissive default.
func New(store state.Store, keySvc *keys.Service, checker authz.Checker, opts ...Option) *IdentityContract {
	c := &IdentityContract{
		state:  store,
		keys:   keySvc,
		authz:  checker,
		events: events.Discard,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func assetKey(id string) string { return assetPrefix + id }

func (c *IdentityContract) getAsset(ctx context.Context, id string) (*ledger.DigitalIdentityAsset, error) {
	raw, err := c.state.Get(ctx, assetKey(id))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "asset %s does not exist", id)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "read asset")
	}
	var asset ledger.DigitalIdentityAsset
	if err := json.Unmarshal(raw, &asset); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode asset")
	}
	return &asset, nil
}

func (c *IdentityContract) putAsset(ctx context.Context, asset *ledger.DigitalIdentityAsset) error {
	raw, err := json.Marshal(asset)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode asset")
	}
	if err := c.state.Put(ctx, assetKey(asset.ID), raw); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "write asset")
	}
	return nil
}

func (c *IdentityContract) emit(ctx context.Context, event events.Event) {
	if err := c.events.Publish(ctx, event); err != nil {
		// Event delivery is best-effort after commit; the transaction result
		// is already final.
		c.logger.Warn("event publish failed", "type", event.Type, "asset_id", event.AssetID, "error", err)
	}
}

// MintAsset creates a new ACTIVE asset at version 1 and writes both
// secondary index entries in the same serialized transaction.
func (c *IdentityContract) MintAsset(ctx context.Context, req MintRequest) (*Receipt, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if req.ExpiryTimestamp <= now.Unix() {
		return nil, dErrors.New(dErrors.CodeValidation, "expiry timestamp must be in the future")
	}
	if err := c.authz.Authorize(ctx, req.IssuerID, authz.ActionMint); err != nil {
		return nil, err
	}
	if !c.keys.VerifySignature(req.ID, req.KYCHash, req.IssuerID, req.Signature, req.SignatureTimestamp) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "issuer signature verification failed")
	}

	c.txMu.Lock()
	defer c.txMu.Unlock()

	if _, err := c.state.Get(ctx, assetKey(req.ID)); err == nil {
		return nil, dErrors.Newf(dErrors.CodeConflict, "asset %s already exists", req.ID)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "check asset existence")
	}

	asset := &ledger.DigitalIdentityAsset{
		ID:              req.ID,
		SubjectID:       req.SubjectID,
		IssuerID:        req.IssuerID,
		KYCHash:         req.KYCHash,
		DocumentHashes:  req.DocumentHashes,
		Status:          ledger.StatusActive,
		ExpiryTimestamp: req.ExpiryTimestamp,
		MintedAt:        now.Unix(),
		LastUpdated:     now.Unix(),
		Version:         1,
		Signature:       req.Signature,
		SignedAt:        req.SignatureTimestamp,
	}
	if err := c.putAsset(ctx, asset); err != nil {
		return nil, err
	}
	if err := c.state.Put(ctx, subjectPrefix+req.SubjectID+"/"+req.ID, nil); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "write subject index")
	}
	if err := c.state.Put(ctx, issuerPrefix+req.IssuerID+"/"+req.ID, nil); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "write issuer index")
	}

	receipt := &Receipt{TxID: uuid.NewString(), AssetID: req.ID, Version: 1, Timestamp: now.Unix()}
	c.emit(ctx, events.Event{
		Type:      events.TypeMinted,
		AssetID:   req.ID,
		SubjectID: req.SubjectID,
		IssuerID:  req.IssuerID,
		Actor:     req.IssuerID,
		Timestamp: now.Unix(),
		TxID:      receipt.TxID,
	})
	c.logger.Info("asset minted", "asset_id", req.ID, "issuer", req.IssuerID, "tx_id", receipt.TxID)
	return receipt, nil
}

// VerifyAsset reports whether an asset is currently valid. Read-only: a
// lapsed expiry is reported as EXPIRED without touching stored status, so
// two reads straddling the expiry instant may disagree. That is an
// accepted consequence of lazy expiry.
func (c *IdentityContract) VerifyAsset(ctx context.Context, req VerifyRequest) (*VerificationResult, error) {
	if req.ID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "asset id is required")
	}
	asset, err := c.getAsset(ctx, req.ID)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return &VerificationResult{Valid: false, Reason: ReasonNotFound, AssetID: req.ID}, nil
	}
	if err != nil {
		return nil, err
	}
	if asset.Status != ledger.StatusActive {
		return &VerificationResult{Valid: false, Reason: string(asset.Status), AssetID: req.ID}, nil
	}
	if asset.ExpiredAt(requestcontext.Now(ctx)) {
		return &VerificationResult{Valid: false, Reason: ReasonExpired, AssetID: req.ID}, nil
	}
	if req.KYCHash != "" && req.KYCHash != asset.KYCHash {
		return &VerificationResult{Valid: false, Reason: ReasonHashMismatch, AssetID: req.ID}, nil
	}
	return &VerificationResult{
		Valid:           true,
		AssetID:         asset.ID,
		SubjectID:       asset.SubjectID,
		IssuerID:        asset.IssuerID,
		ExpiryTimestamp: asset.ExpiryTimestamp,
		Version:         asset.Version,
		MintedAt:        asset.MintedAt,
	}, nil
}

// RevokeAsset permanently revokes an asset. ACTIVE → REVOKED is terminal;
// revoking an already-revoked asset is a conflict.
func (c *IdentityContract) RevokeAsset(ctx context.Context, req RevokeRequest) (*Receipt, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := c.authz.Authorize(ctx, req.RevokedBy, authz.ActionRevoke); err != nil {
		return nil, err
	}

	c.txMu.Lock()
	defer c.txMu.Unlock()

	asset, err := c.getAsset(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if asset.Status == ledger.StatusRevoked {
		return nil, dErrors.Newf(dErrors.CodeConflict, "asset %s is already revoked", req.ID)
	}

	now := requestcontext.Now(ctx)
	ts := now.Unix()
	asset.Status = ledger.StatusRevoked
	asset.RevokedAt = &ts
	asset.RevokedBy = req.RevokedBy
	asset.Reason = req.Reason
	asset.LastUpdated = ts
	asset.Version++

	if err := c.putAsset(ctx, asset); err != nil {
		return nil, err
	}

	receipt := &Receipt{TxID: uuid.NewString(), AssetID: req.ID, Version: asset.Version, Timestamp: ts}
	c.emit(ctx, events.Event{
		Type:      events.TypeRevoked,
		AssetID:   req.ID,
		SubjectID: asset.SubjectID,
		IssuerID:  asset.IssuerID,
		Actor:     req.RevokedBy,
		Reason:    req.Reason,
		Timestamp: ts,
		TxID:      receipt.TxID,
	})
	c.logger.Info("asset revoked", "asset_id", req.ID, "revoked_by", req.RevokedBy, "tx_id", receipt.TxID)
	return receipt, nil
}

// RenewAsset extends an ACTIVE asset's expiry. A lazily-expired asset that
// was never revoked renews like any other: renewal restores validity
// without a separate reactivation step. REVOKED assets cannot renew.
func (c *IdentityContract) RenewAsset(ctx context.Context, req RenewRequest) (*Receipt, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if req.NewExpiry <= now.Unix() {
		return nil, dErrors.New(dErrors.CodeValidation, "new expiry must be in the future")
	}
	if err := c.authz.Authorize(ctx, req.RenewedBy, authz.ActionRenew); err != nil {
		return nil, err
	}

	c.txMu.Lock()
	defer c.txMu.Unlock()

	asset, err := c.getAsset(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if asset.Status != ledger.StatusActive {
		return nil, dErrors.Newf(dErrors.CodeConflict, "asset %s is %s and cannot be renewed", req.ID, asset.Status)
	}

	ts := now.Unix()
	asset.ExpiryTimestamp = req.NewExpiry
	asset.RenewedAt = &ts
	asset.RenewedBy = req.RenewedBy
	asset.LastUpdated = ts
	asset.Version++

	if err := c.putAsset(ctx, asset); err != nil {
		return nil, err
	}

	receipt := &Receipt{TxID: uuid.NewString(), AssetID: req.ID, Version: asset.Version, Timestamp: ts}
	c.emit(ctx, events.Event{
		Type:      events.TypeRenewed,
		AssetID:   req.ID,
		SubjectID: asset.SubjectID,
		IssuerID:  asset.IssuerID,
		Actor:     req.RenewedBy,
		Timestamp: ts,
		TxID:      receipt.TxID,
	})
	c.logger.Info("asset renewed", "asset_id", req.ID, "renewed_by", req.RenewedBy, "new_expiry", req.NewExpiry)
	return receipt, nil
}
