package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"idledger/internal/gateway"
	"idledger/internal/keys"
	"idledger/internal/ledger"
	"idledger/internal/ledger/contract"
	"idledger/internal/metrics"
	dErrors "idledger/pkg/errors"
	"idledger/pkg/platform/httputil"
	"idledger/pkg/requestcontext"
)

// Ledger is the gateway surface the handlers need. *gateway.Client
// satisfies it.
type Ledger interface {
	SubmitTransaction(ctx context.Context, op string, payload []byte) ([]byte, error)
	EvaluateTransaction(ctx context.Context, op string, payload []byte) ([]byte, error)
	GetNetworkStatus() gateway.Status
}

// AssetHandler serves the public asset endpoints. It is a thin layer: it
// authenticates, signs, and delegates to the contract through the gateway.
type AssetHandler struct {
	ledger  Ledger
	keys    *keys.Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewAssetHandler constructs the public handler.
func NewAssetHandler(ledgerClient Ledger, keySvc *keys.Service, logger *slog.Logger, m *metrics.Metrics) *AssetHandler {
	return &AssetHandler{ledger: ledgerClient, keys: keySvc, logger: logger, metrics: m}
}

// Register mounts the public asset endpoints.
func (h *AssetHandler) Register(r chi.Router) {
	r.Post("/assets", h.HandleMint)
	r.Get("/assets/{id}", h.HandleVerify)
	r.Post("/assets/bulk-verify", h.HandleBulkVerify)
	r.Post("/assets/{id}/revoke", h.HandleRevoke)
	r.Post("/assets/{id}/renew", h.HandleRenew)
	r.Get("/subjects/{subjectID}/assets", h.HandleQueryBySubject)
	r.Get("/issuers/{issuerID}/assets", h.HandleQueryByIssuer)
}

// MintAssetRequest is the public mint payload. The server generates the
// issuer signature; callers never supply one.
type MintAssetRequest struct {
	ID              string                `json:"id,omitempty"`
	SubjectID       string                `json:"subjectId"`
	KYCHash         string                `json:"kycHash"`
	DocumentHashes  []ledger.DocumentHash `json:"documentHashes,omitempty"`
	ExpiryTimestamp int64                 `json:"expiryTimestamp"`
}

// HandleMint handles POST /assets. The authenticated actor is the issuer
// of record.
func (h *AssetHandler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.ActorID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[MintAssetRequest](w, r)
	if !ok {
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	sig, err := h.keys.GenerateSignature(req.ID, req.KYCHash, actor, requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	payload, err := json.Marshal(contract.MintRequest{
		ID:                 req.ID,
		SubjectID:          req.SubjectID,
		IssuerID:           actor,
		KYCHash:            req.KYCHash,
		DocumentHashes:     req.DocumentHashes,
		ExpiryTimestamp:    req.ExpiryTimestamp,
		Signature:          sig.Value,
		SignatureTimestamp: sig.Timestamp,
	})
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "encode mint request"))
		return
	}

	raw, err := h.ledger.SubmitTransaction(ctx, contract.OpMint, payload)
	h.metrics.ObserveGatewayLatency(contract.OpMint, time.Since(start))
	if err != nil {
		h.metrics.IncrementLedgerOp(contract.OpMint, string(dErrors.CodeOf(err)))
		h.logger.ErrorContext(ctx, "mint failed",
			"request_id", requestcontext.RequestID(ctx),
			"issuer", actor,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.metrics.IncrementLedgerOp(contract.OpMint, "")
	h.logger.InfoContext(ctx, "asset minted",
		"request_id", requestcontext.RequestID(ctx),
		"asset_id", req.ID,
		"issuer", actor,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeRaw(w, http.StatusCreated, raw)
}

// HandleVerify handles GET /assets/{id}. The optional kycHash query
// parameter asks for a hash comparison on top of the status check.
// Invalid outcomes are 200 responses with valid=false, not errors.
func (h *AssetHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payload, err := json.Marshal(contract.VerifyRequest{
		ID:      chi.URLParam(r, "id"),
		KYCHash: r.URL.Query().Get("kycHash"),
	})
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "encode verify request"))
		return
	}
	raw, err := h.ledger.EvaluateTransaction(ctx, contract.OpVerify, payload)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var result contract.VerificationResult
	if err := json.Unmarshal(raw, &result); err == nil {
		reason := result.Reason
		if result.Valid {
			reason = "valid"
		}
		h.metrics.IncrementVerifyOutcome(reason)
	}
	writeRaw(w, http.StatusOK, raw)
}

// BulkVerifyHTTPRequest lists the assets to verify in one call.
type BulkVerifyHTTPRequest struct {
	IDs []string `json:"ids"`
}

// HandleBulkVerify handles POST /assets/bulk-verify.
func (h *AssetHandler) HandleBulkVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[BulkVerifyHTTPRequest](w, r)
	if !ok {
		return
	}
	payload, err := json.Marshal(contract.BulkVerifyRequest{IDs: req.IDs})
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "encode bulk verify request"))
		return
	}
	raw, err := h.ledger.EvaluateTransaction(ctx, contract.OpBulkVerify, payload)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

// RevokeAssetRequest carries the mandatory revocation reason.
type RevokeAssetRequest struct {
	Reason string `json:"reason"`
}

// HandleRevoke handles POST /assets/{id}/revoke. The authenticated actor
// is recorded as the revoker.
func (h *AssetHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.ActorID(ctx)

	req, ok := httputil.DecodeAndPrepare[RevokeAssetRequest](w, r)
	if !ok {
		return
	}
	payload, err := json.Marshal(contract.RevokeRequest{
		ID:        chi.URLParam(r, "id"),
		Reason:    req.Reason,
		RevokedBy: actor,
	})
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "encode revoke request"))
		return
	}
	raw, err := h.ledger.SubmitTransaction(ctx, contract.OpRevoke, payload)
	if err != nil {
		h.metrics.IncrementLedgerOp(contract.OpRevoke, string(dErrors.CodeOf(err)))
		httputil.WriteError(w, err)
		return
	}
	h.metrics.IncrementLedgerOp(contract.OpRevoke, "")
	h.logger.InfoContext(ctx, "asset revoked",
		"request_id", requestcontext.RequestID(ctx),
		"asset_id", chi.URLParam(r, "id"),
		"revoked_by", actor,
	)
	writeRaw(w, http.StatusOK, raw)
}

// RenewAssetRequest carries the new expiry.
type RenewAssetRequest struct {
	NewExpiry int64 `json:"newExpiry"`
}

// HandleRenew handles POST /assets/{id}/renew.
func (h *AssetHandler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.ActorID(ctx)

	req, ok := httputil.DecodeAndPrepare[RenewAssetRequest](w, r)
	if !ok {
		return
	}
	payload, err := json.Marshal(contract.RenewRequest{
		ID:        chi.URLParam(r, "id"),
		NewExpiry: req.NewExpiry,
		RenewedBy: actor,
	})
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "encode renew request"))
		return
	}
	raw, err := h.ledger.SubmitTransaction(ctx, contract.OpRenew, payload)
	if err != nil {
		h.metrics.IncrementLedgerOp(contract.OpRenew, string(dErrors.CodeOf(err)))
		httputil.WriteError(w, err)
		return
	}
	h.metrics.IncrementLedgerOp(contract.OpRenew, "")
	writeRaw(w, http.StatusOK, raw)
}

// HandleQueryBySubject handles GET /subjects/{subjectID}/assets.
func (h *AssetHandler) HandleQueryBySubject(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, contract.OpQueryBySubject, chi.URLParam(r, "subjectID"))
}

// HandleQueryByIssuer handles GET /issuers/{issuerID}/assets.
func (h *AssetHandler) HandleQueryByIssuer(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, contract.OpQueryByIssuer, chi.URLParam(r, "issuerID"))
}

func (h *AssetHandler) query(w http.ResponseWriter, r *http.Request, op, id string) {
	payload, err := json.Marshal(contract.QueryRequest{ID: id})
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "encode query request"))
		return
	}
	raw, err := h.ledger.EvaluateTransaction(r.Context(), op, payload)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

// writeRaw passes an already-encoded contract response through unchanged.
func writeRaw(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
