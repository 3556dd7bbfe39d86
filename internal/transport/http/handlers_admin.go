package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"idledger/internal/admin"
	"idledger/internal/keys"
	"idledger/internal/ledger/contract"
	dErrors "idledger/pkg/errors"
	"idledger/pkg/platform/httputil"
	"idledger/pkg/requestcontext"
)

// AdminHandler serves the operator surface: bulk flows, health, audit and
// key rotation. The router guards every route with the admin token and a
// tighter rate limit.
type AdminHandler struct {
	svc    *admin.Service
	keys   *keys.Service
	ledger Ledger
	logger *slog.Logger
}

// NewAdminHandler constructs the admin handler.
func NewAdminHandler(svc *admin.Service, keySvc *keys.Service, ledgerClient Ledger, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, keys: keySvc, ledger: ledgerClient, logger: logger}
}

// Register mounts the admin endpoints.
func (h *AdminHandler) Register(r chi.Router) {
	r.Post("/identities/bulk-mint", h.HandleBulkMint)
	r.Post("/identities/bulk-revoke", h.HandleBulkRevoke)
	r.Get("/health", h.HandleHealth)
	r.Get("/audit", h.HandleAudit)
	r.Post("/keys/rotate", h.HandleRotateKey)
	r.Get("/stats", h.HandleStats)
}

// BulkMintHTTPRequest is the operator bulk-mint payload.
type BulkMintHTTPRequest struct {
	Actor    string                `json:"actor"`
	Subjects []admin.SubjectRecord `json:"subjects"`
}

// HandleBulkMint handles POST /admin/identities/bulk-mint.
func (h *AdminHandler) HandleBulkMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[BulkMintHTTPRequest](w, r)
	if !ok {
		return
	}
	if req.Actor == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "actor is required"))
		return
	}
	report, err := h.svc.BulkMintDigitalIdentities(ctx, req.Subjects, req.Actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "bulk mint handled",
		"request_id", requestcontext.RequestID(ctx),
		"actor", req.Actor,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, report)
}

// BulkRevokeHTTPRequest is the operator bulk-revoke payload.
type BulkRevokeHTTPRequest struct {
	Actor    string   `json:"actor"`
	AssetIDs []string `json:"assetIds"`
	Reason   string   `json:"reason"`
}

// HandleBulkRevoke handles POST /admin/identities/bulk-revoke.
func (h *AdminHandler) HandleBulkRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[BulkRevokeHTTPRequest](w, r)
	if !ok {
		return
	}
	if req.Actor == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "actor is required"))
		return
	}
	report, err := h.svc.BulkRevokeDigitalIdentities(ctx, req.AssetIDs, req.Reason, req.Actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleHealth handles GET /admin/health. Degraded systems still answer
// 200; the body carries the diagnosis.
func (h *AdminHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.svc.SystemHealth(r.Context()))
}

// HandleAudit handles GET /admin/audit?limit=&type=.
func (h *AdminHandler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}
	entries := h.svc.AuditTrail(limit, r.URL.Query().Get("type"))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// RotateKeyRequest names which key to rotate.
type RotateKeyRequest struct {
	Type string `json:"type"`
}

// HandleRotateKey handles POST /admin/keys/rotate. Material is generated
// server-side; operators never post raw keys over HTTP.
func (h *AdminHandler) HandleRotateKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[RotateKeyRequest](w, r)
	if !ok {
		return
	}
	var (
		generation int
		err        error
	)
	switch req.Type {
	case "encryption":
		generation, err = h.keys.RotateEncryptionKey(nil)
	case "hmac":
		generation, err = h.keys.RotateHMACSecret(nil)
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, `key type must be "encryption" or "hmac"`))
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "key rotated",
		"request_id", requestcontext.RequestID(ctx),
		"type", req.Type,
		"generation", generation,
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"type": req.Type, "generation": generation})
}

// HandleStats handles GET /admin/stats.
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	raw, err := h.ledger.EvaluateTransaction(r.Context(), contract.OpGetStats, nil)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}
