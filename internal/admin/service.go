// Package admin orchestrates bulk identity operations and system health
// reporting on top of the gateway. It owns the privacy boundary for bulk
// flows: raw KYC payloads are hashed before anything crosses the ledger
// boundary and the ciphertext goes to the off-chain store only.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"idledger/internal/audit"
	"idledger/internal/gateway"
	"idledger/internal/keys"
	"idledger/internal/ledger"
	"idledger/internal/ledger/contract"
	"idledger/internal/metrics"
	"idledger/internal/offchain"
	dErrors "idledger/pkg/errors"
	"idledger/pkg/requestcontext"
)

// Ledger is the gateway surface the orchestrator needs. *gateway.Client
// satisfies it.
type Ledger interface {
	SubmitTransaction(ctx context.Context, op string, payload []byte) ([]byte, error)
	EvaluateTransaction(ctx context.Context, op string, payload []byte) ([]byte, error)
	GetNetworkStatus() gateway.Status
}

// SubjectRecord is one enrollment handed to a bulk mint. KYCData is the raw
// sensitive payload; it never leaves this package unhashed or unencrypted.
type SubjectRecord struct {
	SubjectID       string                `json:"subjectId"`
	IssuerID        string                `json:"issuerId"`
	KYCData         string                `json:"kycData"`
	DocumentHashes  []ledger.DocumentHash `json:"documentHashes,omitempty"`
	ExpiryTimestamp int64                 `json:"expiryTimestamp"`
}

// MintOutcome reports one subject of a bulk mint.
type MintOutcome struct {
	SubjectID      string `json:"subjectId"`
	AssetID        string `json:"assetId,omitempty"`
	Success        bool   `json:"success"`
	TxID           string `json:"txId,omitempty"`
	Code           string `json:"code,omitempty"`
	Reason         string `json:"reason,omitempty"`
	OffchainStored bool   `json:"offchainStored"`
}

// BulkReport aggregates a bulk operation.
type BulkReport struct {
	Outcomes  []MintOutcome `json:"outcomes"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"durationNs"`
}

// RevokeOutcome reports one asset of a bulk revocation.
type RevokeOutcome struct {
	AssetID string `json:"assetId"`
	Success bool   `json:"success"`
	TxID    string `json:"txId,omitempty"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// RevokeReport aggregates a bulk revocation.
type RevokeReport struct {
	Outcomes  []RevokeOutcome `json:"outcomes"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Duration  time.Duration   `json:"durationNs"`
}

// Service coordinates bulk mints, bulk revocations, health checks and the
// audit trail.
type Service struct {
	ledger   Ledger
	keys     *keys.Service
	offchain offchain.Store
	auditLog *audit.Log
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService builds the orchestrator. A nil offchain store disables
// ciphertext persistence; mints still succeed.
func NewService(ledgerClient Ledger, keySvc *keys.Service, store offchain.Store, auditLog *audit.Log, opts ...Option) *Service {
	s := &Service{
		ledger:   ledgerClient,
		keys:     keySvc,
		offchain: store,
		auditLog: auditLog,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BulkMintDigitalIdentities enrolls a batch of subjects. Each subject is
// processed independently: a duplicate or a rejected mint fails that
// outcome only. The off-chain write is best effort and never fails a mint.
func (s *Service) BulkMintDigitalIdentities(ctx context.Context, subjects []SubjectRecord, actor string) (BulkReport, error) {
	if len(subjects) == 0 {
		return BulkReport{}, dErrors.New(dErrors.CodeValidation, "at least one subject is required")
	}
	start := time.Now()
	s.auditLog.Append(ctx, audit.TypeBulkMintStart, actor, map[string]any{"count": len(subjects)})
	s.metrics.ObserveBulkBatchSize("mint", len(subjects))

	report := BulkReport{Outcomes: make([]MintOutcome, 0, len(subjects))}
	for _, subject := range subjects {
		outcome := s.mintOne(ctx, subject)
		if outcome.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	report.Duration = time.Since(start)

	s.auditLog.Append(ctx, audit.TypeBulkMintComplete, actor, map[string]any{
		"count":       len(subjects),
		"succeeded":   report.Succeeded,
		"failed":      report.Failed,
		"duration_ms": report.Duration.Milliseconds(),
	})
	s.logger.Info("bulk mint finished",
		"actor", actor, "count", len(subjects),
		"succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

func (s *Service) mintOne(ctx context.Context, subject SubjectRecord) MintOutcome {
	outcome := MintOutcome{SubjectID: subject.SubjectID}
	if subject.SubjectID == "" || subject.IssuerID == "" || subject.KYCData == "" {
		outcome.Code = string(dErrors.CodeValidation)
		outcome.Reason = "subject id, issuer id and kyc data are required"
		return outcome
	}

	existing, err := s.activeAssetsForSubject(ctx, subject.SubjectID)
	if err != nil {
		outcome.Code = string(dErrors.CodeOf(err))
		outcome.Reason = "duplicate check failed: " + err.Error()
		return outcome
	}
	if existing > 0 {
		outcome.Code = string(dErrors.CodeConflict)
		outcome.Reason = "subject already holds an active identity asset"
		return outcome
	}

	assetID := uuid.NewString()
	kycHash := keys.HashForPrivacy(subject.KYCData)
	sig, err := s.keys.GenerateSignature(assetID, kycHash, subject.IssuerID, requestcontext.Now(ctx))
	if err != nil {
		outcome.Code = string(dErrors.CodeOf(err))
		outcome.Reason = err.Error()
		return outcome
	}

	payload, err := json.Marshal(contract.MintRequest{
		ID:                 assetID,
		SubjectID:          subject.SubjectID,
		IssuerID:           subject.IssuerID,
		KYCHash:            kycHash,
		DocumentHashes:     subject.DocumentHashes,
		ExpiryTimestamp:    subject.ExpiryTimestamp,
		Signature:          sig.Value,
		SignatureTimestamp: sig.Timestamp,
	})
	if err != nil {
		outcome.Code = string(dErrors.CodeInternal)
		outcome.Reason = err.Error()
		return outcome
	}

	raw, err := s.ledger.SubmitTransaction(ctx, contract.OpMint, payload)
	if err != nil {
		outcome.Code = string(dErrors.CodeOf(err))
		outcome.Reason = err.Error()
		s.metrics.IncrementLedgerOp(contract.OpMint, outcome.Code)
		return outcome
	}
	var receipt contract.Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		outcome.Code = string(dErrors.CodeInternal)
		outcome.Reason = "decode receipt: " + err.Error()
		return outcome
	}
	outcome.AssetID = assetID
	outcome.TxID = receipt.TxID
	outcome.Success = true
	s.metrics.IncrementLedgerOp(contract.OpMint, "")

	outcome.OffchainStored = s.storeOffchain(ctx, assetID, subject.KYCData)
	return outcome
}

// storeOffchain encrypts and persists the raw KYC payload. Failure is
// logged, not propagated: the on-chain record is already committed.
func (s *Service) storeOffchain(ctx context.Context, assetID, kycData string) bool {
	if s.offchain == nil {
		return false
	}
	ct, err := s.keys.Encrypt([]byte(kycData))
	if err != nil {
		s.logger.Warn("off-chain encryption failed", "asset_id", assetID, "error", err)
		return false
	}
	mapping := offchain.Mapping{
		AssetID:    assetID,
		Ciphertext: ct,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.offchain.Put(ctx, mapping); err != nil {
		s.logger.Warn("off-chain mapping write failed", "asset_id", assetID, "error", err)
		return false
	}
	return true
}

func (s *Service) activeAssetsForSubject(ctx context.Context, subjectID string) (int, error) {
	payload, err := json.Marshal(contract.QueryRequest{ID: subjectID})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "encode query")
	}
	raw, err := s.ledger.EvaluateTransaction(ctx, contract.OpQueryBySubject, payload)
	if err != nil {
		return 0, err
	}
	var result contract.QueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "decode query result")
	}
	active := 0
	for _, asset := range result.Assets {
		if asset.Status == ledger.StatusActive {
			active++
		}
	}
	return active, nil
}

// BulkRevokeDigitalIdentities revokes a batch of assets with per-item
// isolation.
func (s *Service) BulkRevokeDigitalIdentities(ctx context.Context, assetIDs []string, reason, actor string) (RevokeReport, error) {
	if len(assetIDs) == 0 {
		return RevokeReport{}, dErrors.New(dErrors.CodeValidation, "at least one asset id is required")
	}
	if reason == "" {
		return RevokeReport{}, dErrors.New(dErrors.CodeValidation, "revocation reason is required")
	}
	start := time.Now()
	s.auditLog.Append(ctx, audit.TypeBulkRevokeStart, actor, map[string]any{"count": len(assetIDs)})
	s.metrics.ObserveBulkBatchSize("revoke", len(assetIDs))

	report := RevokeReport{Outcomes: make([]RevokeOutcome, 0, len(assetIDs))}
	for _, assetID := range assetIDs {
		outcome := RevokeOutcome{AssetID: assetID}
		payload, err := json.Marshal(contract.RevokeRequest{ID: assetID, Reason: reason, RevokedBy: actor})
		if err != nil {
			outcome.Code = string(dErrors.CodeInternal)
			outcome.Reason = err.Error()
			report.Failed++
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}
		raw, err := s.ledger.SubmitTransaction(ctx, contract.OpRevoke, payload)
		if err != nil {
			outcome.Code = string(dErrors.CodeOf(err))
			outcome.Reason = err.Error()
			s.metrics.IncrementLedgerOp(contract.OpRevoke, outcome.Code)
			report.Failed++
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}
		var receipt contract.Receipt
		if err := json.Unmarshal(raw, &receipt); err == nil {
			outcome.TxID = receipt.TxID
		}
		outcome.Success = true
		s.metrics.IncrementLedgerOp(contract.OpRevoke, "")
		report.Succeeded++
		report.Outcomes = append(report.Outcomes, outcome)
	}
	report.Duration = time.Since(start)

	s.auditLog.Append(ctx, audit.TypeBulkRevokeComplete, actor, map[string]any{
		"count":       len(assetIDs),
		"succeeded":   report.Succeeded,
		"failed":      report.Failed,
		"duration_ms": report.Duration.Milliseconds(),
	})
	s.logger.Info("bulk revoke finished",
		"actor", actor, "count", len(assetIDs),
		"succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// AuditTrail returns recorded admin operations, most recent first.
func (s *Service) AuditTrail(limit int, entryType string) []audit.Entry {
	return s.auditLog.List(limit, entryType)
}
