package contract

import (
	"idledger/internal/ledger"
	dErrors "idledger/pkg/errors"
)

// Typed request/response structures for every contract operation. Arguments
// crossing the contract boundary are serialized JSON validated on decode,
// never ad hoc string-encoded blobs.

// MintRequest creates a new identity asset.
type MintRequest struct {
	ID                 string                `json:"id"`
	SubjectID          string                `json:"subjectId"`
	IssuerID           string                `json:"issuerId"`
	KYCHash            string                `json:"kycHash"`
	DocumentHashes     []ledger.DocumentHash `json:"documentHashes,omitempty"`
	ExpiryTimestamp    int64                 `json:"expiryTimestamp"`
	Signature          string                `json:"signature"`
	SignatureTimestamp int64                 `json:"signatureTimestamp"`
}

func (r MintRequest) validate() error {
	switch {
	case r.ID == "":
		return dErrors.New(dErrors.CodeValidation, "asset id is required")
	case r.SubjectID == "":
		return dErrors.New(dErrors.CodeValidation, "subject id is required")
	case r.IssuerID == "":
		return dErrors.New(dErrors.CodeValidation, "issuer id is required")
	case r.KYCHash == "":
		return dErrors.New(dErrors.CodeValidation, "kyc hash is required")
	case r.Signature == "":
		return dErrors.New(dErrors.CodeValidation, "signature is required")
	case r.ExpiryTimestamp == 0:
		return dErrors.New(dErrors.CodeValidation, "expiry timestamp is required")
	}
	for _, doc := range r.DocumentHashes {
		if doc.Type == "" || doc.Hash == "" {
			return dErrors.New(dErrors.CodeValidation, "document hashes require type and hash")
		}
	}
	return nil
}

// VerifyRequest checks an asset's validity. KYCHash is optional; when
// present the stored hash must match.
type VerifyRequest struct {
	ID      string `json:"id"`
	KYCHash string `json:"kycHash,omitempty"`
}

// RevokeRequest permanently revokes an asset.
type RevokeRequest struct {
	ID        string `json:"id"`
	Reason    string `json:"reason"`
	RevokedBy string `json:"revokedBy"`
}

func (r RevokeRequest) validate() error {
	switch {
	case r.ID == "":
		return dErrors.New(dErrors.CodeValidation, "asset id is required")
	case r.Reason == "":
		return dErrors.New(dErrors.CodeValidation, "revocation reason is required")
	case r.RevokedBy == "":
		return dErrors.New(dErrors.CodeValidation, "revoker id is required")
	}
	return nil
}

// RenewRequest extends an ACTIVE asset's expiry.
type RenewRequest struct {
	ID        string `json:"id"`
	NewExpiry int64  `json:"newExpiry"`
	RenewedBy string `json:"renewedBy"`
}

func (r RenewRequest) validate() error {
	switch {
	case r.ID == "":
		return dErrors.New(dErrors.CodeValidation, "asset id is required")
	case r.NewExpiry == 0:
		return dErrors.New(dErrors.CodeValidation, "new expiry is required")
	case r.RenewedBy == "":
		return dErrors.New(dErrors.CodeValidation, "renewer id is required")
	}
	return nil
}

// BulkMintRequest mints several assets with per-item isolation.
type BulkMintRequest struct {
	Entries []MintRequest `json:"entries"`
}

// BulkVerifyRequest verifies several assets.
type BulkVerifyRequest struct {
	IDs []string `json:"ids"`
}

// QueryRequest scans a secondary index.
type QueryRequest struct {
	ID string `json:"id"`
}

// Receipt is returned by every mutating operation.
type Receipt struct {
	TxID      string `json:"txId"`
	AssetID   string `json:"assetId"`
	Version   uint64 `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

// Verification reason codes. EXPIRED and REVOKED are outcomes, not faults.
const (
	ReasonNotFound     = "NOT_FOUND"
	ReasonExpired      = "EXPIRED"
	ReasonHashMismatch = "HASH_MISMATCH"
)

// VerificationResult is the read-only outcome of VerifyAsset.
type VerificationResult struct {
	Valid           bool   `json:"valid"`
	Reason          string `json:"reason,omitempty"`
	AssetID         string `json:"assetId"`
	SubjectID       string `json:"subjectId,omitempty"`
	IssuerID        string `json:"issuerId,omitempty"`
	ExpiryTimestamp int64  `json:"expiryTimestamp,omitempty"`
	Version         uint64 `json:"version,omitempty"`
	MintedAt        int64  `json:"mintedAt,omitempty"`
}

// BulkItemResult reports one item of a bulk operation. A failed item never
// aborts the batch.
type BulkItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	TxID    string `json:"txId,omitempty"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// BulkResult aggregates a bulk operation.
type BulkResult struct {
	Items     []BulkItemResult `json:"items"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// BulkVerifyResult aggregates BulkVerify outcomes.
type BulkVerifyResult struct {
	Results []VerificationResult `json:"results"`
}

// QueryResult is the public-safe projection list for index queries.
type QueryResult struct {
	Assets []ledger.PublicProjection `json:"assets"`
}

// Stats reports asset counts for health reporting.
type Stats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Revoked int `json:"revoked"`
}
