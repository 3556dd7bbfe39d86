// Package ledger defines the on-chain data model for digital identity
// assets. The contract package owns every mutation; everything else reads
// and writes these records only through contract operations.
package ledger

import "time"

// Status of a digital identity asset. Transitions are monotonic:
// ACTIVE → REVOKED is terminal. Expiry is not a status; it is evaluated
// lazily at read time and never written back.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRevoked Status = "REVOKED"
)

// DocumentHash records one supporting document by hash only. The raw
// document never reaches the ledger.
type DocumentHash struct {
	Type      string `json:"type"`
	Hash      string `json:"hash"`
	Timestamp int64  `json:"timestamp"`
}

// DigitalIdentityAsset is the ledger-resident record for one identity
// credential. It stores hashes and identifiers only, never raw PII.
type DigitalIdentityAsset struct {
	ID              string         `json:"id"`
	SubjectID       string         `json:"subjectId"`
	IssuerID        string         `json:"issuerId"`
	KYCHash         string         `json:"kycHash"`
	DocumentHashes  []DocumentHash `json:"documentHashes"`
	Status          Status         `json:"status"`
	ExpiryTimestamp int64          `json:"expiryTimestamp"`
	MintedAt        int64          `json:"mintedAt"`
	LastUpdated     int64          `json:"lastUpdated"`
	// Version increments on every mutation. A caller holding a stale
	// version must re-read before retrying.
	Version   uint64 `json:"version"`
	Signature string `json:"signature"`
	// SignedAt is the timestamp the issuer signature covers.
	SignedAt int64 `json:"signedAt"`

	// Revocation metadata, set once when status becomes REVOKED.
	RevokedAt *int64 `json:"revokedAt,omitempty"`
	RevokedBy string `json:"revokedBy,omitempty"`
	Reason    string `json:"reason,omitempty"`

	// Renewal metadata, updated on each renewal.
	RenewedAt *int64 `json:"renewedAt,omitempty"`
	RenewedBy string `json:"renewedBy,omitempty"`
}

// ExpiredAt reports whether the asset's expiry has passed at the given
// instant. Callers evaluate this at read time and must not persist the
// outcome.
func (a *DigitalIdentityAsset) ExpiredAt(now time.Time) bool {
	return a.ExpiryTimestamp <= now.Unix()
}

// PublicProjection is the query-safe view of an asset. It excludes KYCHash
// and Signature so index scans never leak verification material.
type PublicProjection struct {
	ID              string `json:"id"`
	SubjectID       string `json:"subjectId"`
	IssuerID        string `json:"issuerId"`
	Status          Status `json:"status"`
	ExpiryTimestamp int64  `json:"expiryTimestamp"`
	MintedAt        int64  `json:"mintedAt"`
	LastUpdated     int64  `json:"lastUpdated"`
	Version         uint64 `json:"version"`
	DocumentCount   int    `json:"documentCount"`
}

// Public returns the projection exposed by QueryBySubject and QueryByIssuer.
func (a *DigitalIdentityAsset) Public() PublicProjection {
	return PublicProjection{
		ID:              a.ID,
		SubjectID:       a.SubjectID,
		IssuerID:        a.IssuerID,
		Status:          a.Status,
		ExpiryTimestamp: a.ExpiryTimestamp,
		MintedAt:        a.MintedAt,
		LastUpdated:     a.LastUpdated,
		Version:         a.Version,
		DocumentCount:   len(a.DocumentHashes),
	}
}
