// Package events carries mint/revoke/renew notifications to external
// audit and notification subscribers. The contract publishes after a
// transaction commits; delivery failures are logged, never propagated back
// into the committed transaction.
package events

import "context"

// Event types emitted by the identity contract.
const (
	TypeMinted  = "identity.minted"
	TypeRevoked = "identity.revoked"
	TypeRenewed = "identity.renewed"
)

// Event is the payload delivered to subscribers. It carries identifiers
// and hashes only, never raw PII.
type Event struct {
	Type      string `json:"type"`
	AssetID   string `json:"assetId"`
	SubjectID string `json:"subjectId,omitempty"`
	IssuerID  string `json:"issuerId,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
	TxID      string `json:"txId"`
}

// Sink receives committed-transaction events. Implementations must not
// block indefinitely; slow consumers are the sink's problem, not the
// contract's.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Publish(ctx context.Context, event Event) error { return f(ctx, event) }

// Discard drops every event. Used when no subscriber is configured.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })
