// Package gateway manages the session against the ledger platform and
// routes transactions: mutating operations go through the submit
// (ordering) path, reads through the low-latency evaluate path. The
// connection is a long-lived shared resource; transient failures retry
// with bounded exponential backoff and every call carries a timeout.
package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"idledger/internal/ledger/contract"
	dErrors "idledger/pkg/errors"
)

// Invoker is the ledger platform surface the client talks to. The embedded
// development ledger binds the identity contract directly; a production
// deployment binds a remote platform adapter.
type Invoker interface {
	Invoke(ctx context.Context, op string, payload []byte) ([]byte, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, op string, payload []byte) ([]byte, error)

func (f InvokerFunc) Invoke(ctx context.Context, op string, payload []byte) ([]byte, error) {
	return f(ctx, op, payload)
}

// NetworkConfig identifies the target network and contract and bounds each
// call.
type NetworkConfig struct {
	Network        string
	Contract       string
	RequestTimeout time.Duration
	MaxRetries     uint64
}

const (
	defaultRequestTimeout = 10 * time.Second
	defaultMaxRetries     = 3
)

// Status is the never-throwing connectivity report.
type Status struct {
	Connected bool   `json:"connected"`
	Reason    string `json:"reason,omitempty"`
	Network   string `json:"network,omitempty"`
	Contract  string `json:"contract,omitempty"`
	Identity  string `json:"identity,omitempty"`
}

// Client is the ledger gateway. Safe for concurrent use; one client is
// shared across many submissions.
type Client struct {
	mu        sync.RWMutex
	invoker   Invoker
	cfg       NetworkConfig
	identity  Identity
	connected bool
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient builds a disconnected client over the given platform invoker.
func NewClient(invoker Invoker, opts ...Option) *Client {
	c := &Client{invoker: invoker, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the session and resolves the contract handle.
// Idempotent: connecting an already-connected client is a no-op. Malformed
// config or an identity missing from the wallet is a connectivity error.
func (c *Client) Connect(cfg NetworkConfig, wallet *Wallet, identityLabel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	if cfg.Network == "" || cfg.Contract == "" {
		return dErrors.New(dErrors.CodeUnavailable, "network and contract names are required")
	}
	if wallet == nil || !wallet.Exists(identityLabel) {
		return dErrors.Newf(dErrors.CodeUnavailable, "identity %q not found in wallet", identityLabel)
	}
	identity, err := wallet.Get(identityLabel)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "load identity")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	c.cfg = cfg
	c.identity = identity
	c.connected = true
	c.logger.Info("gateway connected", "network", cfg.Network, "contract", cfg.Contract, "identity", identityLabel)
	return nil
}

// Disconnect releases the session. Safe to call when already disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		c.logger.Info("gateway disconnected", "network", c.cfg.Network)
	}
	c.connected = false
}

// GetNetworkStatus never returns an error: a disconnected client reports
// {connected:false, reason} instead of raising.
func (c *Client) GetNetworkStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return Status{Connected: false, Reason: "not connected"}
	}
	return Status{
		Connected: true,
		Network:   c.cfg.Network,
		Contract:  c.cfg.Contract,
		Identity:  c.identity.Label,
	}
}

// SubmitTransaction routes a mutating operation through the ordering path.
// Read operations must use EvaluateTransaction instead.
func (c *Client) SubmitTransaction(ctx context.Context, op string, payload []byte) ([]byte, error) {
	if !contract.KnownOp(op) {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown operation %q", op)
	}
	if !contract.IsMutating(op) {
		return nil, dErrors.Newf(dErrors.CodeValidation, "operation %q is read-only, use EvaluateTransaction", op)
	}
	return c.invoke(ctx, op, payload)
}

// EvaluateTransaction routes a read-only operation through the local,
// low-latency path. Mutating operations must use SubmitTransaction.
func (c *Client) EvaluateTransaction(ctx context.Context, op string, payload []byte) ([]byte, error) {
	if !contract.KnownOp(op) {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown operation %q", op)
	}
	if contract.IsMutating(op) {
		return nil, dErrors.Newf(dErrors.CodeValidation, "operation %q mutates state, use SubmitTransaction", op)
	}
	return c.invoke(ctx, op, payload)
}

// invoke runs one operation with per-attempt timeout and bounded
// exponential backoff. Only connectivity-class failures retry; definitive
// rejections (conflict, authorization, hash mismatch) surface immediately.
func (c *Client) invoke(ctx context.Context, op string, payload []byte) ([]byte, error) {
	c.mu.RLock()
	connected, cfg := c.connected, c.cfg
	c.mu.RUnlock()
	if !connected {
		return nil, dErrors.New(dErrors.CodeUnavailable, "gateway is not connected")
	}

	var result []byte
	attempt := 0
	operation := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()

		raw, err := c.invoker.Invoke(callCtx, op, payload)
		if err != nil {
			if callCtx.Err() != nil {
				// A timed-out attempt is retryable, unlike a definitive
				// rejection from the contract.
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger call timed out")
			}
			if dErrors.Retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = raw
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.MaxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		c.logger.Warn("ledger invocation failed", "op", op, "attempts", attempt, "error", err)
		return nil, err
	}
	return result, nil
}
