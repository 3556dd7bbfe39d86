// Package audit records administrative operations in a bounded in-memory
// log. Entries carry only redacted payload fields; raw KYC material and
// ciphertext never enter the log.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"idledger/pkg/requestcontext"
)

// Entry types recorded by the admin orchestrator.
const (
	TypeBulkMintStart      = "BULK_MINT_START"
	TypeBulkMintComplete   = "BULK_MINT_COMPLETE"
	TypeBulkRevokeStart    = "BULK_REVOKE_START"
	TypeBulkRevokeComplete = "BULK_REVOKE_COMPLETE"
	TypeHealthCheck        = "HEALTH_CHECK"
)

// Entry is one recorded administrative action.
type Entry struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Actor     string         `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// DefaultCapacity bounds the log when no explicit capacity is given.
const DefaultCapacity = 1024

// Log is a fixed-capacity ring buffer of audit entries. When full, the
// oldest entry is evicted.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{entries: make([]Entry, capacity)}
}

// Append records an entry and returns it with its assigned id and
// timestamp filled in.
func (l *Log) Append(ctx context.Context, entryType, actor string, details map[string]any) Entry {
	entry := Entry{
		ID:        uuid.NewString(),
		Type:      entryType,
		Actor:     actor,
		Timestamp: requestcontext.Now(ctx),
		Details:   details,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = entry
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
	return entry
}

// List returns entries most recent first, optionally filtered by type.
// A non-positive limit returns all retained entries.
func (l *Log) List(limit int, entryType string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := l.next
	if l.full {
		count = len(l.entries)
	}
	out := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		// Walk backwards from the most recent slot.
		idx := (l.next - 1 - i + len(l.entries)) % len(l.entries)
		entry := l.entries[idx]
		if entryType != "" && entry.Type != entryType {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
