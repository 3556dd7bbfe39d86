package events

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFansOutToAllSubscribers(t *testing.T) {
	bus := NewBus(slog.New(slog.DiscardHandler))
	first := bus.Subscribe()
	second := bus.Subscribe()

	event := Event{Type: TypeMinted, AssetID: "DID-1", TxID: "tx-1"}
	require.NoError(t, bus.Publish(context.Background(), event))

	assert.Equal(t, event, <-first)
	assert.Equal(t, event, <-second)
}

func TestBusDropsForBackloggedSubscriberOnly(t *testing.T) {
	bus := NewBus(slog.New(slog.DiscardHandler))
	backlogged := bus.Subscribe()
	ctx := context.Background()

	// Fill the backlogged subscriber's buffer, then one more.
	for i := 0; i < 65; i++ {
		require.NoError(t, bus.Publish(ctx, Event{Type: TypeMinted, AssetID: "DID-1"}))
	}

	healthy := bus.Subscribe()
	require.NoError(t, bus.Publish(ctx, Event{Type: TypeRevoked, AssetID: "DID-2"}))

	// The healthy subscriber sees the new event; the backlogged one kept
	// its first 64 and lost the rest.
	assert.Equal(t, TypeRevoked, (<-healthy).Type)
	assert.Len(t, backlogged, 64)
}

func TestDiscardNeverErrors(t *testing.T) {
	assert.NoError(t, Discard.Publish(context.Background(), Event{Type: TypeRenewed}))
}
