package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroflux/engine/internal/storage"
)

type recoveredCursor struct{ hash string }

func (c recoveredCursor) LastEventHash(ctx context.Context, genesis string) (string, error) {
	if c.hash == "" {
		return genesis, nil
	}
	return c.hash, nil
}

func newTestLedger(t *testing.T, tier storage.Tier, signer Signer) *Ledger {
	t.Helper()
	var tiers []storage.Tier
	if tier != nil {
		tiers = []storage.Tier{tier}
	}
	p := NewProcessor(tiers, nil, nil, signer != nil)
	l, err := NewLedger(context.Background(), p, signer, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.Close(ctx)
	})
	return l
}

func TestLedgerChainsSuccessiveAppends(t *testing.T) {
	tier := &fakeTier{name: "a"}
	l := newTestLedger(t, tier, nil)
	ctx := context.Background()

	e1, err := l.LogDeviceConnected(ctx, "dev-1", "simulator")
	require.NoError(t, err)
	assert.Equal(t, genesisHash, e1.PreviousHash)

	e2, err := l.LogDeviceConnected(ctx, "dev-1", "simulator")
	require.NoError(t, err)
	assert.Equal(t, e1.EventHash, e2.PreviousHash)

	assert.True(t, VerifyChain([]*Event{e1, e2}))
}

func TestLedgerRecoversCursorOnRestart(t *testing.T) {
	p := NewProcessor(nil, nil, nil, false)
	l, err := NewLedger(context.Background(), p, nil, recoveredCursor{hash: "deadbeef"})
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.Close(ctx)
	}()

	e, err := l.LogDeviceConnected(context.Background(), "dev-1", "simulator")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", e.PreviousHash)
}

func TestLedgerSignsCriticalEventsBeforeAppending(t *testing.T) {
	signer, err := NewRSASigner()
	require.NoError(t, err)
	l := newTestLedger(t, &fakeTier{name: "a"}, signer)

	e, err := l.LogSessionCreated(context.Background(), "sess-1", "user-1", "dev-1")
	require.NoError(t, err)
	assert.NotEmpty(t, e.Signature)
	assert.True(t, signer.Verify(e))
}

func TestLedgerLogAccessEventPicksCorrectType(t *testing.T) {
	l := newTestLedger(t, &fakeTier{name: "a"}, nil)

	granted, err := l.LogAccessEvent(context.Background(), "user-1", "neural-data", true)
	require.NoError(t, err)
	assert.Equal(t, EventAccessGranted, granted.EventType)

	denied, err := l.LogAccessEvent(context.Background(), "user-1", "neural-data", false)
	require.NoError(t, err)
	assert.Equal(t, EventAccessDenied, denied.EventType)
}
