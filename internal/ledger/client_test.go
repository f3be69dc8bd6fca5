package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neuroflux/engine/pb"
)

func TestRemoteClientAppendAsyncDoesNotBlock(t *testing.T) {
	mock := &pb.MockLedgerClient{}
	c := NewRemoteClient(mock)

	e := NewEvent(EventSessionCreated)
	e.EventID = "evt-1"

	start := time.Now()
	c.AppendAsync(e)
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRemoteClientVerifyRange(t *testing.T) {
	mock := &pb.MockLedgerClient{}
	c := NewRemoteClient(mock)

	resp, err := c.VerifyRange(context.Background(), "evt-1", "evt-2")
	require.NoError(t, err)
	require.True(t, resp.Valid)
}
