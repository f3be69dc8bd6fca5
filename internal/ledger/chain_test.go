package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainedEvents(n int) []*Event {
	events := make([]*Event, 0, n)
	prev := genesisHash
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		e := NewEvent(EventDataIngested)
		e.EventID = "evt-" + string(rune('a'+i))
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		e.SessionID = "sess-1"
		e.PreviousHash = prev
		e.EventHash = computeEventHash(e, prev)
		prev = e.EventHash
		events = append(events, e)
	}
	return events
}

func TestVerifyEventMatchesOwnHash(t *testing.T) {
	e := NewEvent(EventSessionCreated)
	e.SessionID = "sess-1"
	e.PreviousHash = genesisHash
	e.EventHash = computeEventHash(e, genesisHash)

	assert.True(t, VerifyEvent(e, genesisHash))
}

func TestComputeEventHashIsDeterministic(t *testing.T) {
	e := NewEvent(EventDeviceConnected)
	e.Timestamp = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.DeviceID = "dev-1"
	e.EventID = "fixed-id"

	h1 := computeEventHash(e, genesisHash)
	h2 := computeEventHash(e, genesisHash)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestComputeEventHashIgnoresMapOrdering(t *testing.T) {
	e1 := NewEvent(EventDataIngested)
	e1.EventID = "x"
	e1.Timestamp = time.Unix(0, 0).UTC()
	e1.Metadata = map[string]string{"a": "1", "b": "2"}

	e2 := NewEvent(EventDataIngested)
	e2.EventID = "x"
	e2.Timestamp = time.Unix(0, 0).UTC()
	e2.Metadata = map[string]string{"b": "2", "a": "1"}

	assert.Equal(t, computeEventHash(e1, genesisHash), computeEventHash(e2, genesisHash))
}

func TestVerifyChainValidForFreshlyChainedEvents(t *testing.T) {
	events := chainedEvents(5)
	require.True(t, VerifyChain(events))
	assert.Nil(t, FindChainBreak(events))
}

func TestVerifyChainEmptyIsValid(t *testing.T) {
	assert.True(t, VerifyChain(nil))
}

func TestFindChainBreakDetectsTamperedHash(t *testing.T) {
	events := chainedEvents(5)
	events[2].EventHash = "tampered"

	broken := FindChainBreak(events)
	require.NotNil(t, broken)
	assert.Equal(t, 2, *broken)
}

func TestFindChainBreakDetectsBrokenPreviousHashLink(t *testing.T) {
	events := chainedEvents(4)
	events[3].PreviousHash = "not-the-real-previous-hash"

	broken := FindChainBreak(events)
	require.NotNil(t, broken)
	assert.Equal(t, 3, *broken)
}

func TestComputeDataHashIsSHA256Hex(t *testing.T) {
	h := ComputeDataHash([]byte("abc"))
	assert.Len(t, h, 64)
	assert.Equal(t, ComputeDataHash([]byte("abc")), h)
}
