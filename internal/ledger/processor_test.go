package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroflux/engine/internal/storage"
)

type fakeTier struct {
	name    string
	mu      sync.Mutex
	written []storage.EventRecord
	failN   int // fail the first failN writes, then succeed
}

func (f *fakeTier) Name() string { return f.name }

func (f *fakeTier) Write(r storage.EventRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errors.New("simulated tier failure")
	}
	f.written = append(f.written, r)
	return nil
}

func (f *fakeTier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

func readyEvent(t EventType) *Event {
	e := NewEvent(t)
	e.Timestamp = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.PreviousHash = genesisHash
	e.EventHash = computeEventHash(e, genesisHash)
	return e
}

func TestProcessWritesToEveryTier(t *testing.T) {
	a := &fakeTier{name: "a"}
	b := &fakeTier{name: "b"}
	p := NewProcessor([]storage.Tier{a, b}, nil, nil, false)

	e := readyEvent(EventDataIngested)
	require.NoError(t, p.Process(e, nil))
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestProcessSucceedsWhenOneTierFailsIndependently(t *testing.T) {
	ok := &fakeTier{name: "ok"}
	broken := &fakeTier{name: "broken", failN: 1000}
	p := NewProcessor([]storage.Tier{ok, broken}, nil, nil, false)

	e := readyEvent(EventDataIngested)
	err := p.Process(e, nil)

	// ok tier still got the write even though broken tier failed, and
	// logEvent itself must not raise on a single tier's hiccup.
	assert.Equal(t, 1, ok.count())
	assert.NoError(t, err)
}

func TestProcessRejectsMalformedEvent(t *testing.T) {
	p := NewProcessor(nil, nil, nil, false)
	assert.Error(t, p.Process(&Event{}, nil))
}

func TestProcessStrictSignatureRejectsUnsigned(t *testing.T) {
	p := NewProcessor(nil, nil, nil, true)
	e := readyEvent(EventSessionCreated) // critical, no signature attached
	assert.Error(t, p.Process(e, nil))
}

func TestProcessNonStrictAllowsUnsignedWithoutBlocking(t *testing.T) {
	tier := &fakeTier{name: "a"}
	p := NewProcessor([]storage.Tier{tier}, nil, nil, false)
	e := readyEvent(EventSessionCreated)
	require.NoError(t, p.Process(e, nil))
	assert.Equal(t, 1, tier.count())
}

func TestProcessTriggersComplianceHookForComplianceEvents(t *testing.T) {
	var hookCalled *Event
	hook := func(e *Event) { hookCalled = e }
	p := NewProcessor(nil, nil, hook, false)

	e := readyEvent(EventAccessGranted)
	require.NoError(t, p.Process(e, nil))
	require.NotNil(t, hookCalled)
	assert.Equal(t, e.EventID, hookCalled.EventID)
}

func TestProcessSkipsComplianceHookForOrdinaryEvents(t *testing.T) {
	called := false
	hook := func(e *Event) { called = true }
	p := NewProcessor(nil, nil, hook, false)

	e := readyEvent(EventDataIngested)
	require.NoError(t, p.Process(e, nil))
	assert.False(t, called)
}
