package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroflux/engine/internal/ledger"
)

func sampleEvent(t ledger.EventType) *ledger.Event {
	e := ledger.NewEvent(t)
	e.SessionID = "sess-1"
	e.UserID = "patient-1"
	return e
}

func TestBusDeliversToTypeSubscriber(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe(string(ledger.EventDeviceConnected))
	defer b.Unsubscribe(ch)

	b.Emit(sampleEvent(ledger.EventDeviceConnected))

	select {
	case env := <-ch:
		assert.Equal(t, string(ledger.EventDeviceConnected), env.Type)
		assert.Equal(t, "patient-1", env.PatientID)
	case <-time.After(time.Second):
		t.Fatal("expected envelope on subscribed channel")
	}
}

func TestBusDeliversToAllSubscriber(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Emit(sampleEvent(ledger.EventSessionCreated))
	b.Emit(sampleEvent(ledger.EventDataIngested))

	for i := 0; i < 2; i++ {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("expected envelope on all-events channel")
		}
	}
}

func TestBusSkipsNonMatchingSubscriber(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe(string(ledger.EventAuthFailure))
	defer b.Unsubscribe(ch)

	b.Emit(sampleEvent(ledger.EventDataIngested))

	select {
	case env := <-ch:
		t.Fatalf("unexpected envelope delivered: %v", env)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := <-ch
	assert.False(t, ok)
}

func TestNewEnvelopeCarriesEventFields(t *testing.T) {
	e := sampleEvent(ledger.EventAccessGranted)
	env := NewEnvelope(e)

	assert.Equal(t, "1.0", env.SpecVersion)
	assert.Equal(t, string(ledger.EventAccessGranted), env.Type)
	assert.Equal(t, e.EventID, env.ID)
	assert.Equal(t, e.SessionID, env.Subject)
	assert.Equal(t, e.UserID, env.PatientID)
	assert.Same(t, e, env.Data)
}
