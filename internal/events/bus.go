// Package events fans out ledger events to in-process observers and,
// when wired with a durable backend, to a Cloud Pub/Sub topic so external
// consumers (compliance dashboards, SIEM forwarders) can subscribe
// without touching the ledger's storage tiers directly.
package events

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/neuroflux/engine/internal/ledger"
)

// Emitter is the interface compliance hooks and replay tools use to
// observe ledger events as they are appended. Both Bus and PubSubBus
// satisfy it.
type Emitter interface {
	Emit(e *ledger.Event)
}

// Envelope is the CloudEvents 1.0 wrapper around a ledger event.
// Compatible with the CNCF CloudEvents specification so the same
// message can be consumed by generic CloudEvents tooling downstream.
type Envelope struct {
	SpecVersion string        `json:"specversion"`
	Type        string        `json:"type"`
	Source      string        `json:"source"`
	ID          string        `json:"id"`
	Time        time.Time     `json:"time"`
	Subject     string        `json:"subject,omitempty"`
	PatientID   string        `json:"patientid,omitempty"`
	Data        *ledger.Event `json:"data"`
}

const envelopeSource = "neuroflux/ledger"

// NewEnvelope wraps a ledger event in a CloudEvents envelope.
func NewEnvelope(e *ledger.Event) *Envelope {
	return &Envelope{
		SpecVersion: "1.0",
		Type:        string(e.EventType),
		Source:      envelopeSource,
		ID:          e.EventID,
		Time:        e.Timestamp,
		Subject:     e.SessionID,
		PatientID:   e.UserID,
		Data:        e,
	}
}

// JSON serializes the envelope.
func (env *Envelope) JSON() ([]byte, error) {
	return json.Marshal(env)
}

// Bus is an in-process pub/sub fan-out for ledger events. A compliance
// hook publishes every event it sees here; dashboards and replay tools
// subscribe to the types they care about.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *Envelope // event type -> channels
	allSubs     []chan *Envelope            // subscribers to every event
	logger      *log.Logger
	bufferSize  int
}

// NewBus creates a new in-process event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan *Envelope),
		allSubs:     make([]chan *Envelope, 0),
		logger:      log.New(log.Writer(), "[EVENTS] ", log.LstdFlags),
		bufferSize:  100,
	}
}

// Subscribe creates a channel that receives events of specific types.
// Pass no eventTypes to receive every event.
func (b *Bus) Subscribe(eventTypes ...string) chan *Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *Envelope, b.bufferSize)

	if len(eventTypes) == 0 {
		b.allSubs = append(b.allSubs, ch)
	} else {
		for _, et := range eventTypes {
			b.subscribers[et] = append(b.subscribers[et], ch)
		}
	}

	return ch
}

// Unsubscribe removes a subscription channel.
func (b *Bus) Unsubscribe(ch chan *Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for et, subs := range b.subscribers {
		filtered := make([]chan *Envelope, 0, len(subs))
		for _, s := range subs {
			if s != ch {
				filtered = append(filtered, s)
			}
		}
		b.subscribers[et] = filtered
	}

	filtered := make([]chan *Envelope, 0, len(b.allSubs))
	for _, s := range b.allSubs {
		if s != ch {
			filtered = append(filtered, s)
		}
	}
	b.allSubs = filtered

	close(ch)
}

// Publish sends an envelope to every matching subscriber. Full channels
// are skipped rather than blocking the compliance hook.
func (b *Bus) Publish(env *Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[env.Type] {
		select {
		case ch <- env:
		default:
		}
	}

	for _, ch := range b.allSubs {
		select {
		case ch <- env:
		default:
		}
	}
}

// Emit wraps e in an envelope and publishes it. This is the method a
// ledger compliance hook calls directly.
func (b *Bus) Emit(e *ledger.Event) {
	b.Publish(NewEnvelope(e))
}

// SubscriberCount returns the total number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := len(b.allSubs)
	for _, subs := range b.subscribers {
		count += len(subs)
	}
	return count
}

var _ Emitter = (*Bus)(nil)
