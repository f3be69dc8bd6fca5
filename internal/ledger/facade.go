package ledger

// Ledger is the single-writer append facade (Component K): every append
// request is serialized through one goroutine that owns lastEventHash,
// so two concurrent Log calls can never observe the same previous hash
// and fork the chain. Grounded on the source system's NeuralLedger
// (startup cursor recovery from the warehouse tier's latest row, else
// genesis) with asyncio's implicit single-event-loop serialization
// replaced by an explicit Go worker goroutine and request channel,
// since Go has no equivalent of "there is only one event loop".

import (
	"context"
	"fmt"
	"time"
)

// CursorSource recovers the hash-chain cursor left by a previous process
// lifetime, so a restarted ledger keeps chaining from where it left off
// instead of re-starting at genesis and producing a chain the old
// events no longer verify against.
type CursorSource interface {
	LastEventHash(ctx context.Context, genesisHash string) (string, error)
}

type appendRequest struct {
	event    *Event
	response chan error
}

// Ledger owns the append-time chain cursor and the event processor.
type Ledger struct {
	processor *Processor
	signer    Signer

	requests chan appendRequest
	done     chan struct{}
}

// NewLedger recovers the chain cursor from cursorSource (if non-nil) and
// starts the single writer goroutine. Callers append through Log; the
// Ledger itself owns lastEventHash and is never touched concurrently
// from outside the writer goroutine.
func NewLedger(ctx context.Context, processor *Processor, signer Signer, cursorSource CursorSource) (*Ledger, error) {
	lastHash := genesisHash
	if cursorSource != nil {
		recovered, err := cursorSource.LastEventHash(ctx, genesisHash)
		if err != nil {
			return nil, fmt.Errorf("ledger: recovering chain cursor: %w", err)
		}
		lastHash = recovered
	}

	l := &Ledger{
		processor: processor,
		signer:    signer,
		requests:  make(chan appendRequest),
		done:      make(chan struct{}),
	}
	go l.run(lastHash)
	return l, nil
}

// run is the single writer: it owns lastHash for the entire process
// lifetime and is the only goroutine that ever reads or writes it.
func (l *Ledger) run(lastHash string) {
	for req := range l.requests {
		req.event.PreviousHash = lastHash
		req.event.EventHash = computeEventHash(req.event, lastHash)

		if RequiresSignature(req.event.EventType) && l.signer != nil {
			if err := l.signer.Sign(req.event); err != nil {
				req.response <- fmt.Errorf("ledger: signing event %s: %w", req.event.EventID, err)
				continue
			}
		}

		lastHash = req.event.EventHash
		req.response <- l.processor.Process(req.event, l.signer)
	}
	close(l.done)
}

// Log hashes, chains, signs (if critical) and persists e, returning once
// every storage tier has been attempted. The caller must not set
// e.PreviousHash or e.EventHash; Log assigns both.
func (l *Ledger) Log(ctx context.Context, e *Event) error {
	resp := make(chan error, 1)
	select {
	case l.requests <- appendRequest{event: e, response: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new appends and waits for the writer goroutine
// to drain in-flight requests.
func (l *Ledger) Close(ctx context.Context) error {
	close(l.requests)
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSessionCreated logs a SESSION_CREATED event, the BCI-session
// equivalent of the source's log_session_created convenience method.
func (l *Ledger) LogSessionCreated(ctx context.Context, sessionID, userID, deviceID string) (*Event, error) {
	e := NewEvent(EventSessionCreated)
	e.SessionID = sessionID
	e.UserID = userID
	e.DeviceID = deviceID
	e.Metadata["session_version"] = "1.0"
	e.Metadata["protocol"] = "realtime"
	if err := l.Log(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// LogDataIngested logs a DATA_INGESTED event for a batch of device
// samples.
func (l *Ledger) LogDataIngested(ctx context.Context, sessionID, dataHash string, sizeBytes int) (*Event, error) {
	e := NewEvent(EventDataIngested)
	e.SessionID = sessionID
	e.DataHash = dataHash
	e.Metadata["data_size_bytes"] = fmt.Sprintf("%d", sizeBytes)
	e.Metadata["ingestion_timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if err := l.Log(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// LogDeviceConnected logs a DEVICE_CONNECTED event.
func (l *Ledger) LogDeviceConnected(ctx context.Context, deviceID, deviceType string) (*Event, error) {
	e := NewEvent(EventDeviceConnected)
	e.DeviceID = deviceID
	e.Metadata["device_type"] = deviceType
	if err := l.Log(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// LogAccessEvent logs an ACCESS_GRANTED or ACCESS_DENIED event.
func (l *Ledger) LogAccessEvent(ctx context.Context, userID, resource string, granted bool) (*Event, error) {
	eventType := EventAccessGranted
	if !granted {
		eventType = EventAccessDenied
	}
	e := NewEvent(eventType)
	e.UserID = userID
	e.Metadata["resource"] = resource
	if err := l.Log(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}
