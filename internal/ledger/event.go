// Package ledger implements the hash-chained, multi-tier audit trail:
// canonical event hashing, batch Merkle roots, digital signatures for
// critical events, and the single-writer append path that fans writes
// out to the storage tiers.
package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the audit events tracked by the ledger.
type EventType string

const (
	EventSessionCreated EventType = "session.created"
	EventSessionStarted EventType = "session.started"
	EventSessionPaused  EventType = "session.paused"
	EventSessionResumed EventType = "session.resumed"
	EventSessionEnded   EventType = "session.ended"
	EventSessionError   EventType = "session.error"

	EventDataIngested     EventType = "data.ingested"
	EventDataProcessed    EventType = "data.processed"
	EventDataStored       EventType = "data.stored"
	EventDataQualityCheck EventType = "data.quality_check"

	EventDeviceDiscovered     EventType = "device.discovered"
	EventDevicePaired         EventType = "device.paired"
	EventDeviceConnected      EventType = "device.connected"
	EventDeviceDisconnected   EventType = "device.disconnected"
	EventDeviceError          EventType = "device.error"
	EventDeviceImpedanceCheck EventType = "device.impedance_check"

	EventModelLoaded      EventType = "ml.model_loaded"
	EventModelInference   EventType = "ml.inference"
	EventModelCalibration EventType = "ml.calibration"
	EventModelPerformance EventType = "ml.performance"

	EventAuthSuccess    EventType = "auth.success"
	EventAuthFailure    EventType = "auth.failure"
	EventAccessGranted  EventType = "access.granted"
	EventAccessDenied   EventType = "access.denied"
	EventDataExported   EventType = "data.exported"
)

// genesisHash is the previous_hash value of the first event in a chain.
var genesisHash = strings.Repeat("0", 64)

// criticalEventTypes require a digital signature before they may be
// appended; all other event types are hashed and chained but unsigned.
var criticalEventTypes = map[EventType]bool{
	EventSessionCreated:   true,
	EventSessionEnded:     true,
	EventDataExported:     true,
	EventAuthSuccess:      true,
	EventAuthFailure:      true,
	EventAccessGranted:    true,
	EventAccessDenied:     true,
	EventModelCalibration: true,
}

// RequiresSignature reports whether t must carry a valid signature to be
// appended.
func RequiresSignature(t EventType) bool {
	return criticalEventTypes[t]
}

// complianceEventTypes trigger the compliance hook once processed.
var complianceEventTypes = map[EventType]bool{
	EventSessionCreated: true,
	EventSessionEnded:   true,
	EventDataExported:   true,
	EventAccessGranted:  true,
	EventAccessDenied:   true,
	EventAuthSuccess:    true,
	EventAuthFailure:    true,
}

// RequiresComplianceCheck reports whether t triggers the compliance hook.
func RequiresComplianceCheck(t EventType) bool {
	return complianceEventTypes[t]
}

// Event is one entry in the audit chain. EventHash and PreviousHash link
// it to its neighbors; Signature and SigningKeyID are populated only for
// event types RequiresSignature reports true for.
type Event struct {
	EventID   string
	Timestamp time.Time
	EventType EventType

	SessionID string
	DeviceID  string
	UserID    string

	DataHash string
	Metadata map[string]string

	PreviousHash string
	EventHash    string

	Signature    []byte
	SigningKeyID string
}

// NewEvent constructs an event with a fresh ID and the current time,
// ready to be chained by a Ledger.
func NewEvent(eventType EventType) *Event {
	return &Event{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Metadata:  make(map[string]string),
	}
}
