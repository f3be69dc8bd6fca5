package ledger

// Event processing: validate, verify signature, fan out to storage
// tiers, record metrics, and trigger the compliance hook. Grounded on
// the source system's EventProcessor.process_event five-step structure,
// generalized from asyncio.gather over three named clients to a Go
// sync.WaitGroup over three Tier values (the teacher's fan-out idiom in
// internal/fabric/hub.go, not a third-party errgroup — the pack never
// imports golang.org/x/sync).

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/neuroflux/engine/internal/monitoring"
	"github.com/neuroflux/engine/internal/storage"
)

// ComplianceHook is invoked for event types RequiresComplianceCheck
// reports true for, after every storage tier has been attempted.
type ComplianceHook func(e *Event)

// Processor validates, signs (when required) and durably persists
// events, independent of the single-writer chain cursor in facade.go.
type Processor struct {
	tiers     []storage.Tier
	metrics   *monitoring.Metrics
	hook      ComplianceHook
	strictSig bool
	logger    *log.Logger
}

// NewProcessor constructs a processor writing to every tier in tiers.
// strictSignatures, when true, rejects a critical event whose signature
// fails verification instead of merely recording the failure — the
// production posture; tests disable it to exercise unsigned fixtures.
func NewProcessor(tiers []storage.Tier, metrics *monitoring.Metrics, hook ComplianceHook, strictSignatures bool) *Processor {
	return &Processor{
		tiers:     tiers,
		metrics:   metrics,
		hook:      hook,
		strictSig: strictSignatures,
		logger:    log.New(os.Stderr, "[ledger-processor] ", log.LstdFlags),
	}
}

// Process runs the five-step pipeline against a single event that has
// already been hashed and chained by the Ledger facade.
func (p *Processor) Process(e *Event, signer Signer) error {
	start := time.Now()

	// Step 1: structural validation.
	if e.EventID == "" || e.Timestamp.IsZero() || e.EventType == "" {
		return fmt.Errorf("ledger: event missing required fields")
	}

	// Step 2: signature verification for critical events.
	if RequiresSignature(e.EventType) {
		valid := len(e.Signature) > 0 && signer != nil && signer.Verify(e)
		if p.metrics != nil {
			p.metrics.RecordSignatureVerification(string(e.EventType), valid)
		}
		if !valid && p.strictSig {
			return fmt.Errorf("ledger: signature verification failed for event %s", e.EventID)
		}
	}

	// Step 3: parallel, independent-failure writes to every tier.
	record := toRecord(e)
	var wg sync.WaitGroup
	errs := make([]error, len(p.tiers))
	for i, tier := range p.tiers {
		wg.Add(1)
		go func(i int, tier storage.Tier) {
			defer wg.Done()
			tierStart := time.Now()
			err := tier.Write(record)
			if p.metrics != nil {
				p.metrics.RecordTierWrite(tier.Name(), time.Since(tierStart), err == nil)
			}
			errs[i] = err
		}(i, tier)
	}
	wg.Wait()

	// A tier failure doesn't abort processing or fail this call: each
	// Tier's own retry/hedge wrapping (storage/retry.go) owns recovery,
	// and logEvent itself must not raise on a single tier's hiccup. We
	// only log it here, already recorded per-tier in metrics above.
	for i, err := range errs {
		if err != nil {
			p.logger.Printf("tier %s write failed for event %s: %v", p.tiers[i].Name(), e.EventID, err)
		}
	}

	// Step 4: metrics.
	if p.metrics != nil {
		p.metrics.RecordAppend(string(e.EventType), time.Since(start))
	}

	// Step 5: compliance hook.
	if p.hook != nil && RequiresComplianceCheck(e.EventType) {
		p.hook(e)
	}

	return nil
}

// toRecord projects an Event to the tier-agnostic storage.EventRecord.
func toRecord(e *Event) storage.EventRecord {
	return storage.EventRecord{
		EventID:      e.EventID,
		Timestamp:    e.Timestamp,
		EventType:    string(e.EventType),
		SessionID:    e.SessionID,
		DeviceID:     e.DeviceID,
		UserID:       e.UserID,
		DataHash:     e.DataHash,
		Metadata:     e.Metadata,
		PreviousHash: e.PreviousHash,
		EventHash:    e.EventHash,
		Signature:    signatureString(e.Signature),
		SigningKeyID: e.SigningKeyID,
	}
}

func signatureString(sig []byte) string {
	if len(sig) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(sig)
}
