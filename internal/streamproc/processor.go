package streamproc

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neuroflux/engine/internal/neural"
	"github.com/neuroflux/engine/internal/quality"
	"github.com/neuroflux/engine/internal/ringbuf"
)

const (
	defaultClassificationIntervalMs = 100.0
	defaultBufferDurationMs         = 5000.0
	resultChannelCapacity           = 256
	defaultLineFreqHz               = 60.0
)

// streamState is the per-stream ring buffer plus cadence bookkeeping. One
// instance is created the first time a stream's device/session pair is
// seen and torn down when the stream ends.
type streamState struct {
	mu             sync.Mutex
	buffer         *ringbuf.Buffer
	qualityMonitor *quality.Monitor
	lastClassified time.Time
}

// Processor is the stream processor of the classification pipeline:
// ingest packets, gate classification rounds on a fixed cadence, and fan
// each round out to every registered (extractor, classifier) pair on its
// own goroutine so one failing pair never blocks its peers.
type Processor struct {
	registry        *Registry
	intervalMs      float64
	bufferMs        float64
	streams         sync.Map // stream key -> *streamState
	results         chan neural.ClassificationResult
	classifications atomic.Int64
	errors          atomic.Int64
	logger          *log.Logger
}

// NewProcessor creates a processor with the given registry and
// classification cadence; intervalMs <= 0 selects the 100ms default.
func NewProcessor(registry *Registry, intervalMs float64) *Processor {
	if intervalMs <= 0 {
		intervalMs = defaultClassificationIntervalMs
	}
	return &Processor{
		registry:   registry,
		intervalMs: intervalMs,
		bufferMs:   defaultBufferDurationMs,
		results:    make(chan neural.ClassificationResult, resultChannelCapacity),
		logger:     log.New(os.Stderr, "[streamproc] ", log.LstdFlags),
	}
}

// Results returns the channel classification results are published on.
// Consumers must drain it; full buffers cause new results to be dropped
// rather than block ingestion.
func (p *Processor) Results() <-chan neural.ClassificationResult {
	return p.results
}

func streamKey(packet neural.SamplePacket) string {
	return packet.DeviceID + "_" + packet.SessionID
}

// Ingest appends a packet to its stream's buffer and, if the cadence has
// elapsed and enough data has accumulated, launches one classification
// round per registered pair.
func (p *Processor) Ingest(packet neural.SamplePacket) error {
	key := streamKey(packet)
	stateAny, _ := p.streams.LoadOrStore(key, &streamState{})
	state := stateAny.(*streamState)

	state.mu.Lock()
	if state.buffer == nil {
		buf, err := ringbuf.New(len(packet.Channels), p.bufferMs, packet.SamplingRateHz)
		if err != nil {
			state.mu.Unlock()
			return fmt.Errorf("streamproc: creating buffer for %s: %w", key, err)
		}
		state.buffer = buf
		state.qualityMonitor = quality.New(quality.Config{SamplingRateHz: packet.SamplingRateHz, LineFreqHz: defaultLineFreqHz})
	}
	if err := state.buffer.Add(packet); err != nil {
		state.mu.Unlock()
		return fmt.Errorf("streamproc: buffering packet for %s: %w", key, err)
	}

	due := state.buffer.DurationMs() >= p.intervalMs &&
		time.Since(state.lastClassified).Milliseconds() >= int64(p.intervalMs)
	if due {
		state.lastClassified = time.Now()
	}
	buffer := state.buffer
	monitor := state.qualityMonitor
	state.mu.Unlock()

	if due {
		p.runClassificationRound(buffer, monitor)
	}
	return nil
}

// EndStream drops the buffer and cadence state for a finished stream.
func (p *Processor) EndStream(deviceID, sessionID string) {
	p.streams.Delete(deviceID + "_" + sessionID)
}

// runClassificationRound fans out to every registered pair concurrently.
// A pair whose extractor or classifier panics is isolated via recover and
// counted as an error; it never prevents its peers' results from being
// published.
func (p *Processor) runClassificationRound(buffer *ringbuf.Buffer, monitor *quality.Monitor) {
	pairs := p.registry.snapshot()
	var wg sync.WaitGroup
	wg.Add(len(pairs))
	for _, pair := range pairs {
		go func(pair Pair) {
			defer wg.Done()
			p.classifyWithTiming(pair, buffer, monitor)
		}(pair)
	}
	wg.Wait()
}

// badQualityGatedPairs names the registry pairs whose output would be
// clinically misleading if published over a BAD-quality window rather
// than skipped outright (the seizure predictor is the one actionable
// kind; the others degrade gracefully and are left for the caller to
// interpret via the signal_quality metadata instead).
var badQualityGatedPairs = map[string]bool{
	"seizure": true,
}

func (p *Processor) classifyWithTiming(pair Pair, buffer *ringbuf.Buffer, monitor *quality.Monitor) {
	defer func() {
		if r := recover(); r != nil {
			p.errors.Add(1)
			p.logger.Printf("pair %s panicked: %v", pair.Name, r)
		}
	}()

	start := time.Now()
	window, ok := buffer.GetWindow(pair.Extractor.RequiredWindowMs())
	if !ok {
		return
	}

	var qualityLevel neural.SignalQualityLevel
	if monitor != nil {
		summary := monitor.EvaluateWindow(window)
		qualityLevel = summary.Overall
		if qualityLevel == neural.QualityBad && badQualityGatedPairs[pair.Name] {
			p.logger.Printf("pair %s: skipping round, signal quality BAD", pair.Name)
			return
		}
	}

	extractStart := time.Now()
	featureMap := pair.Extractor.Extract(window)
	extractorMs := float64(time.Since(extractStart).Microseconds()) / 1000.0

	classifyStart := time.Now()
	result := pair.Classifier.Classify(featureMap)
	classifierMs := float64(time.Since(classifyStart).Microseconds()) / 1000.0

	result.ExtractorMs = extractorMs
	result.ClassifierMs = classifierMs
	result.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
	if result.Metadata == nil {
		result.Metadata = map[string]string{}
	}
	result.Metadata["pair_name"] = pair.Name
	if qualityLevel != "" {
		result.Metadata["signal_quality"] = string(qualityLevel)
	}

	select {
	case p.results <- result:
		p.classifications.Add(1)
	default:
		p.errors.Add(1)
		p.logger.Printf("pair %s: result channel full, dropping result", pair.Name)
	}
}

// Stats reports the running classification/error counters.
type Stats struct {
	Classifications int64
	Errors          int64
}

func (p *Processor) Stats() Stats {
	return Stats{Classifications: p.classifications.Load(), Errors: p.errors.Load()}
}
