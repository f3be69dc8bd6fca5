package streamproc

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neuroflux/engine/internal/classifiers"
	"github.com/neuroflux/engine/internal/features"
	"github.com/neuroflux/engine/internal/neural"
)

func sinePacket(channels int, fs float64, n int, deviceID, sessionID string) neural.SamplePacket {
	data := make([][]float64, channels)
	names := make([]string, channels)
	for c := 0; c < channels; c++ {
		names[c] = "CH" + string(rune('1'+c))
		samples := make([]float64, n)
		for i := 0; i < n; i++ {
			samples[i] = math.Sin(2 * math.Pi * 10 * float64(i) / fs)
		}
		data[c] = samples
	}
	return neural.SamplePacket{
		Channels: names, SamplingRateHz: fs, Data: data,
		Timestamp: time.Now(), DeviceID: deviceID, SessionID: sessionID,
		SignalType: neural.SignalEEG,
	}
}

type panickyExtractor struct{}

func (panickyExtractor) Name() string             { return "panicky" }
func (panickyExtractor) RequiredWindowMs() float64 { return 100 }
func (panickyExtractor) FeatureNames() []string    { return nil }
func (panickyExtractor) Extract(neural.Window) neural.FeatureMap {
	panic("boom")
}

type noopClassifier struct{}

func (noopClassifier) Name() string { return "noop" }
func (noopClassifier) Classify(neural.FeatureMap) neural.ClassificationResult {
	return neural.ClassificationResult{Kind: neural.KindMentalState, Label: "NEUTRAL"}
}

func TestIngestProducesResultsOncePairsRegistered(t *testing.T) {
	registry := NewRegistry()
	registry.Add("mental_state", features.NewMentalStateExtractor(1000), classifiers.NewMentalStateClassifier())
	p := NewProcessor(registry, 50)

	fs := 256.0
	for i := 0; i < 5; i++ {
		packet := sinePacket(2, fs, int(fs), "dev1", "sess1")
		require.NoError(t, p.Ingest(packet))
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case result := <-p.Results():
		require.Equal(t, neural.KindMentalState, result.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a classification result")
	}
}

func TestFailingPairDoesNotBlockPeers(t *testing.T) {
	registry := NewRegistry()
	registry.Add("panicky", panickyExtractor{}, noopClassifier{})
	registry.Add("mental_state", features.NewMentalStateExtractor(1000), classifiers.NewMentalStateClassifier())
	p := NewProcessor(registry, 50)

	fs := 256.0
	for i := 0; i < 5; i++ {
		packet := sinePacket(2, fs, int(fs), "dev2", "sess2")
		require.NoError(t, p.Ingest(packet))
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case result := <-p.Results():
		require.Equal(t, neural.KindMentalState, result.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the surviving pair's result despite the panicking pair")
	}
	require.GreaterOrEqual(t, p.Stats().Errors, int64(1))
}

func TestIngestAnnotatesResultWithSignalQuality(t *testing.T) {
	registry := NewRegistry()
	registry.Add("mental_state", features.NewMentalStateExtractor(1000), classifiers.NewMentalStateClassifier())
	p := NewProcessor(registry, 50)

	fs := 256.0
	for i := 0; i < 5; i++ {
		packet := sinePacket(2, fs, int(fs), "dev4", "sess4")
		require.NoError(t, p.Ingest(packet))
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case result := <-p.Results():
		require.NotEmpty(t, result.Metadata["signal_quality"])
	case <-time.After(2 * time.Second):
		t.Fatal("expected a classification result")
	}
}

func TestEndStreamDropsBufferState(t *testing.T) {
	registry := NewRegistry()
	p := NewProcessor(registry, 50)
	packet := sinePacket(1, 256, 256, "dev3", "sess3")
	require.NoError(t, p.Ingest(packet))
	p.EndStream("dev3", "sess3")
	_, ok := p.streams.Load("dev3_sess3")
	require.False(t, ok)
}
