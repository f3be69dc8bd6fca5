// Package neural holds the data model shared across the classification
// pipeline, the device fabric, and the ledger: sample packets, windows,
// feature maps, and classification results.
package neural

import "time"

// SignalType enumerates the physiological signal modalities a device can
// stream.
type SignalType string

const (
	SignalEEG   SignalType = "EEG"
	SignalEMG   SignalType = "EMG"
	SignalEOG   SignalType = "EOG"
	SignalECG   SignalType = "ECG"
	SignalACC   SignalType = "ACC"
	SignalOther SignalType = "OTHER"
)

// SamplePacket is an immutable batch of channel-major samples emitted by a
// device. len(Data) must equal len(Channels); Timestamp marks the instant
// of the first sample.
type SamplePacket struct {
	Channels       []string
	SamplingRateHz float64
	Data           [][]float64 // [channel][sample]
	Timestamp      time.Time
	DeviceID       string
	SessionID      string
	SignalType     SignalType
	Source         string
}

// NumSamples returns the number of samples per channel in the packet, 0 if
// the packet carries no channels.
func (p SamplePacket) NumSamples() int {
	if len(p.Data) == 0 {
		return 0
	}
	return len(p.Data[0])
}

// Window is a contiguous (channels x samples) matrix assembled on demand by
// a ring buffer. It owns no independent lifetime past its single consumer.
type Window struct {
	Channels       []string
	SamplingRateHz float64
	Data           [][]float64 // [channel][sample]
	Timestamp      time.Time   // instant of Data[*][0]
	DeviceID       string
	SessionID      string
}

// NumSamples returns the per-channel sample count of the window.
func (w Window) NumSamples() int {
	if len(w.Data) == 0 {
		return 0
	}
	return len(w.Data[0])
}

// FeatureMap is produced once per window by a single extractor: named
// real-valued arrays plus the extractor's provenance.
type FeatureMap struct {
	Features      map[string][]float64
	Timestamp     time.Time
	WindowSizeMs  int
	SignalQuality float64 // 0 when the window contained non-finite samples
	Metadata      map[string]string
}

// Get returns the first element of a scalar feature, or 0 if absent.
func (f FeatureMap) Get(name string) float64 {
	v, ok := f.Features[name]
	if !ok || len(v) == 0 {
		return 0
	}
	return v[0]
}

// ResultKind discriminates the ClassificationResult sum type.
type ResultKind string

const (
	KindMentalState  ResultKind = "MENTAL_STATE"
	KindSleepStage   ResultKind = "SLEEP_STAGE"
	KindMotorImagery ResultKind = "MOTOR_IMAGERY"
	KindSeizureRisk  ResultKind = "SEIZURE_RISK"
)

// SeizureRiskLevel enumerates the seizure predictor's risk bands.
type SeizureRiskLevel string

const (
	RiskLow      SeizureRiskLevel = "LOW"
	RiskMedium   SeizureRiskLevel = "MEDIUM"
	RiskHigh     SeizureRiskLevel = "HIGH"
	RiskImminent SeizureRiskLevel = "IMMINENT"
)

// ClassificationResult is the idiomatic Go rendering of the source's
// per-kind result variants: one struct, a Kind discriminator, and every
// variant's fields present but zero-valued when not applicable.
type ClassificationResult struct {
	Kind          ResultKind
	Timestamp     time.Time
	Label         string
	Probabilities map[string]float64
	Confidence    float64
	LatencyMs     float64
	ExtractorMs   float64
	ClassifierMs  float64
	Metadata      map[string]string

	// Mental state
	Arousal   float64
	Valence   float64
	Attention float64

	// Sleep stage
	EpochNumber          int
	SleepDepth           float64
	TransitionProbability float64

	// Motor imagery
	ControlSignal [2]float64
	ErdErsScore   float64
	SpatialPattern []float64

	// Seizure risk
	RiskLevel             SeizureRiskLevel
	Probability           float64
	TimeToSeizureMinutes  *float64
	SpatialFocus          []int
	PatientID             string
}

// SignalQualityLevel enumerates the discrete quality bands of §4.B.
type SignalQualityLevel string

const (
	QualityExcellent SignalQualityLevel = "EXCELLENT"
	QualityGood      SignalQualityLevel = "GOOD"
	QualityFair      SignalQualityLevel = "FAIR"
	QualityPoor      SignalQualityLevel = "POOR"
	QualityBad       SignalQualityLevel = "BAD"
)

// SignalQualityMetrics is a per-channel quality score.
type SignalQualityMetrics struct {
	Channel        string
	SnrDb          float64
	RmsAmplitude   float64
	LineNoisePower float64
	ArtifactCount  int
	QualityLevel   SignalQualityLevel
}

// ImpedanceResult is a per-channel impedance reading.
type ImpedanceResult struct {
	Channel       string
	ImpedanceOhms float64
	QualityLevel  SignalQualityLevel
}

// QualitySummary aggregates per-channel metrics into an overall reading.
type QualitySummary struct {
	Overall     SignalQualityLevel
	MeanSnrDb   float64
	MinSnrDb    float64
	LevelCounts map[SignalQualityLevel]int
	PerChannel  []SignalQualityMetrics
}
