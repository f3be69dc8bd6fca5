package classifiers

import (
	"math"
	"sync"
	"time"

	"github.com/neuroflux/engine/internal/neural"
)

const (
	seizureBaselineAlpha       = 0.1
	seizureImminentThreshold   = 0.85
	seizureHighThreshold       = 0.60
	seizureMediumThreshold     = 0.35
	seizureRecentWindowHours   = 24.0
	seizureRecentMaxBoost      = 0.3
	seizureSmoothingWindow     = 5 * time.Minute
	seizureTimeToSeizureMaxMin = 30.0
	seizureTimeToSeizureMinMin = 10.0
	seizureTimeToSeizureFloor  = 5.0
	seizureSpikeFocusSigma     = 2.0
)

// seizureIndicatorWeights are the per-indicator weights the combined
// seizure-risk score is a weighted sum over, matching the original
// research model's feature_weights (spectral_edge_frequency=0.15,
// line_length=0.12, wavelet_energy=0.10, phase_synchronization=0.15,
// hjorth_parameters=0.08, entropy_measures=0.10, coherence_changes=0.12,
// spike_rate=0.18); they sum to 1.
var seizureIndicatorWeights = map[string]float64{
	"spectral_edge_frequency":        0.15,
	"line_length":                    0.12,
	"wavelet_low_freq_concentration": 0.10,
	"phase_locking_value":            0.15,
	"hjorth_complexity":              0.08,
	"sample_entropy":                 0.10,
	"beta_coherence":                 0.12,
	"spike_rate":                     0.18,
}

// seizurePatientState is the per-patient EMA baseline and seizure history
// tracked across classify calls. One SeizurePredictor may serve several
// patients concurrently, so state is keyed by patientID.
type seizurePatientState struct {
	baseline         map[string]float64
	baselineWindows  int
	seizureTimes     []time.Time
	smoothedProb     float64
	smoothedAt       time.Time
	smoothedInit     bool
}

// Thresholds are the three risk-band cutoffs a SeizurePredictor applies
// to a patient's combined probability. The zero value is invalid; use
// DefaultThresholds or a config-supplied override.
type Thresholds struct {
	Imminent float64
	High     float64
	Medium   float64
}

// DefaultThresholds mirrors the global cutoffs of the underlying research
// model. A clinician-configured per-patient overlay replaces these via
// SetPatientThresholds when a patient's baseline seizure frequency
// warrants a tighter or looser band.
var DefaultThresholds = Thresholds{
	Imminent: seizureImminentThreshold,
	High:     seizureHighThreshold,
	Medium:   seizureMediumThreshold,
}

// SeizurePredictor combines eight indicator scores against a per-patient
// EMA baseline, blends in recent-seizure history, and applies exponential
// temporal smoothing that current IMMINENT risk overrides.
type SeizurePredictor struct {
	mu        sync.Mutex
	patients  map[string]*seizurePatientState
	overrides map[string]Thresholds
}

func NewSeizurePredictor() *SeizurePredictor {
	return &SeizurePredictor{
		patients:  make(map[string]*seizurePatientState),
		overrides: make(map[string]Thresholds),
	}
}

// SetPatientThresholds installs a per-patient threshold override, replacing
// DefaultThresholds for every subsequent ClassifyForPatient call with this
// patientID. Pass the zero Thresholds to fall back to the global default.
func (c *SeizurePredictor) SetPatientThresholds(patientID string, t Thresholds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t == (Thresholds{}) {
		delete(c.overrides, patientID)
		return
	}
	c.overrides[patientID] = t
}

func (c *SeizurePredictor) thresholdsFor(patientID string) Thresholds {
	if t, ok := c.overrides[patientID]; ok {
		return t
	}
	return DefaultThresholds
}

func (c *SeizurePredictor) Name() string { return "seizure_predictor" }

// Classify satisfies the Classifier interface for stream-processor
// registration; the patient is read from the feature map's metadata since
// ClassificationResult carries PatientID but FeatureMap has no dedicated
// field for it. Streams not bound to a patient fall back to "unknown".
func (c *SeizurePredictor) Classify(f neural.FeatureMap) neural.ClassificationResult {
	patientID := f.Metadata["patient_id"]
	if patientID == "" {
		patientID = "unknown"
	}
	return c.ClassifyForPatient(patientID, f)
}

// ClassifyForPatient is the seizure predictor's entry point; patientID is
// not carried on FeatureMap so callers supply it alongside the features.
func (c *SeizurePredictor) ClassifyForPatient(patientID string, f neural.FeatureMap) neural.ClassificationResult {
	start := time.Now()
	now := f.Timestamp
	if now.IsZero() {
		now = start
	}

	indicators := map[string]float64{
		"spectral_edge_frequency":        -f.Get("spectral_edge_frequency"), // decrease raises risk
		"line_length":                    f.Get("line_length"),
		"wavelet_low_freq_concentration": f.Get("wavelet_low_freq_concentration"),
		"phase_locking_value":            f.Get("phase_locking_value"),
		"hjorth_complexity":              -f.Get("hjorth_complexity"), // decrease raises risk
		"sample_entropy":                 -f.Get("sample_entropy"),    // decrease raises risk
		"beta_coherence":                 f.Get("beta_coherence"),
		"spike_rate":                     f.Get("spike_rate"),
	}

	c.mu.Lock()
	state, ok := c.patients[patientID]
	if !ok {
		state = &seizurePatientState{baseline: map[string]float64{}}
		c.patients[patientID] = state
	}
	thresholds := c.thresholdsFor(patientID)

	ratios := make(map[string]float64, len(indicators))
	for name, v := range indicators {
		baseline, seen := state.baseline[name]
		if !seen {
			ratios[name] = 0.5
		} else {
			ratios[name] = indicatorRatio(v, baseline)
		}
	}

	var weighted float64
	for name, r := range ratios {
		weighted += seizureIndicatorWeights[name] * r
	}
	combined := clamp01(weighted)

	recentFactor := recentSeizureFactor(state.seizureTimes, now)
	combined = clamp01(combined + recentFactor)

	riskLevel := riskLevelFor(combined, thresholds)

	if riskLevel != neural.RiskHigh && riskLevel != neural.RiskImminent {
		for name, v := range indicators {
			prevBaseline, seen := state.baseline[name]
			if !seen {
				state.baseline[name] = v
			} else {
				state.baseline[name] = seizureBaselineAlpha*v + (1-seizureBaselineAlpha)*prevBaseline
			}
		}
		state.baselineWindows++
	}

	smoothedProb := combined
	if state.smoothedInit && riskLevel != neural.RiskImminent {
		elapsed := now.Sub(state.smoothedAt)
		weight := smoothingWeight(elapsed, seizureSmoothingWindow)
		smoothedProb = weight*state.smoothedProb + (1-weight)*combined
	}
	state.smoothedProb = smoothedProb
	state.smoothedAt = now
	state.smoothedInit = true

	finalRisk := riskLevelFor(smoothedProb, thresholds)
	if finalRisk == neural.RiskImminent {
		state.seizureTimes = append(state.seizureTimes, now)
	}
	velocity := f.Get("feature_velocity")
	spatialFocus := spatialFocusFromRates(f.Features["channel_spike_rates"])
	c.mu.Unlock()

	probs := map[string]float64{
		string(neural.RiskLow):      0,
		string(neural.RiskMedium):   0,
		string(neural.RiskHigh):     0,
		string(neural.RiskImminent): 0,
	}
	probs[string(finalRisk)] = 1

	var timeToSeizure *float64
	if finalRisk == neural.RiskHigh || finalRisk == neural.RiskImminent {
		minutes := timeToSeizureMinutes(smoothedProb, velocity, thresholds)
		timeToSeizure = &minutes
	}

	return neural.ClassificationResult{
		Kind:                 neural.KindSeizureRisk,
		Timestamp:            f.Timestamp,
		Label:                string(finalRisk),
		Probabilities:        probs,
		Confidence:           smoothedProb,
		LatencyMs:            float64(time.Since(start).Microseconds()) / 1000.0,
		RiskLevel:            finalRisk,
		Probability:          smoothedProb,
		TimeToSeizureMinutes: timeToSeizure,
		SpatialFocus:         spatialFocus,
		PatientID:            patientID,
	}
}

// indicatorRatio maps an indicator value against its baseline onto [0,1];
// values pointing toward seizure onset (positive deviation from baseline)
// score higher. A zero baseline falls back to a saturating scale of the
// raw value itself so the ratio stays bounded.
func indicatorRatio(value, baseline float64) float64 {
	if baseline == 0 {
		return sigmoid(value, sigmoidSteepness)
	}
	deviation := (value - baseline) / absf(baseline)
	return clamp01(0.5 + deviation/2)
}

func riskLevelFor(probability float64, t Thresholds) neural.SeizureRiskLevel {
	switch {
	case probability >= t.Imminent:
		return neural.RiskImminent
	case probability >= t.High:
		return neural.RiskHigh
	case probability >= t.Medium:
		return neural.RiskMedium
	default:
		return neural.RiskLow
	}
}

// recentSeizureFactor contributes up to +0.3 probability, decaying linearly
// to 0 over the trailing 24h window since the most recent recorded seizure.
func recentSeizureFactor(history []time.Time, now time.Time) float64 {
	if len(history) == 0 {
		return 0
	}
	last := history[len(history)-1]
	hoursSince := now.Sub(last).Hours()
	if hoursSince < 0 {
		hoursSince = 0
	}
	if hoursSince >= seizureRecentWindowHours {
		return 0
	}
	return seizureRecentMaxBoost * (1 - hoursSince/seizureRecentWindowHours)
}

// smoothingWeight converts an elapsed duration into an exponential decay
// weight for the previous smoothed value, with seizureSmoothingWindow as
// the time constant.
func smoothingWeight(elapsed, window time.Duration) float64 {
	if elapsed <= 0 {
		return 1
	}
	return math.Exp(-float64(elapsed) / float64(window))
}

// timeToSeizureMinutes interpolates linearly between the HIGH boundary and
// the IMMINENT boundary of t, scales down by feature velocity, and floors
// at 5 minutes.
func timeToSeizureMinutes(probability, velocity float64, t Thresholds) float64 {
	span := t.Imminent - t.High
	frac := clamp01((probability - t.High) / span)
	base := seizureTimeToSeizureMaxMin - frac*(seizureTimeToSeizureMaxMin-seizureTimeToSeizureMinMin)
	scaled := base / (1 + velocity)
	if scaled < seizureTimeToSeizureFloor {
		scaled = seizureTimeToSeizureFloor
	}
	return scaled
}

// spatialFocusFromRates returns the indices of channels whose spike rate
// exceeds mean + 2 sigma across channels.
func spatialFocusFromRates(rates []float64) []int {
	if len(rates) == 0 {
		return nil
	}
	var sum float64
	for _, r := range rates {
		sum += r
	}
	mean := sum / float64(len(rates))
	var variance float64
	for _, r := range rates {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(rates))
	threshold := mean + seizureSpikeFocusSigma*math.Sqrt(variance)

	var focus []int
	for i, r := range rates {
		if r > threshold {
			focus = append(focus, i)
		}
	}
	return focus
}
