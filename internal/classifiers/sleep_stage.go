package classifiers

import (
	"sync"
	"time"

	"github.com/neuroflux/engine/internal/neural"
)

var sleepStages = []string{"WAKE", "N1", "N2", "N3", "REM"}

// sleepTransitionMatrix is a fixed 5x5 Markov prior indexed [from][to],
// each row summing to 1, reflecting typical adult sleep architecture
// (strong self-transition, N2 as the hub stage, REM reachable mainly from
// N2/N1).
var sleepTransitionMatrix = map[string]map[string]float64{
	"WAKE": {"WAKE": 0.80, "N1": 0.18, "N2": 0.015, "N3": 0.0, "REM": 0.005},
	"N1":   {"WAKE": 0.15, "N1": 0.55, "N2": 0.27, "N3": 0.01, "REM": 0.02},
	"N2":   {"WAKE": 0.02, "N1": 0.08, "N2": 0.70, "N3": 0.12, "REM": 0.08},
	"N3":   {"WAKE": 0.01, "N1": 0.02, "N2": 0.20, "N3": 0.76, "REM": 0.01},
	"REM":  {"WAKE": 0.05, "N1": 0.10, "N2": 0.15, "N3": 0.0, "REM": 0.70},
}

const (
	sleepInstabilityWindow = 5
	sleepFeatureWeight     = 0.7
	sleepTransitionWeight  = 0.3

	// Per-stage indicator weights, grounded on the original model's
	// per-stage score (wake: alpha_power=0.4, emg_power=0.4,
	// eye_movements=0.2; n1: theta_power=0.5, alpha_decrease=0.3,
	// vertex_waves=0.2; n2: spindle_density=0.4, k_complex_presence=0.3,
	// theta_dominance=0.3; n3: delta_power=0.5, slow_wave_amplitude=0.3,
	// delta_percentage=0.2; rem: theta_power=0.3, emg_atonia=0.4,
	// rem_density=0.3). The Go feature set folds delta_power and
	// delta_percentage into a single deltaPct indicator and has no theta
	// term for wake/REM, so those stages' weights are redistributed onto
	// the closest surviving indicator rather than split further.
	sleepWakeAlphaWeight  = 0.4
	sleepWakeDeltaWeight  = 0.4
	sleepWakeEOGWeight    = 0.2
	sleepN1ThetaWeight    = 0.5
	sleepN1AlphaWeight    = 0.3
	sleepN1VertexWeight   = 0.2
	sleepN2SpindleWeight  = 0.4
	sleepN2KComplexWeight = 0.3
	sleepN2DeltaLoWeight  = 0.15
	sleepN2DeltaHiWeight  = 0.15
	sleepN3DeltaWeight    = 0.7
	sleepN3SlowWaveWeight = 0.3
	sleepREMEMGWeight     = 0.4
	sleepREMDensityWeight = 0.3
	sleepREMDeltaWeight   = 0.3
)

// SleepStageClassifier scores the five AASM stages from band/artifact
// features, blends the result with a fixed Markov transition prior indexed
// by the previous stage, and tracks a monotonic epoch counter. One
// instance per stream.
type SleepStageClassifier struct {
	mu            sync.Mutex
	previousStage string
	epoch         int
	history       *smoother
}

func NewSleepStageClassifier() *SleepStageClassifier {
	return &SleepStageClassifier{previousStage: "WAKE", history: newSmoother(sleepInstabilityWindow)}
}

func (c *SleepStageClassifier) Name() string { return "sleep_stage" }

func normRate(x, scale float64) float64 {
	v := x / scale
	return clamp01(v)
}

func (c *SleepStageClassifier) Classify(f neural.FeatureMap) neural.ClassificationResult {
	start := time.Now()

	total := f.Get("delta_power") + f.Get("theta_power") + f.Get("alpha_power") +
		f.Get("sigma_power") + f.Get("beta_power") + f.Get("gamma_power")
	alphaRatio := safeDivC(f.Get("alpha_power"), total)
	thetaRatio := safeDivC(f.Get("theta_power"), total)
	deltaPct := f.Get("delta_percentage")
	spindleNorm := normRate(f.Get("spindle_density"), 5)
	kcomplexNorm := normRate(f.Get("kcomplex_count"), 5)
	vertexNorm := normRate(f.Get("vertex_wave_count"), 5)
	emgNorm := normRate(f.Get("emg_rms_power"), 50)
	eogNorm := normRate(f.Get("eog_movement_rate"), 5)
	remNorm := normRate(f.Get("rem_density"), 5)

	scores := map[string]float64{
		"WAKE": sleepWakeAlphaWeight*atLeast(alphaRatio, 0.3) +
			sleepWakeDeltaWeight*atMost(deltaPct, 0.2) +
			sleepWakeEOGWeight*atLeast(eogNorm, 0.3),
		"N1": sleepN1ThetaWeight*atLeast(thetaRatio, 0.25) +
			sleepN1AlphaWeight*atMost(alphaRatio, 0.25) +
			sleepN1VertexWeight*atLeast(vertexNorm, 0.2),
		"N2": sleepN2SpindleWeight*atLeast(spindleNorm, 0.3) +
			sleepN2KComplexWeight*atLeast(kcomplexNorm, 0.2) +
			sleepN2DeltaLoWeight*atLeast(deltaPct, 0.2) +
			sleepN2DeltaHiWeight*atMost(deltaPct, 0.5),
		"N3": sleepN3DeltaWeight*atLeast(deltaPct, 0.5) +
			sleepN3SlowWaveWeight*atLeast(f.Get("slow_wave_amplitude")/75, 0.3),
		"REM": sleepREMEMGWeight*atMost(emgNorm, 0.2) +
			sleepREMDensityWeight*atLeast(remNorm, 0.3) +
			sleepREMDeltaWeight*atMost(deltaPct, 0.15),
	}

	var sum float64
	for _, v := range scores {
		sum += v
	}
	featureProbs := make(map[string]float64, len(scores))
	if sum > 0 {
		for k, v := range scores {
			featureProbs[k] = v / sum
		}
	} else {
		for _, stage := range sleepStages {
			featureProbs[stage] = 1.0 / float64(len(sleepStages))
		}
	}

	c.mu.Lock()
	transitionRow := sleepTransitionMatrix[c.previousStage]
	blended := make(map[string]float64, len(sleepStages))
	var blendedSum float64
	for _, stage := range sleepStages {
		v := sleepFeatureWeight*featureProbs[stage] + sleepTransitionWeight*transitionRow[stage]
		blended[stage] = v
		blendedSum += v
	}
	if blendedSum > 0 {
		for k := range blended {
			blended[k] /= blendedSum
		}
	}

	label, top, _ := argmax(blended)
	c.history.push(blended, label, top)
	instability := 1 - c.history.stability()

	selfTransitionProb := transitionRow[label]
	transitionProbability := (1 - selfTransitionProb) * (1 + instability)

	c.epoch++
	epoch := c.epoch
	c.previousStage = label
	c.mu.Unlock()

	return neural.ClassificationResult{
		Kind:                  neural.KindSleepStage,
		Timestamp:             f.Timestamp,
		Label:                 label,
		Probabilities:         blended,
		Confidence:            top,
		LatencyMs:             float64(time.Since(start).Microseconds()) / 1000.0,
		EpochNumber:           epoch,
		SleepDepth:            sleepDepth(label, deltaPct),
		TransitionProbability: transitionProbability,
	}
}

func sleepDepth(stage string, deltaPct float64) float64 {
	switch stage {
	case "WAKE":
		return 0
	case "N1":
		return 0.2
	case "N2":
		return 0.5
	case "N3":
		return clamp01(0.7 + 0.3*deltaPct)
	case "REM":
		return 0.3
	default:
		return 0
	}
}

func safeDivC(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
