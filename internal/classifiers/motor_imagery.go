package classifiers

import (
	"math"
	"sync"
	"time"

	"github.com/neuroflux/engine/internal/neural"
)

const motorControlSmoothingAlpha = 0.3

var motorControlVectors = map[string][2]float64{
	"LEFT_HAND":  {-1, 0},
	"RIGHT_HAND": {1, 0},
	"FEET":       {0, 1},
	"TONGUE":     {0, -1},
	"REST":       {0, 0},
}

// MotorImageryClassifier derives hand/feet/tongue/rest intent from
// contralateral ERD and smooths the resulting 2D control vector against
// its own previous output. One instance per stream.
type MotorImageryClassifier struct {
	mu             sync.Mutex
	previousControl [2]float64
}

func NewMotorImageryClassifier() *MotorImageryClassifier {
	return &MotorImageryClassifier{}
}

func (c *MotorImageryClassifier) Name() string { return "motor_imagery" }

func erdMagnitude(erd float64) float64 {
	if erd >= 0 {
		return 0
	}
	return clamp01(-erd)
}

func (c *MotorImageryClassifier) Classify(f neural.FeatureMap) neural.ClassificationResult {
	start := time.Now()

	leftErd := f.Get("left_erd_mu")
	rightErd := f.Get("right_erd_mu")
	leftBeta := f.Get("left_beta_power")
	rightBeta := f.Get("right_beta_power")

	// contralateral: imagining the RIGHT hand desynchronizes the LEFT
	// hemisphere (C3), and vice versa.
	rightHandScore := atLeast(erdMagnitude(leftErd), 0.3)
	leftHandScore := atLeast(erdMagnitude(rightErd), 0.3)
	feetScore := atLeast(minf(erdMagnitude(leftErd), erdMagnitude(rightErd)), 0.2)
	betaAsym := 0.0
	if sum := leftBeta + rightBeta; sum > 0 {
		betaAsym = absf(leftBeta-rightBeta) / sum
	}
	tongueScore := atLeast(betaAsym, 0.2)

	scores := map[string]float64{
		"LEFT_HAND":  leftHandScore,
		"RIGHT_HAND": rightHandScore,
		"FEET":       feetScore,
		"TONGUE":     tongueScore,
	}

	if cspFeatures, ok := f.Features["csp_features"]; ok && len(cspFeatures) >= 2 {
		cspLeftVsRight := sigmoid(cspFeatures[0]-cspFeatures[1], 1.0)
		scores["LEFT_HAND"] = 0.6*cspLeftVsRight + 0.4*scores["LEFT_HAND"]
		scores["RIGHT_HAND"] = 0.6*(1-cspLeftVsRight) + 0.4*scores["RIGHT_HAND"]
	}

	label, top, probs := normalizeWithRest(scores)
	confidence := top

	c.mu.Lock()
	erdErsScore := erdSignalForLabel(label, leftErd, rightErd, betaAsym)
	raw := motorControlVectors[label]
	scale := confidence * absf(erdErsScore)
	target := [2]float64{raw[0] * scale, raw[1] * scale}

	smoothed := [2]float64{
		motorControlSmoothingAlpha*target[0] + (1-motorControlSmoothingAlpha)*c.previousControl[0],
		motorControlSmoothingAlpha*target[1] + (1-motorControlSmoothingAlpha)*c.previousControl[1],
	}
	smoothed = clampUnitDisk(smoothed)
	c.previousControl = smoothed
	c.mu.Unlock()

	return neural.ClassificationResult{
		Kind:           neural.KindMotorImagery,
		Timestamp:      f.Timestamp,
		Label:          label,
		Probabilities:  probs,
		Confidence:     confidence,
		LatencyMs:      float64(time.Since(start).Microseconds()) / 1000.0,
		ControlSignal:  smoothed,
		ErdErsScore:    clampSigned(erdErsScore),
		SpatialPattern: []float64{f.Get("spatial_complexity")},
	}
}

// normalizeWithRest computes the four active-intent scores plus REST =
// 1 - max(others), then rescales the active scores so the full
// distribution sums to exactly 1.
func normalizeWithRest(scores map[string]float64) (label string, confidence float64, probs map[string]float64) {
	var maxScore float64
	var sum float64
	for _, v := range scores {
		if v > maxScore {
			maxScore = v
		}
		sum += v
	}
	rest := 1 - maxScore
	probs = make(map[string]float64, len(scores)+1)
	if sum > 0 {
		scale := maxScore / sum
		for k, v := range scores {
			probs[k] = v * scale
		}
	} else {
		for k := range scores {
			probs[k] = 0
		}
	}
	probs["REST"] = clamp01(rest)

	label, confidence, _ = argmax(probs)
	return label, confidence, probs
}

func erdSignalForLabel(label string, leftErd, rightErd, betaAsym float64) float64 {
	switch label {
	case "LEFT_HAND":
		return rightErd
	case "RIGHT_HAND":
		return leftErd
	case "FEET":
		return -maxf(erdMagnitude(leftErd), erdMagnitude(rightErd))
	case "TONGUE":
		return betaAsym
	default:
		return 0
	}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clampUnitDisk(v [2]float64) [2]float64 {
	mag := v[0]*v[0] + v[1]*v[1]
	if mag <= 1 {
		return v
	}
	norm := math.Sqrt(mag)
	return [2]float64{v[0] / norm, v[1] / norm}
}
