package classifiers

import (
	"sync"
	"time"

	"github.com/neuroflux/engine/internal/neural"
)

const (
	mentalStateSmoothWindow  = 10
	mentalStateConfidenceMin = 0.3

	mentalStateFocusBetaAlphaWeight = 0.4
	mentalStateFocusThetaWeight     = 0.3
	mentalStateFocusAttentionWeight = 0.3
	mentalStateRelaxAlphaWeight     = 0.5
	mentalStateRelaxBetaWeight      = 0.3
	mentalStateRelaxAsymmetryWeight = 0.2
	mentalStateStressBetaWeight     = 0.4
	mentalStateStressMuscleWeight   = 0.3
	mentalStateStressHRVWeight      = 0.3
)

// MentalStateClassifier scores {FOCUS, RELAXATION, STRESS} against fixed
// thresholds, assigns residual mass to NEUTRAL, and applies the 10-window
// weighted EMA + stability confidence adjustment. One instance per stream.
type MentalStateClassifier struct {
	mu sync.Mutex
	sm *smoother
}

func NewMentalStateClassifier() *MentalStateClassifier {
	return &MentalStateClassifier{sm: newSmoother(mentalStateSmoothWindow)}
}

func (c *MentalStateClassifier) Name() string { return "mental_state" }

func (c *MentalStateClassifier) Classify(f neural.FeatureMap) neural.ClassificationResult {
	start := time.Now()

	betaAlpha := f.Get("beta_alpha_ratio")
	frontalTheta := f.Get("frontal_theta")
	attention := f.Get("attention_index")
	alpha := f.Get("alpha_power")
	beta := f.Get("beta_power")
	alphaAsym := f.Get("alpha_asymmetry")
	muscleArtifacts := f.Get("muscle_artifacts")
	hrvDecrease := f.Get("hrv_decrease")

	focusScore := mentalStateFocusBetaAlphaWeight*atLeast(betaAlpha, 1.5) +
		mentalStateFocusThetaWeight*atLeast(frontalTheta, 0.6) +
		mentalStateFocusAttentionWeight*atLeast(attention, 0.7)
	relaxScore := mentalStateRelaxAlphaWeight*atLeast(alpha, 0.7) +
		mentalStateRelaxBetaWeight*atMost(beta, 0.3) +
		mentalStateRelaxAsymmetryWeight*atMost(absf(alphaAsym), 0.2)
	stressScore := mentalStateStressBetaWeight*atLeast(beta, 0.6) +
		mentalStateStressMuscleWeight*atLeast(muscleArtifacts, 0.4) +
		mentalStateStressHRVWeight*atLeast(hrvDecrease, 0.3)

	scores := map[string]float64{"FOCUS": focusScore, "RELAXATION": relaxScore, "STRESS": stressScore}
	probs := normalizeWithResidual(scores, "NEUTRAL")
	label, _, margin := argmax(probs)

	c.mu.Lock()
	c.sm.push(probs, label, clamp01(margin))
	smoothed := c.sm.smoothedProbabilities()
	stability := c.sm.stability()
	c.mu.Unlock()

	smoothedLabel, _, smoothedMargin := argmax(smoothed)
	confidence := clamp01(smoothedMargin) * (0.7 + 0.3*stability)

	if confidence < mentalStateConfidenceMin {
		smoothedLabel = "UNKNOWN"
	}

	return neural.ClassificationResult{
		Kind:          neural.KindMentalState,
		Timestamp:     f.Timestamp,
		Label:         smoothedLabel,
		Probabilities: smoothed,
		Confidence:    confidence,
		LatencyMs:     float64(time.Since(start).Microseconds()) / 1000.0,
		Arousal:       clamp01((betaAlpha) / 3),
		Valence:       clampSigned(alphaAsym),
		Attention:     clamp01(attention),
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func clampSigned(x float64) float64 {
	if x < -1 {
		return -1
	}
	if x > 1 {
		return 1
	}
	return x
}
