// Package classifiers implements Component D: feature map -> labelled
// result with temporal smoothing. Each classifier is a behavioural
// interface with a single concrete type per variant; a classifier instance
// owns its smoothing history and must never be shared across streams.
package classifiers

import (
	"math"

	"github.com/neuroflux/engine/internal/neural"
)

// Classifier is the behavioural interface every classifier satisfies.
type Classifier interface {
	Name() string
	Classify(f neural.FeatureMap) neural.ClassificationResult
}

// sigmoid maps a deviation to (0,1); k controls steepness.
func sigmoid(x, k float64) float64 {
	return 1 / (1 + math.Exp(-k*x))
}

const sigmoidSteepness = 8.0

// atLeast scores an indicator that should be >= threshold.
func atLeast(value, threshold float64) float64 {
	return sigmoid(value-threshold, sigmoidSteepness)
}

// atMost scores an indicator that should be <= threshold.
func atMost(value, threshold float64) float64 {
	return sigmoid(threshold-value, sigmoidSteepness)
}

// normalizeWithResidual scales label scores into a probability
// distribution, assigning the shortfall (1 - sum) to residualLabel. If the
// raw scores already sum above 1 they are rescaled down proportionally and
// the residual receives zero.
func normalizeWithResidual(scores map[string]float64, residualLabel string) map[string]float64 {
	var sum float64
	for _, v := range scores {
		sum += v
	}
	out := make(map[string]float64, len(scores)+1)
	if sum > 1 {
		for k, v := range scores {
			out[k] = v / sum
		}
		out[residualLabel] = 0
	} else {
		for k, v := range scores {
			out[k] = v
		}
		out[residualLabel] = 1 - sum
	}
	return out
}

// argmax returns the highest-probability label and the margin over the
// runner-up.
func argmax(probs map[string]float64) (label string, top, margin float64) {
	var second float64
	first := -1.0
	for k, v := range probs {
		if v > first {
			second = first
			top, label = v, k
			first = v
		} else if v > second {
			second = v
		}
	}
	if second < 0 {
		second = 0
	}
	margin = top - second
	return label, top, margin
}

// historyEntry is one smoothing-window observation.
type historyEntry struct {
	probs      map[string]float64
	label      string
	confidence float64
}

// smoother implements the 10-window weighted EMA with recency x confidence
// weights and a state-change-based stability score, shared by the
// mental-state and sleep-stage classifiers.
type smoother struct {
	window  []historyEntry
	maxLen  int
}

func newSmoother(maxLen int) *smoother {
	return &smoother{maxLen: maxLen}
}

func (s *smoother) push(probs map[string]float64, label string, confidence float64) {
	s.window = append(s.window, historyEntry{probs: probs, label: label, confidence: confidence})
	if len(s.window) > s.maxLen {
		s.window = s.window[len(s.window)-s.maxLen:]
	}
}

// smoothedProbabilities returns the recency x confidence weighted average
// of the probability vectors currently in the window.
func (s *smoother) smoothedProbabilities() map[string]float64 {
	out := map[string]float64{}
	var totalWeight float64
	n := len(s.window)
	for i, entry := range s.window {
		recency := float64(i+1) / float64(n)
		weight := recency * math.Max(entry.confidence, 1e-6)
		totalWeight += weight
		for k, v := range entry.probs {
			out[k] += v * weight
		}
	}
	if totalWeight > 0 {
		for k := range out {
			out[k] /= totalWeight
		}
	}
	return out
}

// stability returns 1 - fraction of adjacent label changes in the window.
func (s *smoother) stability() float64 {
	n := len(s.window)
	if n < 2 {
		return 1
	}
	changes := 0
	for i := 1; i < n; i++ {
		if s.window[i].label != s.window[i-1].label {
			changes++
		}
	}
	return 1 - float64(changes)/float64(n-1)
}
