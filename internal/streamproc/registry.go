// Package streamproc implements the cadence-gated fan-out that turns
// per-device sample packets into classification results: a registry of
// (extractor, classifier) pairs, one ring buffer per active stream, and a
// goroutine per pair on every classification tick so a failing pair never
// blocks its peers.
package streamproc

import (
	"sync"

	"github.com/neuroflux/engine/internal/classifiers"
	"github.com/neuroflux/engine/internal/features"
)

// Pair binds one named feature extractor to the classifier that consumes
// its output.
type Pair struct {
	Name       string
	Extractor  features.Extractor
	Classifier classifiers.Classifier
}

// Registry holds the active (extractor, classifier) pairs by name.
type Registry struct {
	mu    sync.RWMutex
	pairs map[string]Pair
}

func NewRegistry() *Registry {
	return &Registry{pairs: make(map[string]Pair)}
}

// Add registers or replaces the pair under name.
func (r *Registry) Add(name string, extractor features.Extractor, classifier classifiers.Classifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs[name] = Pair{Name: name, Extractor: extractor, Classifier: classifier}
}

// Remove drops a registered pair, a no-op if absent.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pairs, name)
}

// Names returns the currently active pair names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pairs))
	for name := range r.pairs {
		names = append(names, name)
	}
	return names
}

// snapshot returns a stable copy of the pairs for a single fan-out round.
func (r *Registry) snapshot() []Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Pair, 0, len(r.pairs))
	for _, p := range r.pairs {
		out = append(out, p)
	}
	return out
}

// DefaultRegistry wires the four built-in pairs: mental state, sleep
// stage, motor imagery, and the seizure predictor, each feeding its own
// stateful classifier instance.
func DefaultRegistry(csp *features.CSPProjection) *Registry {
	r := NewRegistry()
	r.Add("mental_state", features.NewMentalStateExtractor(2000), classifiers.NewMentalStateClassifier())
	r.Add("sleep_stage", features.NewSleepExtractor(), classifiers.NewSleepStageClassifier())
	r.Add("motor_imagery", features.NewMotorImageryExtractor(2000, csp), classifiers.NewMotorImageryClassifier())
	r.Add("seizure", features.NewSeizureExtractor(), classifiers.NewSeizurePredictor())
	return r
}
