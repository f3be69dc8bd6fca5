// Package features implements the extractor family of Component C: window
// -> named feature map. Each extractor declares its required window size
// and its feature keyspace statically (the typed-map rendering of the
// source's loosely-typed dictionaries, per Design Note "Dynamic feature
// bags -> typed maps").
package features

import (
	"github.com/neuroflux/engine/internal/dsp"
	"github.com/neuroflux/engine/internal/neural"
)

// Extractor is the behavioural interface every feature extractor satisfies.
type Extractor interface {
	Name() string
	RequiredWindowMs() float64
	FeatureNames() []string
	Extract(w neural.Window) neural.FeatureMap
}

// bandPowers computes PSD band powers for a single channel's samples.
func bandPowers(samples []float64, fs float64, bands map[string][2]float64) map[string]float64 {
	psd := dsp.WelchPSD(samples, fs, 0)
	out := make(map[string]float64, len(bands))
	for name, rng := range bands {
		out[name] = psd.BandPower(rng[0], rng[1])
	}
	return out
}

func channelIndex(channels []string, name string) int {
	for i, c := range channels {
		if c == name {
			return i
		}
	}
	return -1
}

func nonFiniteWindow(w neural.Window) bool {
	for _, ch := range w.Data {
		if !dsp.AllFinite(ch) {
			return true
		}
	}
	return false
}

func emptyResult(windowMs int) neural.FeatureMap {
	return neural.FeatureMap{
		Features:      map[string][]float64{},
		WindowSizeMs:  windowMs,
		SignalQuality: 0,
	}
}
