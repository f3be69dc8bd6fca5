package quality_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neuroflux/engine/internal/neural"
	"github.com/neuroflux/engine/internal/quality"
)

func sine(freq, fs float64, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/fs)
	}
	return out
}

func TestImpedanceStepFunction(t *testing.T) {
	require.Equal(t, neural.QualityExcellent, quality.Impedance("C3", 4000).QualityLevel)
	require.Equal(t, neural.QualityGood, quality.Impedance("C3", 9000).QualityLevel)
	require.Equal(t, neural.QualityFair, quality.Impedance("C3", 20000).QualityLevel)
	require.Equal(t, neural.QualityPoor, quality.Impedance("C3", 40000).QualityLevel)
	require.Equal(t, neural.QualityBad, quality.Impedance("C3", 100000).QualityLevel)
}

func TestEvaluateChannelDeterministic(t *testing.T) {
	m := quality.New(quality.Config{SamplingRateHz: 256, LineFreqHz: 60})
	samples := sine(10, 256, 256, 50)

	a := m.EvaluateChannel("C3", samples)
	b := m.EvaluateChannel("C3", samples)
	require.Equal(t, a, b)
}

func TestOverallQualityIsWorstChannel(t *testing.T) {
	m := quality.New(quality.Config{SamplingRateHz: 256, LineFreqHz: 60})
	clean := sine(10, 256, 512, 80)
	noisy := make([]float64, 512)
	for i := range noisy {
		noisy[i] = 5 * math.Sin(2*math.Pi*float64(i))
	}
	w := neural.Window{
		Channels:       []string{"C3", "C4"},
		SamplingRateHz: 256,
		Data:           [][]float64{clean, noisy},
	}
	summary := m.EvaluateWindow(w)
	require.Len(t, summary.PerChannel, 2)
	require.NotEqual(t, neural.QualityExcellent, summary.Overall)
}
