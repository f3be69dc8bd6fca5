package features_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neuroflux/engine/internal/features"
	"github.com/neuroflux/engine/internal/neural"
)

func sineWindow(channels []string, freq, fs float64, n int, amp float64) neural.Window {
	data := make([][]float64, len(channels))
	for c := range data {
		data[c] = make([]float64, n)
		for i := range data[c] {
			data[c][i] = amp * math.Sin(2*math.Pi*freq*float64(i)/fs)
		}
	}
	return neural.Window{Channels: channels, SamplingRateHz: fs, Data: data}
}

func TestMentalStateAlphaDominance(t *testing.T) {
	e := features.NewMentalStateExtractor(1000)
	w := sineWindow([]string{"C3", "C4"}, 10, 256, 256, 50) // 10Hz -> alpha band
	fm := e.Extract(w)
	require.Greater(t, fm.Get("alpha_power"), fm.Get("beta_power"))
}

func TestExtractorsFlagNonFiniteInput(t *testing.T) {
	w := sineWindow([]string{"C3"}, 10, 256, 256, 50)
	w.Data[0][0] = math.NaN()

	fm := features.NewMentalStateExtractor(1000).Extract(w)
	require.Equal(t, float64(0), fm.SignalQuality)
}

func TestMotorImageryBaselineStabilizes(t *testing.T) {
	e := features.NewMotorImageryExtractor(1000, nil)
	w := sineWindow([]string{"C3", "C4", "CP3", "CP4", "FC3", "FC4"}, 10, 256, 256, 30)
	var last neural.FeatureMap
	for i := 0; i < 12; i++ {
		last = e.Extract(w)
	}
	require.Equal(t, "true", last.Metadata["baseline_stable"])
}

func TestSeizureFeatureVelocityZeroOnFirstCall(t *testing.T) {
	e := features.NewSeizureExtractor()
	w := sineWindow([]string{"C3", "C4"}, 20, 256, 2560, 40)
	fm := e.Extract(w)
	require.Equal(t, float64(0), fm.Get("feature_velocity"))
}
