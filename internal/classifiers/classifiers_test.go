package classifiers

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neuroflux/engine/internal/neural"
)

func featureMap(values map[string]float64) neural.FeatureMap {
	features := make(map[string][]float64, len(values))
	for k, v := range values {
		features[k] = []float64{v}
	}
	return neural.FeatureMap{Features: features, Timestamp: time.Now(), SignalQuality: 1}
}

func sumProbabilities(probs map[string]float64) float64 {
	var sum float64
	for _, v := range probs {
		sum += v
	}
	return sum
}

func TestMentalStateProbabilitiesNormalize(t *testing.T) {
	c := NewMentalStateClassifier()
	f := featureMap(map[string]float64{
		"beta_alpha_ratio": 2.0, "frontal_theta": 0.8, "attention_index": 0.9,
	})
	result := c.Classify(f)
	require.InDelta(t, 1.0, sumProbabilities(result.Probabilities), 1e-6)
	_, top, _ := argmax(result.Probabilities)
	require.Equal(t, top, result.Probabilities[result.Label])
}

func TestMentalStateSmoothingConvergesWithinTenWindows(t *testing.T) {
	c := NewMentalStateClassifier()
	f := featureMap(map[string]float64{
		"alpha_power": 0.9, "beta_power": 0.1, "alpha_asymmetry": 0.0,
	})
	var last neural.ClassificationResult
	for i := 0; i < 10; i++ {
		last = c.Classify(f)
	}
	again := c.Classify(f)
	require.Equal(t, last.Label, again.Label)
	require.InDelta(t, last.Confidence, again.Confidence, 0.05)
}

func TestSleepStageProbabilitiesNormalize(t *testing.T) {
	c := NewSleepStageClassifier()
	f := featureMap(map[string]float64{
		"delta_power": 8, "theta_power": 1, "alpha_power": 0.5, "sigma_power": 0.2,
		"beta_power": 0.1, "gamma_power": 0.1, "delta_percentage": 0.6, "slow_wave_amplitude": 80,
	})
	result := c.Classify(f)
	require.InDelta(t, 1.0, sumProbabilities(result.Probabilities), 1e-6)
}

func TestSleepStageSmoothingConvergesWithinTenWindows(t *testing.T) {
	c := NewSleepStageClassifier()
	f := featureMap(map[string]float64{
		"delta_power": 8, "theta_power": 1, "alpha_power": 0.5, "sigma_power": 0.2,
		"beta_power": 0.1, "gamma_power": 0.1, "delta_percentage": 0.6, "slow_wave_amplitude": 80,
	})
	for i := 0; i < 9; i++ {
		c.Classify(f)
	}
	a := c.Classify(f)
	b := c.Classify(f)
	require.Equal(t, a.Label, b.Label)
}

func TestMotorImageryErdSignConvention(t *testing.T) {
	c := NewMotorImageryClassifier()
	// contralateral mu 40% below stabilised baseline on the left
	// hemisphere should select RIGHT_HAND with confidence >= 0.5.
	f := featureMap(map[string]float64{
		"left_erd_mu": -0.40, "right_erd_mu": 0.0,
		"left_beta_power": 0.2, "right_beta_power": 0.2,
	})
	var result neural.ClassificationResult
	for i := 0; i < 5; i++ {
		result = c.Classify(f)
	}
	require.Equal(t, "RIGHT_HAND", result.Label)
	require.GreaterOrEqual(t, result.Confidence, 0.5)
}

func TestMotorImageryControlSignalStaysInUnitDisk(t *testing.T) {
	c := NewMotorImageryClassifier()
	f := featureMap(map[string]float64{
		"left_erd_mu": -0.9, "right_erd_mu": -0.9,
		"left_beta_power": 0.9, "right_beta_power": 0.1,
	})
	result := c.Classify(f)
	mag := math.Sqrt(result.ControlSignal[0]*result.ControlSignal[0] + result.ControlSignal[1]*result.ControlSignal[1])
	require.LessOrEqual(t, mag, 1.0+1e-9)
}

func TestMotorImageryProbabilitiesNormalize(t *testing.T) {
	c := NewMotorImageryClassifier()
	f := featureMap(map[string]float64{
		"left_erd_mu": -0.5, "right_erd_mu": -0.1,
		"left_beta_power": 0.3, "right_beta_power": 0.1,
	})
	result := c.Classify(f)
	require.InDelta(t, 1.0, sumProbabilities(result.Probabilities), 1e-6)
}

func seizureFeatures(severity float64) neural.FeatureMap {
	return featureMap(map[string]float64{
		"spectral_edge_frequency":        20 - severity*10,
		"line_length":                    1 + severity*5,
		"wavelet_low_freq_concentration": severity,
		"phase_locking_value":            severity,
		"hjorth_complexity":              1.5 - severity,
		"sample_entropy":                 1.2 - severity,
		"beta_coherence":                 severity,
		"spike_rate":                     severity * 10,
	})
}

func TestSeizureRiskMonotoneInSeverity(t *testing.T) {
	c := NewSeizurePredictor()
	// establish a low-severity baseline first so later indicator ratios
	// measure deviation from a stable reference point.
	for i := 0; i < 5; i++ {
		c.ClassifyForPatient("p1", seizureFeatures(0.1))
	}
	low := c.ClassifyForPatient("p1", seizureFeatures(0.1))
	high := c.ClassifyForPatient("p1", seizureFeatures(0.9))
	require.GreaterOrEqual(t, high.Probability, low.Probability)
}

func TestSeizureImminentThresholdCrossing(t *testing.T) {
	c := NewSeizurePredictor()
	for i := 0; i < 5; i++ {
		c.ClassifyForPatient("p2", seizureFeatures(0.05))
	}
	result := c.ClassifyForPatient("p2", seizureFeatures(1.0))
	if result.Probability >= 0.85 {
		require.Equal(t, neural.RiskImminent, result.RiskLevel)
	}
}

func TestSeizureTimeToSeizureOnlySetAboveHigh(t *testing.T) {
	c := NewSeizurePredictor()
	low := c.ClassifyForPatient("p3", seizureFeatures(0.0))
	require.Nil(t, low.TimeToSeizureMinutes)
}

func TestSeizureProbabilitiesSumToOne(t *testing.T) {
	c := NewSeizurePredictor()
	result := c.ClassifyForPatient("p4", seizureFeatures(0.5))
	require.InDelta(t, 1.0, sumProbabilities(result.Probabilities), 1e-6)
}

func TestSeizurePatientThresholdOverrideTightensRiskBand(t *testing.T) {
	c := NewSeizurePredictor()
	c.SetPatientThresholds("p5", Thresholds{Imminent: 0.99, High: 0.98, Medium: 0.1})

	for i := 0; i < 5; i++ {
		c.ClassifyForPatient("p5", seizureFeatures(0.05))
	}
	result := c.ClassifyForPatient("p5", seizureFeatures(0.3))
	require.Equal(t, neural.RiskMedium, result.RiskLevel)
}

func TestSeizureClearingPatientThresholdRestoresDefault(t *testing.T) {
	c := NewSeizurePredictor()
	c.SetPatientThresholds("p6", Thresholds{Imminent: 0.99, High: 0.98, Medium: 0.97})
	c.SetPatientThresholds("p6", Thresholds{})

	require.Equal(t, DefaultThresholds, c.thresholdsFor("p6"))
}
