package features

import (
	"math"

	"github.com/neuroflux/engine/internal/dsp"
	"github.com/neuroflux/engine/internal/neural"
)

var mentalStateBands = map[string][2]float64{
	"delta": {0.5, 4},
	"theta": {4, 8},
	"alpha": {8, 13},
	"beta":  {13, 30},
	"gamma": {30, 45},
}

// asymmetryPairs are the AASM electrode pairs averaged for the general
// left/right alpha asymmetry index.
var asymmetryPairs = [][2]string{
	{"F3", "F4"}, {"C3", "C4"}, {"P3", "P4"}, {"T3", "T4"}, {"O1", "O2"},
}

var MentalStateFeatureNames = []string{
	"delta_power", "theta_power", "alpha_power", "beta_power", "gamma_power",
	"beta_alpha_ratio", "theta_beta_ratio", "alpha_theta_ratio",
	"frontal_theta", "frontal_alpha_asymmetry", "alpha_asymmetry",
	"spectral_entropy", "attention_index", "relaxation_index",
}

// MentalStateExtractor computes band powers, hemispheric asymmetry, and
// derived attention/relaxation indices over a 2s window.
type MentalStateExtractor struct {
	windowMs float64
}

// NewMentalStateExtractor constructs the extractor for the given window
// size (defaults to 2000ms when <= 0).
func NewMentalStateExtractor(windowMs float64) *MentalStateExtractor {
	if windowMs <= 0 {
		windowMs = 2000
	}
	return &MentalStateExtractor{windowMs: windowMs}
}

func (e *MentalStateExtractor) Name() string               { return "mental_state" }
func (e *MentalStateExtractor) RequiredWindowMs() float64   { return e.windowMs }
func (e *MentalStateExtractor) FeatureNames() []string      { return MentalStateFeatureNames }

func (e *MentalStateExtractor) Extract(w neural.Window) neural.FeatureMap {
	if w.NumSamples() == 0 || nonFiniteWindow(w) {
		return emptyResult(int(e.windowMs))
	}

	fs := w.SamplingRateHz
	var sumDelta, sumTheta, sumAlpha, sumBeta, sumGamma float64
	var sumEntropy float64
	for _, ch := range w.Data {
		bp := bandPowers(ch, fs, mentalStateBands)
		sumDelta += bp["delta"]
		sumTheta += bp["theta"]
		sumAlpha += bp["alpha"]
		sumBeta += bp["beta"]
		sumGamma += bp["gamma"]

		psd := dsp.WelchPSD(ch, fs, 0)
		sumEntropy += dsp.ShannonEntropy(psd.NormalizedPSD())
	}
	n := float64(len(w.Data))
	delta, theta, alpha, beta, gamma := sumDelta/n, sumTheta/n, sumAlpha/n, sumBeta/n, sumGamma/n
	entropy := sumEntropy / n

	betaAlpha := safeDiv(beta, alpha)
	thetaBeta := safeDiv(theta, beta)
	alphaTheta := safeDiv(alpha, theta)
	attention := safeDiv(theta+beta, alpha)
	relaxation := safeDiv(alpha, alpha+beta)

	frontalTheta := 0.0
	if idx := channelIndex(w.Channels, "F3"); idx >= 0 {
		bp := bandPowers(w.Data[idx], fs, mentalStateBands)
		frontalTheta = bp["theta"]
	}
	if idx := channelIndex(w.Channels, "F4"); idx >= 0 {
		bp := bandPowers(w.Data[idx], fs, mentalStateBands)
		frontalTheta = (frontalTheta + bp["theta"]) / 2
	}

	frontalAsym := 0.0
	if f3 := channelIndex(w.Channels, "F3"); f3 >= 0 {
		if f4 := channelIndex(w.Channels, "F4"); f4 >= 0 {
			aF3 := bandPowers(w.Data[f3], fs, mentalStateBands)["alpha"]
			aF4 := bandPowers(w.Data[f4], fs, mentalStateBands)["alpha"]
			frontalAsym = safeLog(aF4) - safeLog(aF3)
		}
	}

	var asymSum float64
	var asymCount int
	for _, pair := range asymmetryPairs {
		li := channelIndex(w.Channels, pair[0])
		ri := channelIndex(w.Channels, pair[1])
		if li < 0 || ri < 0 {
			continue
		}
		aL := bandPowers(w.Data[li], fs, mentalStateBands)["alpha"]
		aR := bandPowers(w.Data[ri], fs, mentalStateBands)["alpha"]
		asymSum += safeLog(aR) - safeLog(aL)
		asymCount++
	}
	alphaAsym := 0.0
	if asymCount > 0 {
		alphaAsym = asymSum / float64(asymCount)
	}

	return neural.FeatureMap{
		Features: map[string][]float64{
			"delta_power":             {delta},
			"theta_power":             {theta},
			"alpha_power":             {alpha},
			"beta_power":              {beta},
			"gamma_power":             {gamma},
			"beta_alpha_ratio":        {betaAlpha},
			"theta_beta_ratio":        {thetaBeta},
			"alpha_theta_ratio":       {alphaTheta},
			"frontal_theta":           {frontalTheta},
			"frontal_alpha_asymmetry": {frontalAsym},
			"alpha_asymmetry":         {alphaAsym},
			"spectral_entropy":        {entropy},
			"attention_index":         {attention},
			"relaxation_index":        {relaxation},
		},
		Timestamp:     w.Timestamp,
		WindowSizeMs:  int(e.windowMs),
		SignalQuality: 1,
	}
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func safeLog(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Log(x)
}
