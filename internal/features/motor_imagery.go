package features

import (
	"math"
	"sync"

	"github.com/neuroflux/engine/internal/dsp"
	"github.com/neuroflux/engine/internal/neural"
)

var motorBands = map[string][2]float64{
	"mu":   {8, 12},
	"beta": {13, 30},
	"smr":  {12, 15},
}

var leftHemisphereChannels = []string{"C3", "CP3", "FC3"}
var rightHemisphereChannels = []string{"C4", "CP4", "FC4"}

const motorBaselineAlpha = 0.1
const motorBaselineStableWindows = 10

var MotorImageryFeatureNames = []string{
	"left_mu_power", "right_mu_power", "left_beta_power", "right_beta_power",
	"left_smr_power", "right_smr_power", "left_erd_mu", "right_erd_mu",
	"spatial_complexity",
}

// CSPProjection is a fixed, offline-trained spatial filter; nil disables
// the CSP log-variance feature path.
type CSPProjection struct {
	Weights [][]float64 // [component][channel]
}

// MotorImageryExtractor maintains a per-hemisphere EMA baseline across
// calls, so one instance must be dedicated to exactly one stream.
type MotorImageryExtractor struct {
	mu sync.Mutex

	windowMs float64
	csp      *CSPProjection

	baselineLeftMu   float64
	baselineRightMu  float64
	windowsSeen      int
}

// NewMotorImageryExtractor constructs the extractor; csp may be nil.
func NewMotorImageryExtractor(windowMs float64, csp *CSPProjection) *MotorImageryExtractor {
	if windowMs <= 0 {
		windowMs = 1000
	}
	return &MotorImageryExtractor{windowMs: windowMs, csp: csp}
}

func (e *MotorImageryExtractor) Name() string             { return "motor_imagery" }
func (e *MotorImageryExtractor) RequiredWindowMs() float64 { return e.windowMs }
func (e *MotorImageryExtractor) FeatureNames() []string    { return MotorImageryFeatureNames }

func hemisphereMean(w neural.Window, names []string, band [2]float64, fs float64) float64 {
	var sum float64
	var count int
	for _, name := range names {
		idx := channelIndex(w.Channels, name)
		if idx < 0 {
			continue
		}
		psd := dsp.WelchPSD(w.Data[idx], fs, 0)
		sum += psd.BandPower(band[0], band[1])
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func (e *MotorImageryExtractor) Extract(w neural.Window) neural.FeatureMap {
	if w.NumSamples() == 0 || nonFiniteWindow(w) {
		return emptyResult(int(e.windowMs))
	}
	fs := w.SamplingRateHz

	leftMu := hemisphereMean(w, leftHemisphereChannels, motorBands["mu"], fs)
	rightMu := hemisphereMean(w, rightHemisphereChannels, motorBands["mu"], fs)
	leftBeta := hemisphereMean(w, leftHemisphereChannels, motorBands["beta"], fs)
	rightBeta := hemisphereMean(w, rightHemisphereChannels, motorBands["beta"], fs)
	leftSmr := hemisphereMean(w, leftHemisphereChannels, motorBands["smr"], fs)
	rightSmr := hemisphereMean(w, rightHemisphereChannels, motorBands["smr"], fs)

	e.mu.Lock()
	if e.windowsSeen == 0 {
		e.baselineLeftMu = leftMu
		e.baselineRightMu = rightMu
	} else {
		e.baselineLeftMu = motorBaselineAlpha*leftMu + (1-motorBaselineAlpha)*e.baselineLeftMu
		e.baselineRightMu = motorBaselineAlpha*rightMu + (1-motorBaselineAlpha)*e.baselineRightMu
	}
	e.windowsSeen++
	baselineLeft, baselineRight := e.baselineLeftMu, e.baselineRightMu
	stable := e.windowsSeen >= motorBaselineStableWindows
	e.mu.Unlock()

	var leftErd, rightErd float64
	if stable {
		leftErd = safeDiv(leftMu-baselineLeft, baselineLeft)
		rightErd = safeDiv(rightMu-baselineRight, baselineRight)
	}

	spatialComplexity := spatialComplexityFromCovariance(w)

	features := map[string][]float64{
		"left_mu_power":       {leftMu},
		"right_mu_power":      {rightMu},
		"left_beta_power":     {leftBeta},
		"right_beta_power":    {rightBeta},
		"left_smr_power":      {leftSmr},
		"right_smr_power":     {rightSmr},
		"left_erd_mu":         {leftErd},
		"right_erd_mu":        {rightErd},
		"spatial_complexity":  {spatialComplexity},
	}

	if e.csp != nil {
		features["csp_features"] = cspLogVariance(w, e.csp)
	}

	return neural.FeatureMap{
		Features:      features,
		Timestamp:     w.Timestamp,
		WindowSizeMs:  int(e.windowMs),
		SignalQuality: 1,
		Metadata:      map[string]string{"baseline_stable": boolStr(stable)},
	}
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// cspLogVariance projects the window through a fixed CSP matrix and returns
// the log-variance of each resulting component, per the standard CSP
// feature pipeline.
func cspLogVariance(w neural.Window, csp *CSPProjection) []float64 {
	n := w.NumSamples()
	out := make([]float64, len(csp.Weights))
	for c, weights := range csp.Weights {
		proj := make([]float64, n)
		for ch, weight := range weights {
			if ch >= len(w.Data) {
				continue
			}
			for i, v := range w.Data[ch] {
				proj[i] += weight * v
			}
		}
		v := dsp.Variance(proj)
		if v <= 0 {
			out[c] = 0
		} else {
			out[c] = math.Log(v)
		}
	}
	return out
}

// spatialComplexityFromCovariance returns 1 - (r-1)/(c-1), where c is the
// channel count and r = trace^2 / sum-of-squares over the per-channel
// variances (the covariance diagonal only; cross-channel covariances are
// not used). It is 0 when all channels carry equal power and approaches 1
// as power concentrates in one channel.
func spatialComplexityFromCovariance(w neural.Window) float64 {
	c := len(w.Data)
	if c < 2 {
		return 0
	}
	variances := make([]float64, c)
	for i, ch := range w.Data {
		variances[i] = dsp.Variance(ch)
	}
	var trace, sumSq float64
	for _, v := range variances {
		trace += v
		sumSq += v * v
	}
	if sumSq == 0 {
		return 0
	}
	// effective rank in [1, c]; normalize to [0,1] complexity
	effectiveRank := (trace * trace) / sumSq
	return 1 - (effectiveRank-1)/float64(c-1)
}
