package features

import (
	"math"
	"strings"

	"github.com/neuroflux/engine/internal/dsp"
	"github.com/neuroflux/engine/internal/neural"
)

var sleepBands = map[string][2]float64{
	"delta": {0.5, 4},
	"theta": {4, 8},
	"alpha": {8, 13},
	"sigma": {11, 15},
	"beta":  {13, 30},
	"gamma": {30, 45},
}

var SleepFeatureNames = []string{
	"delta_power", "theta_power", "alpha_power", "sigma_power", "beta_power", "gamma_power",
	"spindle_density", "kcomplex_count", "slow_wave_amplitude", "delta_percentage",
	"vertex_wave_count", "eog_movement_rate", "rem_density", "emg_rms_power",
	"eeg_emg_coherence", "spectral_edge_frequency", "hjorth_mobility", "hjorth_complexity",
}

const sleepEpochMs = 30_000

// SleepExtractor computes AASM-convention 30s epoch features.
type SleepExtractor struct{}

func NewSleepExtractor() *SleepExtractor { return &SleepExtractor{} }

func (e *SleepExtractor) Name() string             { return "sleep_stage" }
func (e *SleepExtractor) RequiredWindowMs() float64 { return sleepEpochMs }
func (e *SleepExtractor) FeatureNames() []string    { return SleepFeatureNames }

func groupChannels(w neural.Window) (eeg, eog, emg []int) {
	for i, name := range w.Channels {
		switch {
		case strings.Contains(strings.ToUpper(name), "EOG"):
			eog = append(eog, i)
		case strings.Contains(strings.ToUpper(name), "EMG"):
			emg = append(emg, i)
		default:
			eeg = append(eeg, i)
		}
	}
	return
}

func (e *SleepExtractor) Extract(w neural.Window) neural.FeatureMap {
	if w.NumSamples() == 0 || nonFiniteWindow(w) {
		return emptyResult(sleepEpochMs)
	}
	fs := w.SamplingRateHz
	eegIdx, eogIdx, emgIdx := groupChannels(w)
	if len(eegIdx) == 0 {
		eegIdx = []int{0}
	}

	var sumDelta, sumTheta, sumAlpha, sumSigma, sumBeta, sumGamma, sumSEF, sumMob, sumComp float64
	var primary []float64
	for _, i := range eegIdx {
		ch := w.Data[i]
		bp := bandPowers(ch, fs, sleepBands)
		sumDelta += bp["delta"]
		sumTheta += bp["theta"]
		sumAlpha += bp["alpha"]
		sumSigma += bp["sigma"]
		sumBeta += bp["beta"]
		sumGamma += bp["gamma"]
		psd := dsp.WelchPSD(ch, fs, 0)
		sumSEF += psd.SpectralEdgeFrequency(0.95)
		_, mob, comp := dsp.Hjorth(ch)
		sumMob += mob
		sumComp += comp
		if primary == nil {
			primary = ch
		}
	}
	n := float64(len(eegIdx))
	delta, theta, alpha, sigma, beta, gamma := sumDelta/n, sumTheta/n, sumAlpha/n, sumSigma/n, sumBeta/n, sumGamma/n
	sef := sumSEF / n
	mobility, complexity := sumMob/n, sumComp/n

	totalPower := delta + theta + alpha + sigma + beta + gamma
	deltaPct := safeDiv(delta, totalPower)

	spindleDensity := spindleDensityFromEnvelope(primary, fs)
	kcomplexCount := kComplexCount(primary, fs)
	slowWaveAmp := slowWaveAmplitude(primary, fs)
	vertexCount := vertexWaveCount(primary, fs)

	var eogRate, remDensity float64
	if len(eogIdx) > 0 {
		eog := w.Data[eogIdx[0]]
		eogRate = derivativeCrossingRate(eog, fs, dsp.StdDev(eog)*2)
		remDensity = derivativeCrossingRate(eog, fs, dsp.StdDev(eog)*3.5)
	}

	var emgPower, coherence float64
	if len(emgIdx) > 0 {
		emg := w.Data[emgIdx[0]]
		emgPower = dsp.RMS(emg) * dsp.RMS(emg)
		coherence = lowFreqCoherenceProxy(primary, emg, fs)
	}

	return neural.FeatureMap{
		Features: map[string][]float64{
			"delta_power":             {delta},
			"theta_power":             {theta},
			"alpha_power":             {alpha},
			"sigma_power":             {sigma},
			"beta_power":              {beta},
			"gamma_power":             {gamma},
			"spindle_density":         {spindleDensity},
			"kcomplex_count":          {kcomplexCount},
			"slow_wave_amplitude":     {slowWaveAmp},
			"delta_percentage":        {deltaPct},
			"vertex_wave_count":       {vertexCount},
			"eog_movement_rate":       {eogRate},
			"rem_density":             {remDensity},
			"emg_rms_power":           {emgPower},
			"eeg_emg_coherence":       {coherence},
			"spectral_edge_frequency": {sef},
			"hjorth_mobility":         {mobility},
			"hjorth_complexity":       {complexity},
		},
		Timestamp:     w.Timestamp,
		WindowSizeMs:  sleepEpochMs,
		SignalQuality: 1,
	}
}

// spindleDensityFromEnvelope counts 0.5-2s envelope excursions above the
// 85th percentile per minute, as a proxy for 11-15Hz spindle activity.
func spindleDensityFromEnvelope(x []float64, fs float64) float64 {
	if len(x) == 0 {
		return 0
	}
	env := dsp.Envelope(x)
	threshold := dsp.Percentile(env, 85)
	minSamples := int(0.5 * fs)
	maxSamples := int(2 * fs)

	var episodes int
	run := 0
	for _, v := range env {
		if v > threshold {
			run++
		} else {
			if run >= minSamples && run <= maxSamples {
				episodes++
			}
			run = 0
		}
	}
	if run >= minSamples && run <= maxSamples {
		episodes++
	}
	minutes := float64(len(x)) / fs / 60.0
	if minutes <= 0 {
		return 0
	}
	return float64(episodes) / minutes
}

func kComplexCount(x []float64, fs float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sigma := dsp.StdDev(x)
	if sigma == 0 {
		return 0
	}
	sepSamples := int(0.5 * fs)
	peaks := dsp.FindPeaks(x, 2.5*sigma, sepSamples)
	troughs := dsp.FindPeaks(negate(x), 2.5*sigma, sepSamples)
	// a K-complex is a biphasic (trough followed closely by peak, or vice
	// versa) deflection within 0.5s
	count := 0
	for _, p := range peaks {
		for _, t := range troughs {
			if math.Abs(float64(p-t)) <= 0.5*fs {
				count++
				break
			}
		}
	}
	return float64(count)
}

func slowWaveAmplitude(x []float64, fs float64) float64 {
	if len(x) == 0 {
		return 0
	}
	peaks := dsp.FindPeaks(x, 75, int(0.5*fs))
	if len(peaks) == 0 {
		return 0
	}
	var sum float64
	for _, p := range peaks {
		sum += math.Abs(x[p])
	}
	return sum / float64(len(peaks))
}

func vertexWaveCount(x []float64, fs float64) float64 {
	if len(x) < 3 {
		return 0
	}
	sigma := dsp.StdDev(x)
	if sigma == 0 {
		return 0
	}
	minGapSamples := int(0.125 * fs) // 2-8Hz sharp transition spacing floor
	count := 0
	last := -minGapSamples - 1
	for i := 1; i < len(x); i++ {
		if x[i-1] < -1.5*sigma && x[i] > 1.5*sigma && i-last >= minGapSamples {
			count++
			last = i
		}
	}
	return float64(count)
}

func derivativeCrossingRate(x []float64, fs float64, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	d := dsp.Diff(x)
	count := 0
	for _, v := range d {
		if math.Abs(v) > threshold {
			count++
		}
	}
	seconds := float64(len(x)) / fs
	if seconds <= 0 {
		return 0
	}
	return float64(count) / seconds
}

// lowFreqCoherenceProxy approximates EEG-EMG coherence via the absolute
// correlation of their full-band amplitude envelopes; no frequency band
// is selected first (no FFT-based coherence estimator exists in this
// codebase's numeric toolkit).
func lowFreqCoherenceProxy(eeg, emg []float64, fs float64) float64 {
	n := len(eeg)
	if n == 0 || n != len(emg) {
		return 0
	}
	envA := dsp.Envelope(eeg)
	envB := dsp.Envelope(emg)
	meanA, meanB := dsp.Mean(envA), dsp.Mean(envB)
	var num, denA, denB float64
	for i := range envA {
		da, db := envA[i]-meanA, envB[i]-meanB
		num += da * db
		denA += da * da
		denB += db * db
	}
	if denA == 0 || denB == 0 {
		return 0
	}
	return math.Abs(num / math.Sqrt(denA*denB))
}

func negate(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = -v
	}
	return out
}
