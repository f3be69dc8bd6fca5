package features

import (
	"sync"

	"github.com/neuroflux/engine/internal/dsp"
	"github.com/neuroflux/engine/internal/neural"
)

const (
	seizureWindowMs    = 10_000
	seizureWaveletLevels = 6
	seizureEntropyM    = 2
	seizureEntropyRFac = 0.2
	seizureSpikeSigma  = 3.5
	seizureSpikeMinGapMs = 20
)

var SeizureFeatureNames = []string{
	"spectral_edge_frequency", "line_length", "hjorth_activity", "hjorth_mobility",
	"hjorth_complexity", "nonlinear_energy", "wavelet_entropy",
	"wavelet_low_freq_concentration", "phase_locking_value", "beta_coherence",
	"sample_entropy", "approximate_entropy", "spike_rate", "mean_spike_amplitude",
	"feature_velocity",
}

// SeizureExtractor tracks the previous call's feature vector to compute
// featureVelocity, so one instance must be dedicated to exactly one stream.
type SeizureExtractor struct {
	mu       sync.Mutex
	previous map[string]float64
}

func NewSeizureExtractor() *SeizureExtractor { return &SeizureExtractor{} }

func (e *SeizureExtractor) Name() string             { return "seizure" }
func (e *SeizureExtractor) RequiredWindowMs() float64 { return seizureWindowMs }
func (e *SeizureExtractor) FeatureNames() []string    { return SeizureFeatureNames }

func (e *SeizureExtractor) Extract(w neural.Window) neural.FeatureMap {
	if w.NumSamples() == 0 || nonFiniteWindow(w) {
		return emptyResult(seizureWindowMs)
	}
	fs := w.SamplingRateHz
	primary := w.Data[0]

	psd := dsp.WelchPSD(primary, fs, 0)
	sef := psd.SpectralEdgeFrequency(0.95)
	lineLength := dsp.LineLength(primary)
	activity, mobility, complexity := dsp.Hjorth(primary)
	nonlinearEnergy := dsp.NonlinearEnergy(primary)

	decomposition := dsp.DWT(primary, seizureWaveletLevels)
	waveletEntropy := decomposition.Entropy()
	lowFreqConcentration := decomposition.LowFrequencyConcentration()

	var plv, betaCoherence float64
	if len(w.Data) >= 2 {
		phaseA := dsp.InstantaneousPhase(primary)
		phaseB := dsp.InstantaneousPhase(w.Data[1])
		plv = dsp.PhaseLockingValue(phaseA, phaseB)
		betaCoherence = lowFreqCoherenceProxy(bandpassProxy(primary, fs, 13, 30), bandpassProxy(w.Data[1], fs, 13, 30), fs)
	}

	sigma := dsp.StdDev(primary)
	r := seizureEntropyRFac * sigma
	sampEn := dsp.SampleEntropy(primary, seizureEntropyM, r)
	apEn := dsp.ApproximateEntropy(primary, seizureEntropyM, r)

	minGap := int(seizureSpikeMinGapMs / 1000.0 * fs)
	if minGap < 1 {
		minGap = 1
	}
	mean := dsp.Mean(primary)
	peaks := dsp.FindPeaks(primary, mean+seizureSpikeSigma*sigma, minGap)
	spikeRate := float64(len(peaks)) / (float64(len(primary)) / fs)
	var meanSpikeAmp float64
	if len(peaks) > 0 {
		var sum float64
		for _, p := range peaks {
			sum += primary[p]
		}
		meanSpikeAmp = sum / float64(len(peaks))
	}

	channelSpikeRates := make([]float64, len(w.Data))
	for i, ch := range w.Data {
		chMean := dsp.Mean(ch)
		chSigma := dsp.StdDev(ch)
		chPeaks := dsp.FindPeaks(ch, chMean+seizureSpikeSigma*chSigma, minGap)
		channelSpikeRates[i] = float64(len(chPeaks)) / (float64(len(ch)) / fs)
	}

	current := map[string]float64{
		"spectral_edge_frequency":        sef,
		"line_length":                    lineLength,
		"hjorth_activity":                activity,
		"hjorth_mobility":                mobility,
		"hjorth_complexity":              complexity,
		"nonlinear_energy":               nonlinearEnergy,
		"wavelet_entropy":                waveletEntropy,
		"wavelet_low_freq_concentration": lowFreqConcentration,
		"phase_locking_value":            plv,
		"beta_coherence":                 betaCoherence,
		"sample_entropy":                 sampEn,
		"approximate_entropy":            apEn,
		"spike_rate":                     spikeRate,
		"mean_spike_amplitude":           meanSpikeAmp,
	}

	e.mu.Lock()
	velocity := featureVelocity(e.previous, current)
	e.previous = current
	e.mu.Unlock()

	features := make(map[string][]float64, len(current)+2)
	for k, v := range current {
		features[k] = []float64{v}
	}
	features["feature_velocity"] = []float64{velocity}
	features["channel_spike_rates"] = channelSpikeRates

	return neural.FeatureMap{
		Features:      features,
		Timestamp:     w.Timestamp,
		WindowSizeMs:  seizureWindowMs,
		SignalQuality: 1,
	}
}

func featureVelocity(prev, curr map[string]float64) float64 {
	if prev == nil {
		return 0
	}
	var sum float64
	var count int
	for k, v := range curr {
		if pv, ok := prev[k]; ok {
			d := v - pv
			if d < 0 {
				d = -d
			}
			sum += d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// bandpassProxy scales x by the fraction of its Welch PSD power that lies in
// [lo, hi]. It is a coherence-estimation aid only, not a true filter: every
// frequency in x is kept, only the overall amplitude changes.
func bandpassProxy(x []float64, fs, lo, hi float64) []float64 {
	psd := dsp.WelchPSD(x, fs, 0)
	total := psd.TotalPower()
	ratio := 0.0
	if total > 0 {
		ratio = psd.BandPower(lo, hi) / total
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v * ratio
	}
	return out
}
