// Package quality implements the stateless signal-quality monitor:
// SNR/line-noise/artifact/impedance scoring over a window, with no hidden
// state across calls.
package quality

import (
	"math"

	"github.com/neuroflux/engine/internal/dsp"
	"github.com/neuroflux/engine/internal/neural"
)

// Config parameterises the monitor: sampling rate and mains frequency.
type Config struct {
	SamplingRateHz float64
	LineFreqHz     float64 // 50 or 60
}

const (
	signalBandLowHz  = 0.5
	signalBandHighHz = 45.0
	lineNotchHalfHz  = 2.0
	artifactSigmaK   = 5.0
)

// Monitor is a pure-function evaluator; it carries no state between calls.
type Monitor struct {
	cfg Config
}

// New constructs a Monitor for the given sampling configuration.
func New(cfg Config) *Monitor {
	return &Monitor{cfg: cfg}
}

// EvaluateChannel scores a single channel's samples.
func (m *Monitor) EvaluateChannel(channel string, samples []float64) neural.SignalQualityMetrics {
	psd := dsp.WelchPSD(samples, m.cfg.SamplingRateHz, 0)

	signalPower := psd.BandPower(signalBandLowHz, signalBandHighHz) -
		psd.BandPower(m.cfg.LineFreqHz-lineNotchHalfHz, m.cfg.LineFreqHz+lineNotchHalfHz)
	if signalPower < 0 {
		signalPower = 0
	}
	totalBand := psd.BandPower(signalBandLowHz, signalBandHighHz)
	lineBand := psd.BandPower(m.cfg.LineFreqHz-lineNotchHalfHz, m.cfg.LineFreqHz+lineNotchHalfHz)

	noisePower := lineBand
	const floor = 1e-12
	if noisePower < floor {
		noisePower = floor
	}
	if signalPower < floor {
		signalPower = floor
	}
	snrDb := 10 * math.Log10(signalPower/noisePower)

	var lineNoiseRatio float64
	if totalBand > 0 {
		lineNoiseRatio = lineBand / totalBand
	}

	artifacts := detrendedArtifactCount(samples, m.cfg.SamplingRateHz)
	rms := dsp.RMS(samples)

	return neural.SignalQualityMetrics{
		Channel:        channel,
		SnrDb:          snrDb,
		RmsAmplitude:   rms,
		LineNoisePower: lineNoiseRatio,
		ArtifactCount:  artifacts,
		QualityLevel:   levelFromScores(snrDb, artifacts, lineNoiseRatio, len(samples), m.cfg.SamplingRateHz),
	}
}

// detrendedArtifactCount counts samples whose magnitude exceeds k*sigma
// after a simple 1s high-pass detrend (subtract a rolling 1s mean).
func detrendedArtifactCount(x []float64, fs float64) int {
	if len(x) == 0 {
		return 0
	}
	window := int(fs)
	if window < 1 {
		window = 1
	}
	detrended := make([]float64, len(x))
	var runningSum float64
	for i := range x {
		runningSum += x[i]
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		if i >= window {
			runningSum -= x[i-window]
		}
		n := i - lo + 1
		mean := runningSum / float64(n)
		detrended[i] = x[i] - mean
	}
	sigma := dsp.StdDev(detrended)
	if sigma == 0 {
		return 0
	}
	count := 0
	for _, v := range detrended {
		if math.Abs(v) > artifactSigmaK*sigma {
			count++
		}
	}
	return count
}

func levelFromScores(snrDb float64, artifacts int, lineNoiseRatio float64, nSamples int, fs float64) neural.SignalQualityLevel {
	seconds := float64(nSamples) / fs
	if seconds <= 0 {
		seconds = 1
	}
	artifactsPerSec := float64(artifacts) / seconds

	switch {
	case snrDb >= 20 && artifacts == 0 && lineNoiseRatio < 0.05:
		return neural.QualityExcellent
	case snrDb < 5 || artifactsPerSec > 10:
		return neural.QualityBad
	case snrDb >= 15 && artifactsPerSec <= 1 && lineNoiseRatio < 0.15:
		return neural.QualityGood
	case snrDb >= 10 && artifactsPerSec <= 5:
		return neural.QualityFair
	default:
		return neural.QualityPoor
	}
}

// EvaluateWindow scores every channel in a window and aggregates.
func (m *Monitor) EvaluateWindow(w neural.Window) neural.QualitySummary {
	per := make([]neural.SignalQualityMetrics, len(w.Data))
	counts := map[neural.SignalQualityLevel]int{}
	var sumSnr, minSnr float64
	minSnr = math.Inf(1)

	for i, ch := range w.Data {
		name := "ch"
		if i < len(w.Channels) {
			name = w.Channels[i]
		}
		metrics := m.EvaluateChannel(name, ch)
		per[i] = metrics
		counts[metrics.QualityLevel]++
		sumSnr += metrics.SnrDb
		if metrics.SnrDb < minSnr {
			minSnr = metrics.SnrDb
		}
	}

	overall := worstLevel(counts)
	meanSnr := 0.0
	if len(per) > 0 {
		meanSnr = sumSnr / float64(len(per))
	} else {
		minSnr = 0
	}

	return neural.QualitySummary{
		Overall:     overall,
		MeanSnrDb:   meanSnr,
		MinSnrDb:    minSnr,
		LevelCounts: counts,
		PerChannel:  per,
	}
}

var levelRank = map[neural.SignalQualityLevel]int{
	neural.QualityExcellent: 0,
	neural.QualityGood:      1,
	neural.QualityFair:      2,
	neural.QualityPoor:      3,
	neural.QualityBad:       4,
}

func worstLevel(counts map[neural.SignalQualityLevel]int) neural.SignalQualityLevel {
	worst := neural.QualityExcellent
	for level, n := range counts {
		if n > 0 && levelRank[level] > levelRank[worst] {
			worst = level
		}
	}
	return worst
}

// Impedance converts a raw ohms reading into an ImpedanceResult via the
// kOhm step function of §4.B.
func Impedance(channel string, ohms float64) neural.ImpedanceResult {
	kOhms := ohms / 1000.0
	var level neural.SignalQualityLevel
	switch {
	case kOhms < 5:
		level = neural.QualityExcellent
	case kOhms < 10:
		level = neural.QualityGood
	case kOhms < 25:
		level = neural.QualityFair
	case kOhms < 50:
		level = neural.QualityPoor
	default:
		level = neural.QualityBad
	}
	return neural.ImpedanceResult{Channel: channel, ImpedanceOhms: ohms, QualityLevel: level}
}
