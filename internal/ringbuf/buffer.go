// Package ringbuf is the per-stream circular sample store: fixed-capacity
// (channels x samples) storage with time-indexed window extraction.
package ringbuf

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/neuroflux/engine/internal/neural"
)

// Buffer is a fixed-capacity circular store for one stream. It uniquely
// owns its sample storage; consumers only ever read copies via GetWindow.
type Buffer struct {
	mu sync.Mutex

	channels       int
	samplingRateHz float64
	size           int // N, in samples

	data       [][]float64 // [channel][N]
	timestamps []time.Time // [N]

	writePos       int
	samplesWritten int64

	deviceID     string
	sessionID    string
	channelNames []string
}

// New creates a buffer sized for bufferDurationMs at samplingRateHz across
// channels channels. N = floor(durationMs/1000 * rate).
func New(channels int, bufferDurationMs float64, samplingRateHz float64) (*Buffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("ringbuf: channels must be positive, got %d", channels)
	}
	if samplingRateHz <= 0 {
		return nil, fmt.Errorf("ringbuf: samplingRateHz must be positive, got %f", samplingRateHz)
	}
	size := int((bufferDurationMs / 1000.0) * samplingRateHz)
	if size <= 0 {
		return nil, fmt.Errorf("ringbuf: computed buffer size is non-positive (duration=%f rate=%f)", bufferDurationMs, samplingRateHz)
	}

	data := make([][]float64, channels)
	for i := range data {
		data[i] = make([]float64, size)
	}

	return &Buffer{
		channels:       channels,
		samplingRateHz: samplingRateHz,
		size:           size,
		data:           data,
		timestamps:     make([]time.Time, size),
	}, nil
}

// Size returns the buffer's capacity in samples (N).
func (b *Buffer) Size() int {
	return b.size
}

// Add copies a packet's channel-major samples into the buffer, handling
// wraparound in up to two spans, and advances writePos/samplesWritten.
func (b *Buffer) Add(packet neural.SamplePacket) error {
	if len(packet.Data) != b.channels {
		return fmt.Errorf("ringbuf: packet has %d channels, buffer expects %d", len(packet.Data), b.channels)
	}
	n := packet.NumSamples()
	if n == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.deviceID == "" {
		b.deviceID = packet.DeviceID
		b.channelNames = packet.Channels
	}
	b.sessionID = packet.SessionID

	start := b.writePos
	end := (start + n) % b.size
	step := time.Duration(float64(time.Second) / b.samplingRateHz)

	if end > start {
		// no wraparound
		for c := 0; c < b.channels; c++ {
			copy(b.data[c][start:end], packet.Data[c][:n])
		}
		ts := packet.Timestamp
		for i := 0; i < n; i++ {
			b.timestamps[start+i] = ts.Add(time.Duration(i) * step)
		}
	} else {
		splitPoint := b.size - start
		for c := 0; c < b.channels; c++ {
			copy(b.data[c][start:], packet.Data[c][:splitPoint])
			copy(b.data[c][:end], packet.Data[c][splitPoint:n])
		}
		ts := packet.Timestamp
		for i := 0; i < splitPoint; i++ {
			b.timestamps[start+i] = ts.Add(time.Duration(i) * step)
		}
		for i := splitPoint; i < n; i++ {
			b.timestamps[i-splitPoint] = ts.Add(time.Duration(i) * step)
		}
	}

	b.writePos = end
	b.samplesWritten += int64(n)
	return nil
}

// GetWindow returns the most recent window of durationMs if enough samples
// have been written, else (Window{}, false). n = round(durationMs * rate /
// 1000), not truncated, so a duration landing mid-sample rounds to the
// nearer sample count rather than always short.
func (b *Buffer) GetWindow(durationMs float64) (neural.Window, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := int(math.Round(durationMs * b.samplingRateHz / 1000.0))
	if n <= 0 || b.samplesWritten < int64(n) {
		return neural.Window{}, false
	}

	var start int
	if b.samplesWritten >= int64(b.size) {
		start = mod(b.writePos-n, b.size)
	} else {
		start = b.writePos - n
		if start < 0 {
			start = 0
		}
	}

	out := make([][]float64, b.channels)
	var ts []time.Time
	if start < b.writePos {
		for c := 0; c < b.channels; c++ {
			out[c] = append([]float64(nil), b.data[c][start:b.writePos]...)
		}
		ts = b.timestamps[start:b.writePos]
	} else {
		for c := 0; c < b.channels; c++ {
			row := make([]float64, 0, n)
			row = append(row, b.data[c][start:]...)
			row = append(row, b.data[c][:b.writePos]...)
			out[c] = row
		}
		ts = append(append([]time.Time(nil), b.timestamps[start:]...), b.timestamps[:b.writePos]...)
	}

	var first time.Time
	if len(ts) > 0 {
		first = ts[0]
	}

	channels := b.channelNames
	if channels == nil {
		channels = make([]string, b.channels)
		for i := range channels {
			channels[i] = fmt.Sprintf("ch_%d", i)
		}
	}

	return neural.Window{
		Channels:       channels,
		SamplingRateHz: b.samplingRateHz,
		Data:           out,
		Timestamp:      first,
		DeviceID:       b.deviceID,
		SessionID:      b.sessionID,
	}, true
}

// Clear resets the buffer to all-zero state.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.data {
		for i := range b.data[c] {
			b.data[c][i] = 0
		}
	}
	for i := range b.timestamps {
		b.timestamps[i] = time.Time{}
	}
	b.writePos = 0
	b.samplesWritten = 0
}

// IsFull reports whether the buffer holds a full N samples.
func (b *Buffer) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samplesWritten >= int64(b.size)
}

// DurationMs returns how much of the buffer's capacity is currently filled,
// in milliseconds.
func (b *Buffer) DurationMs() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	filled := b.samplesWritten
	if filled > int64(b.size) {
		filled = int64(b.size)
	}
	return float64(filled) / b.samplingRateHz * 1000.0
}

func mod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
