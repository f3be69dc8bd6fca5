package ringbuf_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neuroflux/engine/internal/neural"
	"github.com/neuroflux/engine/internal/ringbuf"
)

func packetOf(t0 time.Time, deviceID string, nSamples int, channel0Val float64) neural.SamplePacket {
	data := make([][]float64, 2)
	for c := range data {
		data[c] = make([]float64, nSamples)
		for i := range data[c] {
			data[c][i] = channel0Val + float64(i)
		}
	}
	return neural.SamplePacket{
		Channels:       []string{"C3", "C4"},
		SamplingRateHz: 256,
		Data:           data,
		Timestamp:      t0,
		DeviceID:       deviceID,
		SignalType:     neural.SignalEEG,
	}
}

func TestRoundTripNoWrap(t *testing.T) {
	buf, err := ringbuf.New(2, 1000, 256) // N = 256
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, buf.Add(packetOf(now, "dev-1", 100, 0)))

	win, ok := buf.GetWindow(100) // round(100*256/1000) = 26 samples
	require.True(t, ok)
	require.Equal(t, 26, win.NumSamples())
	// last 26 values of a 0..99 ramp are 74..99
	require.InDelta(t, 74, win.Data[0][0], 1e-9)
	require.InDelta(t, 99, win.Data[0][25], 1e-9)
}

func TestRoundTripWraparound(t *testing.T) {
	buf, err := ringbuf.New(2, 1000, 256) // N = 256
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, buf.Add(packetOf(now, "dev-1", 200, 0)))
	require.NoError(t, buf.Add(packetOf(now.Add(200*time.Second/256), "dev-1", 200, 1000)))

	require.True(t, buf.IsFull())

	win, ok := buf.GetWindow(1000) // full buffer, 256 samples
	require.True(t, ok)
	require.Equal(t, 256, win.NumSamples())

	// last 56 samples of first packet (vals 144..199) then all 200 of second (1000..1199)
	require.InDelta(t, 144, win.Data[0][0], 1e-9)
	require.InDelta(t, 199, win.Data[0][55], 1e-9)
	require.InDelta(t, 1000, win.Data[0][56], 1e-9)
	require.InDelta(t, 1199, win.Data[0][255], 1e-9)
}

func TestInsufficientDataReturnsFalse(t *testing.T) {
	buf, err := ringbuf.New(2, 1000, 256)
	require.NoError(t, err)
	require.NoError(t, buf.Add(packetOf(time.Now(), "dev-1", 10, 0)))

	_, ok := buf.GetWindow(1000)
	require.False(t, ok)
}

func TestClearResetsState(t *testing.T) {
	buf, err := ringbuf.New(2, 500, 256)
	require.NoError(t, err)
	require.NoError(t, buf.Add(packetOf(time.Now(), "dev-1", 50, 5)))
	require.False(t, buf.IsFull())

	buf.Clear()
	_, ok := buf.GetWindow(1)
	require.False(t, ok)
	require.Equal(t, float64(0), buf.DurationMs())
}

func TestChannelMismatchRejected(t *testing.T) {
	buf, err := ringbuf.New(3, 1000, 256)
	require.NoError(t, err)
	require.Error(t, buf.Add(packetOf(time.Now(), "dev-1", 10, 0)))
}
