package device

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neuroflux/engine/internal/neural"
)

func TestSimulatorLifecycleTransitions(t *testing.T) {
	d := NewSimulatorDevice("dev1", []string{"CH1", "CH2"}, 256)
	require.False(t, d.IsConnected())
	require.Equal(t, StateDisconnected, d.State())

	ok, err := d.Connect(ConnectOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, d.IsConnected())
	require.Equal(t, StateConnected, d.State())

	require.NoError(t, d.Disconnect())
	require.False(t, d.IsConnected())
	require.Equal(t, StateDisconnected, d.State())
}

func TestSimulatorStreamingEmitsPackets(t *testing.T) {
	d := NewSimulatorDevice("dev2", []string{"CH1"}, 256)
	d.SetSessionID("sess1")

	var mu sync.Mutex
	var received []neural.SamplePacket
	d.SetDataCallback(func(p neural.SamplePacket) {
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
	})

	ok, err := d.Connect(ConnectOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, d.StartStreaming())
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, d.StopStreaming())

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(received), 2)
	for _, p := range received {
		require.Equal(t, "sess1", p.SessionID)
		require.Equal(t, neural.SignalEEG, p.SignalType)
	}
}

func TestStateTransitionsRecorded(t *testing.T) {
	d := NewSimulatorDevice("dev3", []string{"CH1"}, 256)
	var states []State
	d.SetStateCallback(func(s State) { states = append(states, s) })

	ok, err := d.Connect(ConnectOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, d.StartStreaming())
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, d.StopStreaming())

	require.Contains(t, states, StateConnecting)
	require.Contains(t, states, StateConnected)
	require.Contains(t, states, StateStreaming)
}

func TestStartStreamingRequiresConnected(t *testing.T) {
	d := NewSimulatorDevice("dev4", []string{"CH1"}, 256)
	err := d.StartStreaming()
	require.Error(t, err)
}

func TestEmitPacketRequiresSessionID(t *testing.T) {
	d := NewSimulatorDevice("dev5", []string{"CH1"}, 256)
	_, err := d.Connect(ConnectOptions{})
	require.NoError(t, err)
	require.Error(t, d.EmitPacket(neural.SamplePacket{Channels: []string{"CH1"}}))
	err = d.StartStreaming()
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, d.StopStreaming())
}

func TestValidTransitionRules(t *testing.T) {
	require.True(t, ValidTransition(StateDisconnected, StateConnecting))
	require.False(t, ValidTransition(StateDisconnected, StateStreaming))
	require.True(t, ValidTransition(StateConnected, StateStreaming))
	require.True(t, ValidTransition(StateError, StateDisconnected))
	require.False(t, ValidTransition(StateError, StateStreaming))
	require.True(t, ValidTransition(StateStreaming, StateError))
}

func TestBatteryNotSupportedBySimulator(t *testing.T) {
	d := NewSimulatorDevice("dev6", []string{"CH1"}, 256)
	_, err := d.GetBatteryLevel()
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestDiscoveryDeduplicatesByUniqueID(t *testing.T) {
	svc := NewDiscoveryService()
	svc.Register(fakeScanner{
		protocol: ProtocolSerial,
		devices: []DiscoveredDevice{
			newDiscoveredDevice("OpenBCI", "OpenBCI Cyton", ProtocolSerial,
				map[string]string{"port": "/dev/ttyUSB0"}, nil),
		},
	})

	var notified int
	svc.Observe(func(DiscoveredDevice) { notified++ })

	_, err := svc.ScanRound()
	require.NoError(t, err)
	_, err = svc.ScanRound()
	require.NoError(t, err)

	require.Equal(t, 1, notified)
}

type fakeScanner struct {
	protocol Protocol
	devices  []DiscoveredDevice
}

func (f fakeScanner) Protocol() Protocol { return f.protocol }
func (f fakeScanner) Scan() ([]DiscoveredDevice, error) { return f.devices, nil }
