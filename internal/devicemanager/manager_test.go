package devicemanager

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neuroflux/engine/internal/device"
	"github.com/neuroflux/engine/internal/neural"
)

func newTestManager() *Manager {
	m := NewManager(device.NewDiscoveryService())
	m.RegisterDeviceType("simulator", func(id string) device.Device {
		return device.NewSimulatorDevice(id, []string{"CH1"}, 256)
	})
	return m
}

func TestAddDuplicateDeviceRejected(t *testing.T) {
	m := newTestManager()
	_, err := m.AddDevice("dev1", "simulator")
	require.NoError(t, err)
	_, err = m.AddDevice("dev1", "simulator")
	require.Error(t, err)
}

func TestAddUnknownTypeRejected(t *testing.T) {
	m := newTestManager()
	_, err := m.AddDevice("dev1", "nonexistent")
	require.Error(t, err)
}

func TestRemoveDeviceDisconnects(t *testing.T) {
	m := newTestManager()
	d, err := m.AddDevice("dev1", "simulator")
	require.NoError(t, err)
	_, err = d.Connect(device.ConnectOptions{})
	require.NoError(t, err)

	require.NoError(t, m.RemoveDevice("dev1"))
	require.Nil(t, m.GetDevice("dev1"))
	require.Equal(t, device.StateDisconnected, d.State())
}

func TestSetActiveSessionPropagates(t *testing.T) {
	m := newTestManager()
	d, err := m.AddDevice("dev1", "simulator")
	require.NoError(t, err)
	m.SetActiveSession("sess-abc")
	require.Equal(t, "sess-abc", m.ActiveSessionID())
	require.Equal(t, "sess-abc", d.(*device.SimulatorDevice).SessionID())
}

func TestAggregationFlushesAfterWindow(t *testing.T) {
	m := newTestManager()
	var mu sync.Mutex
	var batches [][]neural.SamplePacket
	m.SetAggregationCallback(50, func(deviceID string, batch []neural.SamplePacket) {
		mu.Lock()
		batches = append(batches, batch)
		mu.Unlock()
	})

	m.Aggregate("dev1", neural.SamplePacket{DeviceID: "dev1"})
	m.Aggregate("dev1", neural.SamplePacket{DeviceID: "dev1"})
	time.Sleep(70 * time.Millisecond)
	m.Aggregate("dev1", neural.SamplePacket{DeviceID: "dev1"})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
}

func TestCapabilityCacheReturnsCachedValue(t *testing.T) {
	d := device.NewSimulatorDevice("dev1", []string{"CH1", "CH2"}, 256)
	cache := NewCapabilityCache()
	first := cache.Get("dev1", d)
	d.ConfigureChannels([]string{"CH1", "CH2", "CH3"})
	second := cache.Get("dev1", d)
	require.Equal(t, first.MaxChannels, second.MaxChannels)

	cache.Invalidate("dev1")
	third := cache.Get("dev1", d)
	require.Equal(t, 3, third.MaxChannels)
}
