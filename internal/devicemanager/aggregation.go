package devicemanager

import (
	"time"

	"github.com/neuroflux/engine/internal/neural"
)

// SetAggregationCallback registers the callback invoked once per
// aggregation window with every packet a device emitted during it. The
// ledger uses this to hash per-session data in fixed-size batches rather
// than per-packet.
func (m *Manager) SetAggregationCallback(windowMs float64, cb func(deviceID string, batch []neural.SamplePacket)) {
	m.aggMu.Lock()
	defer m.aggMu.Unlock()
	m.aggregationWindow = time.Duration(windowMs) * time.Millisecond
	m.aggCallback = cb
}

// Aggregate feeds a packet into its device's aggregation window, flushing
// the window's batch the first time a packet arrives after the window's
// deadline has passed.
func (m *Manager) Aggregate(deviceID string, packet neural.SamplePacket) {
	m.aggMu.Lock()
	now := time.Now()
	deadline, has := m.aggDeadlines[deviceID]
	if !has || now.After(deadline) {
		batch := m.aggBuffers[deviceID]
		m.aggBuffers[deviceID] = nil
		m.aggDeadlines[deviceID] = now.Add(m.aggregationWindow)
		cb := m.aggCallback
		m.aggMu.Unlock()

		if cb != nil && len(batch) > 0 {
			cb(deviceID, batch)
		}

		m.aggMu.Lock()
		m.aggBuffers[deviceID] = append(m.aggBuffers[deviceID], packet)
		m.aggMu.Unlock()
		return
	}
	m.aggBuffers[deviceID] = append(m.aggBuffers[deviceID], packet)
	m.aggMu.Unlock()
}

// FlushAll force-flushes every pending aggregation window, used on
// shutdown so no trailing packets are lost.
func (m *Manager) FlushAll() {
	m.aggMu.Lock()
	buffers := m.aggBuffers
	cb := m.aggCallback
	m.aggBuffers = make(map[string][]neural.SamplePacket)
	m.aggDeadlines = make(map[string]time.Time)
	m.aggMu.Unlock()

	if cb == nil {
		return
	}
	for deviceID, batch := range buffers {
		if len(batch) > 0 {
			cb(deviceID, batch)
		}
	}
}
