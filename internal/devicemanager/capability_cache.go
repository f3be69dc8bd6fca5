package devicemanager

import (
	"sync"
	"time"

	"github.com/neuroflux/engine/internal/device"
)

const capabilityCacheTTL = 10 * time.Minute

// capabilityCacheEntry pins a device's capabilities snapshot to the time
// it was read, so a stale negotiation (device firmware change mid-session)
// is detected and re-queried rather than trusted indefinitely.
type capabilityCacheEntry struct {
	caps     device.Capabilities
	cachedAt time.Time
}

// CapabilityCache avoids re-negotiating a device's capabilities on every
// connect within the TTL window, since GetCapabilities on real hardware
// adapters can require a round trip to the device.
type CapabilityCache struct {
	mu      sync.Mutex
	entries map[string]capabilityCacheEntry
}

func NewCapabilityCache() *CapabilityCache {
	return &CapabilityCache{entries: make(map[string]capabilityCacheEntry)}
}

// Get returns the cached capabilities for deviceID if present and still
// within the TTL, querying and caching them via d.GetCapabilities()
// otherwise.
func (c *CapabilityCache) Get(deviceID string, d device.Device) device.Capabilities {
	c.mu.Lock()
	entry, ok := c.entries[deviceID]
	c.mu.Unlock()
	if ok && time.Since(entry.cachedAt) < capabilityCacheTTL {
		return entry.caps
	}

	caps := d.GetCapabilities()
	c.mu.Lock()
	c.entries[deviceID] = capabilityCacheEntry{caps: caps, cachedAt: time.Now()}
	c.mu.Unlock()
	return caps
}

// Invalidate drops a device's cached capabilities, forcing the next Get
// to re-query.
func (c *CapabilityCache) Invalidate(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, deviceID)
}
