// Package devicemanager implements Component G: a device registry keyed
// by deviceID, auto-discovery wired to a stable device-type mapping
// table, an active session ID shared across connect/streaming calls, and
// a data-aggregation window that batches packets for the ledger.
package devicemanager

import (
	"fmt"
	"sync"
	"time"

	"github.com/neuroflux/engine/internal/device"
	"github.com/neuroflux/engine/internal/identity"
	"github.com/neuroflux/engine/internal/neural"
)

// Factory constructs a concrete Device for a given device ID, used by
// the stable type-mapping table that maps a discovered device's Type to
// a constructor.
type Factory func(deviceID string) device.Device

// Manager is the registry of active devices plus discovery/aggregation.
type Manager struct {
	mu              sync.RWMutex
	devices         map[string]device.Device
	deviceTypes     map[string]Factory
	activeSessionID string
	discovery       *device.DiscoveryService
	discovered      map[string]device.DiscoveredDevice

	// RequireIdentity gates WIFI/LSL device connections on a SPIFFE
	// identity check (§4.F expanded). Point-to-point protocols (SERIAL,
	// BLUETOOTH, USB) are trusted by physical possession and skip it.
	RequireIdentity bool
	verifier        *identity.SPIFFEVerifier

	aggregationWindow time.Duration
	aggMu             sync.Mutex
	aggBuffers        map[string][]neural.SamplePacket
	aggDeadlines      map[string]time.Time
	aggCallback       func(deviceID string, batch []neural.SamplePacket)

	capabilities *CapabilityCache
}

func NewManager(discovery *device.DiscoveryService) *Manager {
	return &Manager{
		devices:           make(map[string]device.Device),
		deviceTypes:       make(map[string]Factory),
		discovery:         discovery,
		discovered:        make(map[string]device.DiscoveredDevice),
		aggregationWindow: 1000 * time.Millisecond,
		aggBuffers:        make(map[string][]neural.SamplePacket),
		aggDeadlines:      make(map[string]time.Time),
		capabilities:      NewCapabilityCache(),
	}
}

// GetCapabilities returns deviceID's capabilities, querying the device
// only once per capabilityCacheTTL so a session doesn't re-negotiate
// against real hardware on every call.
func (m *Manager) GetCapabilities(deviceID string) (device.Capabilities, error) {
	d := m.GetDevice(deviceID)
	if d == nil {
		return device.Capabilities{}, fmt.Errorf("devicemanager: device %s not found", deviceID)
	}
	return m.capabilities.Get(deviceID, d), nil
}

// SetVerifier injects the SPIFFE verifier used when RequireIdentity is set.
func (m *Manager) SetVerifier(v *identity.SPIFFEVerifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifier = v
}

// RegisterDeviceType adds a factory to the stable type-mapping table used
// by auto-discovery to instantiate concrete device types.
func (m *Manager) RegisterDeviceType(deviceType string, factory Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceTypes[deviceType] = factory
}

// AddDevice instantiates and registers a device of the given type.
func (m *Manager) AddDevice(deviceID, deviceType string) (device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[deviceID]; exists {
		return nil, fmt.Errorf("devicemanager: device %s already exists", deviceID)
	}
	factory, ok := m.deviceTypes[deviceType]
	if !ok {
		return nil, fmt.Errorf("devicemanager: unknown device type %q", deviceType)
	}
	d := factory(deviceID)
	m.devices[deviceID] = d
	return d, nil
}

// RemoveDevice disconnects and unregisters a device.
func (m *Manager) RemoveDevice(deviceID string) error {
	m.mu.Lock()
	d, exists := m.devices[deviceID]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("devicemanager: device %s not found", deviceID)
	}
	delete(m.devices, deviceID)
	m.mu.Unlock()

	m.capabilities.Invalidate(deviceID)
	return d.Disconnect()
}

func (m *Manager) GetDevice(deviceID string) device.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.devices[deviceID]
}

func (m *Manager) ListDevices() []device.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]device.Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	return out
}

// SetActiveSession assigns the session ID packet creation requires;
// shared across every managed device.
func (m *Manager) SetActiveSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeSessionID = sessionID
	for _, d := range m.devices {
		d.SetSessionID(sessionID)
	}
}

func (m *Manager) ActiveSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeSessionID
}

// ConnectDevice verifies identity for network-reachable protocols (when
// RequireIdentity is set) before delegating to the device's own Connect.
func (m *Manager) ConnectDevice(deviceID string, opts device.ConnectOptions, protocol device.Protocol, spiffeID string) (bool, error) {
	d := m.GetDevice(deviceID)
	if d == nil {
		return false, fmt.Errorf("devicemanager: device %s not found", deviceID)
	}

	m.mu.RLock()
	require := m.RequireIdentity
	verifier := m.verifier
	m.mu.RUnlock()

	if require && (protocol == device.ProtocolWifi || protocol == device.ProtocolLSL) {
		if verifier == nil {
			return false, fmt.Errorf("devicemanager: identity required but no verifier configured")
		}
		if _, err := verifier.VerifySVID(spiffeID); err != nil {
			return false, fmt.Errorf("devicemanager: device identity check failed: %w", err)
		}
	}
	ok, err := d.Connect(opts)
	if ok {
		m.capabilities.Invalidate(deviceID)
	}
	return ok, err
}

// StartStreaming starts every named device, or all registered devices if
// deviceIDs is empty.
func (m *Manager) StartStreaming(deviceIDs ...string) error {
	targets := m.resolveTargets(deviceIDs)
	for _, d := range targets {
		if err := d.StartStreaming(); err != nil {
			return fmt.Errorf("devicemanager: starting %s: %w", d.ID(), err)
		}
	}
	return nil
}

// StopStreaming stops every named device, or all registered devices if
// deviceIDs is empty.
func (m *Manager) StopStreaming(deviceIDs ...string) error {
	targets := m.resolveTargets(deviceIDs)
	for _, d := range targets {
		if err := d.StopStreaming(); err != nil {
			return fmt.Errorf("devicemanager: stopping %s: %w", d.ID(), err)
		}
	}
	return nil
}

func (m *Manager) resolveTargets(deviceIDs []string) []device.Device {
	if len(deviceIDs) == 0 {
		return m.ListDevices()
	}
	out := make([]device.Device, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		if d := m.GetDevice(id); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// AutoDiscover runs one scan round and instantiates any newly discovered
// device whose Type has a registered factory; devices with no mapping are
// left discovered but un-instantiated.
func (m *Manager) AutoDiscover() ([]device.Device, error) {
	found, err := m.discovery.ScanRound()
	if err != nil {
		return nil, err
	}
	var instantiated []device.Device
	for _, dd := range found {
		m.mu.Lock()
		_, alreadyKnown := m.discovered[dd.UniqueID]
		m.discovered[dd.UniqueID] = dd
		m.mu.Unlock()
		if alreadyKnown {
			continue
		}
		m.mu.RLock()
		_, hasFactory := m.deviceTypes[dd.Type]
		m.mu.RUnlock()
		if !hasFactory {
			continue
		}
		d, err := m.AddDevice(dd.UniqueID, dd.Type)
		if err != nil {
			continue
		}
		instantiated = append(instantiated, d)
	}
	return instantiated, nil
}
