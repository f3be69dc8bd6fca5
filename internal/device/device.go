// Package device defines the device abstraction: a lifecycle state
// machine, a behavioural interface every concrete device implements, and
// the streaming-loop idiom (goroutine cancelled by a stop channel) that
// replaces the source's asyncio task/event pair.
package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/neuroflux/engine/internal/neural"
)

// State enumerates the device lifecycle per spec.md §4.F.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateStreaming    State = "STREAMING"
	StateError        State = "ERROR"
)

// Capabilities describes what a device supports.
type Capabilities struct {
	SupportedSamplingRates []float64
	MaxChannels            int
	SignalTypes            []neural.SignalType
	HasImpedanceCheck      bool
	HasBatteryMonitor      bool
}

// ConnectOptions carries protocol-specific connection parameters.
type ConnectOptions struct {
	ConnectionInfo string
	Timeout        time.Duration
	Extra          map[string]string
}

// DataCallback receives every sample packet emitted while streaming.
type DataCallback func(neural.SamplePacket)

// StateCallback fires on every state transition.
type StateCallback func(State)

// ErrorCallback fires when an operation fails; the device transitions to
// StateError immediately before the callback runs.
type ErrorCallback func(error)

// Device is the behavioural interface every concrete hardware adapter
// satisfies.
type Device interface {
	ID() string
	Name() string
	State() State
	Connect(opts ConnectOptions) (bool, error)
	Disconnect() error
	StartStreaming() error
	StopStreaming() error
	GetCapabilities() Capabilities
	ConfigureChannels(channels []string) bool
	SetSamplingRate(rate float64) bool
	CheckImpedance() (map[string]neural.ImpedanceResult, error)
	GetBatteryLevel() (float64, error)
	SetDataCallback(DataCallback)
	SetStateCallback(StateCallback)
	SetErrorCallback(ErrorCallback)
	SetSessionID(sessionID string)
}

// ErrNotSupported is returned by CheckImpedance/GetBatteryLevel when a
// device's capabilities don't include the feature.
var ErrNotSupported = fmt.Errorf("device: capability not supported")

// BaseDevice implements the lifecycle/callback/session bookkeeping shared
// by every concrete device; embedders supply Connect/Disconnect/
// StartStreaming/StopStreaming/GetCapabilities and may call
// UpdateState/HandleError/EmitPacket from their own methods.
type BaseDevice struct {
	mu            sync.RWMutex
	id            string
	name          string
	state         State
	sessionID     string
	dataCallback  DataCallback
	stateCallback StateCallback
	errorCallback ErrorCallback
}

func NewBaseDevice(id, name string) *BaseDevice {
	return &BaseDevice{id: id, name: name, state: StateDisconnected}
}

func (d *BaseDevice) ID() string   { return d.id }
func (d *BaseDevice) Name() string { return d.name }

func (d *BaseDevice) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *BaseDevice) IsConnected() bool {
	s := d.State()
	return s == StateConnected || s == StateStreaming
}

func (d *BaseDevice) IsStreaming() bool {
	return d.State() == StateStreaming
}

func (d *BaseDevice) SetSessionID(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessionID = sessionID
}

func (d *BaseDevice) SessionID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sessionID
}

func (d *BaseDevice) SetDataCallback(cb DataCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dataCallback = cb
}

func (d *BaseDevice) SetStateCallback(cb StateCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateCallback = cb
}

func (d *BaseDevice) SetErrorCallback(cb ErrorCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errorCallback = cb
}

// UpdateState transitions the device and fires the state callback, if any.
func (d *BaseDevice) UpdateState(s State) {
	d.mu.Lock()
	d.state = s
	cb := d.stateCallback
	d.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// HandleError transitions to StateError and fires the error callback.
func (d *BaseDevice) HandleError(err error) {
	d.UpdateState(StateError)
	d.mu.RLock()
	cb := d.errorCallback
	d.mu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

// EmitPacket requires a session ID to be set and delivers the packet to
// the data callback, if any.
func (d *BaseDevice) EmitPacket(packet neural.SamplePacket) error {
	d.mu.RLock()
	sessionID := d.sessionID
	cb := d.dataCallback
	d.mu.RUnlock()
	if sessionID == "" {
		return fmt.Errorf("device %s: cannot emit packet without a session id", d.id)
	}
	packet.DeviceID = d.id
	packet.SessionID = sessionID
	if cb != nil {
		cb(packet)
	}
	return nil
}
