package device

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/neuroflux/engine/internal/neural"
)

// SimulatorDevice is a synthetic device used for integration tests and
// local development: it streams a sine-plus-noise signal at a fixed
// sampling rate once connected, mirroring the source's MockDevice fixture.
type SimulatorDevice struct {
	*BaseDevice

	channels       []string
	samplingRateHz float64
	signalType     neural.SignalType

	mu             sync.Mutex
	stop           chan struct{}
	done           chan struct{}
	rng            *rand.Rand
}

func NewSimulatorDevice(id string, channels []string, samplingRateHz float64) *SimulatorDevice {
	return &SimulatorDevice{
		BaseDevice:     NewBaseDevice(id, "Simulator "+id),
		channels:       channels,
		samplingRateHz: samplingRateHz,
		signalType:     neural.SignalEEG,
		rng:            rand.New(rand.NewSource(1)),
	}
}

func (d *SimulatorDevice) Connect(opts ConnectOptions) (bool, error) {
	d.UpdateState(StateConnecting)
	d.UpdateState(StateConnected)
	return true, nil
}

func (d *SimulatorDevice) Disconnect() error {
	if d.IsStreaming() {
		if err := d.StopStreaming(); err != nil {
			return err
		}
	}
	d.UpdateState(StateDisconnected)
	return nil
}

func (d *SimulatorDevice) StartStreaming() error {
	if !d.IsConnected() {
		return fmt.Errorf("device %s: cannot start streaming, not connected", d.ID())
	}
	d.mu.Lock()
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	stop, done := d.stop, d.done
	d.mu.Unlock()

	d.UpdateState(StateStreaming)
	go d.streamLoop(stop, done)
	return nil
}

func (d *SimulatorDevice) StopStreaming() error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
	d.UpdateState(StateConnected)
	return nil
}

// streamLoop emits a packet of samplingRateHz/10 samples per channel every
// 100ms until stop is closed,
// translating the source's asyncio.Event-cancelled task into a Go
// stop-channel loop.
func (d *SimulatorDevice) streamLoop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	samplesPerTick := int(d.samplingRateHz * 0.1)
	t := 0.0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			data := make([][]float64, len(d.channels))
			for c := range d.channels {
				samples := make([]float64, samplesPerTick)
				for i := 0; i < samplesPerTick; i++ {
					phase := t + float64(i)/d.samplingRateHz
					samples[i] = 20*math.Sin(2*math.Pi*10*phase) + d.rng.NormFloat64()*2
				}
				data[c] = samples
			}
			t += float64(samplesPerTick) / d.samplingRateHz
			packet := neural.SamplePacket{
				Channels:       d.channels,
				SamplingRateHz: d.samplingRateHz,
				Data:           data,
				Timestamp:      time.Now(),
				SignalType:     d.signalType,
				Source:         "SIMULATOR",
			}
			if err := d.EmitPacket(packet); err != nil {
				d.HandleError(err)
				return
			}
		}
	}
}

func (d *SimulatorDevice) GetCapabilities() Capabilities {
	return Capabilities{
		SupportedSamplingRates: []float64{128, 256, 512},
		MaxChannels:            len(d.channels),
		SignalTypes:            []neural.SignalType{neural.SignalEEG},
		HasImpedanceCheck:      true,
		HasBatteryMonitor:      false,
	}
}

func (d *SimulatorDevice) ConfigureChannels(channels []string) bool {
	d.channels = channels
	return true
}

func (d *SimulatorDevice) SetSamplingRate(rate float64) bool {
	for _, r := range d.GetCapabilities().SupportedSamplingRates {
		if r == rate {
			d.samplingRateHz = rate
			return true
		}
	}
	return false
}

func (d *SimulatorDevice) CheckImpedance() (map[string]neural.ImpedanceResult, error) {
	out := make(map[string]neural.ImpedanceResult, len(d.channels))
	for _, ch := range d.channels {
		ohms := 2000 + d.rng.Float64()*3000
		out[ch] = neural.ImpedanceResult{Channel: ch, ImpedanceOhms: ohms}
	}
	return out, nil
}

func (d *SimulatorDevice) GetBatteryLevel() (float64, error) {
	return 0, ErrNotSupported
}
