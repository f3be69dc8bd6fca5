package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

// PatientsConfig holds the map of per-patient config overrides.
type PatientsConfig struct {
	Patients map[string]Config `yaml:"patients"`
}

// Manager resolves the effective config for a patient by overlaying a
// patient-specific override (if any) on top of the global config. This is
// how a clinician tightens the seizure-predictor risk band, or raises the
// signal-quality floor, for one patient without touching the deployment
// default.
type Manager struct {
	globalConfig   *Config
	patientConfigs map[string]Config
	mu             sync.RWMutex
}

// NewManager loads both the global config and the per-patient overrides.
func NewManager(globalPath, patientsPath string) (*Manager, error) {
	global, err := LoadConfig(globalPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(patientsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manager{globalConfig: global, patientConfigs: make(map[string]Config)}, nil
		}
		return nil, err
	}
	defer f.Close()

	var pc PatientsConfig
	if err := yaml.NewDecoder(f).Decode(&pc); err != nil {
		return nil, err
	}

	return &Manager{
		globalConfig:   global,
		patientConfigs: pc.Patients,
	}, nil
}

// Get returns the effective config for a patient, merging their override
// (if one exists) on top of a copy of the global config.
func (m *Manager) Get(patientID string) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	effective := *m.globalConfig

	override, ok := m.patientConfigs[patientID]
	if !ok {
		return &effective
	}

	// Seizure-predictor risk band: a patient with frequent breakthrough
	// seizures may need a tighter IMMINENT cutoff than the population
	// default.
	if override.Seizure.ImminentThreshold != 0 || override.Seizure.HighThreshold != 0 {
		effective.Seizure = override.Seizure
	}

	// Signal-quality floor: some implant/electrode combinations run a
	// permanently lower baseline SNR than the general device fleet.
	if override.Quality.GoodSNRDb != 0 || override.Quality.FairSNRDb != 0 {
		effective.Quality = override.Quality
	}

	// Stream cadence: a patient on a slower uplink may need a longer
	// ring buffer window or reduced classification cadence.
	if override.Stream.RingBufferDurationMs != 0 {
		effective.Stream.RingBufferDurationMs = override.Stream.RingBufferDurationMs
	}
	if override.Stream.ClassificationCadenceMs != 0 {
		effective.Stream.ClassificationCadenceMs = override.Stream.ClassificationCadenceMs
	}

	return &effective
}

// SeizureThresholds returns the effective seizure-predictor band for a
// patient as its imminent, high and medium cutoffs.
func (m *Manager) SeizureThresholds(patientID string) (imminent, high, medium float64) {
	cfg := m.Get(patientID)
	return cfg.Seizure.ImminentThreshold, cfg.Seizure.HighThreshold, cfg.Seizure.MediumThreshold
}

// HasOverride reports whether patientID has an explicit config override
// on file, as opposed to inheriting every field from the global config.
func (m *Manager) HasOverride(patientID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.patientConfigs[patientID]
	return ok
}
