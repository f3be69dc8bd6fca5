package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerGetFallsBackToGlobalWithoutOverride(t *testing.T) {
	global := &Config{Seizure: SeizureConfig{ImminentThreshold: 0.85, HighThreshold: 0.60, MediumThreshold: 0.35}}
	m := &Manager{globalConfig: global, patientConfigs: map[string]Config{}}

	effective := m.Get("patient-without-override")
	assert.Equal(t, 0.85, effective.Seizure.ImminentThreshold)
	assert.False(t, m.HasOverride("patient-without-override"))
}

func TestManagerGetAppliesSeizureOverride(t *testing.T) {
	global := &Config{Seizure: SeizureConfig{ImminentThreshold: 0.85, HighThreshold: 0.60, MediumThreshold: 0.35}}
	m := &Manager{
		globalConfig: global,
		patientConfigs: map[string]Config{
			"patient-1": {Seizure: SeizureConfig{ImminentThreshold: 0.70, HighThreshold: 0.50, MediumThreshold: 0.30}},
		},
	}

	effective := m.Get("patient-1")
	require.True(t, m.HasOverride("patient-1"))
	assert.Equal(t, 0.70, effective.Seizure.ImminentThreshold)
	assert.Equal(t, 0.50, effective.Seizure.HighThreshold)
}

func TestManagerGetDoesNotMutateGlobal(t *testing.T) {
	global := &Config{Seizure: SeizureConfig{ImminentThreshold: 0.85}}
	m := &Manager{
		globalConfig: global,
		patientConfigs: map[string]Config{
			"patient-1": {Seizure: SeizureConfig{ImminentThreshold: 0.70, HighThreshold: 0.1}},
		},
	}

	_ = m.Get("patient-1")
	assert.Equal(t, 0.85, global.Seizure.ImminentThreshold)
}

func TestSeizureThresholdsProjectsEffectiveConfig(t *testing.T) {
	global := &Config{Seizure: SeizureConfig{ImminentThreshold: 0.85, HighThreshold: 0.60, MediumThreshold: 0.35}}
	m := &Manager{globalConfig: global, patientConfigs: map[string]Config{}}

	imminent, high, medium := m.SeizureThresholds("patient-x")
	assert.Equal(t, 0.85, imminent)
	assert.Equal(t, 0.60, high)
	assert.Equal(t, 0.35, medium)
}
