package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	var c Config
	c.applyDefaults()

	assert.Equal(t, "8080", c.Server.Port)
	assert.Equal(t, float64(4000), c.Stream.RingBufferDurationMs)
	assert.Equal(t, 0.85, c.Seizure.ImminentThreshold)
	assert.Equal(t, 2048, c.Ledger.SigningKeyBits)
	assert.Equal(t, "localhost:6379", c.Storage.Redis.Addr)
	assert.Equal(t, []string{"*"}, c.Server.CORSAllowOrigins)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	c := Config{Seizure: SeizureConfig{ImminentThreshold: 0.99}}
	c.applyDefaults()

	assert.Equal(t, 0.99, c.Seizure.ImminentThreshold)
	// Untouched sibling fields still get their defaults.
	assert.Equal(t, 0.60, c.Seizure.HighThreshold)
}

func TestIsProductionAndIsDevelopment(t *testing.T) {
	prod := &Config{Server: ServerConfig{Env: "production"}}
	assert.True(t, prod.IsProduction())
	assert.False(t, prod.IsDevelopment())

	dev := &Config{Server: ServerConfig{Env: "development"}}
	assert.True(t, dev.IsDevelopment())
	assert.False(t, dev.IsProduction())
}

func TestSplitCSVTrimsAndDropsEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitCSV("a, b ,,c"))
}
