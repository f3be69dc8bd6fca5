package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

// =============================================================================
// Neuroflux Engine - Configuration with Environment Overrides
// =============================================================================

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Device     DeviceConfig     `yaml:"device"`
	Stream     StreamConfig     `yaml:"stream"`
	Quality    QualityConfig    `yaml:"quality"`
	Seizure    SeizureConfig    `yaml:"seizure"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Storage    StorageConfig    `yaml:"storage"`
	PubSub     PubSubConfig     `yaml:"pubsub"`
	CloudTasks CloudTasksConfig `yaml:"cloud_tasks"`
	Identity   IdentityConfig   `yaml:"identity"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type ServerConfig struct {
	Port             string   `yaml:"port"`
	GRPCPort         string   `yaml:"grpc_port"`
	Env              string   `yaml:"env"`
	Interface        string   `yaml:"interface"`
	ReadTimeoutSec   int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec  int      `yaml:"write_timeout_sec"`
	IdleTimeoutSec   int      `yaml:"idle_timeout_sec"`
	ShutdownTimeout  int      `yaml:"shutdown_timeout_sec"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
}

// DeviceConfig governs device discovery and connection behavior.
type DeviceConfig struct {
	DiscoveryTimeoutSec int  `yaml:"discovery_timeout_sec"`
	RequireIdentity     bool `yaml:"require_identity"`
	CapabilityCacheTTL  int  `yaml:"capability_cache_ttl_sec"`
}

// StreamConfig governs per-stream ring buffer sizing and the
// classification cadence applied once a window fills.
type StreamConfig struct {
	RingBufferDurationMs  float64 `yaml:"ring_buffer_duration_ms"`
	ClassificationCadenceMs int   `yaml:"classification_cadence_ms"`
	WindowOverlapPercent  float64 `yaml:"window_overlap_percent"`
}

// QualityConfig carries the signal-quality decision thresholds of
// spec.md §4.B (Welch PSD noise floor, flatline/saturation ratios).
type QualityConfig struct {
	GoodSNRDb        float64 `yaml:"good_snr_db"`
	FairSNRDb        float64 `yaml:"fair_snr_db"`
	FlatlineStdDev   float64 `yaml:"flatline_stddev"`
	SaturationRatio  float64 `yaml:"saturation_ratio"`
}

// SeizureConfig is the global default seizure-predictor threshold band;
// Manager.Get(patientID) may overlay a tighter or looser per-patient band
// on top of these.
type SeizureConfig struct {
	ImminentThreshold float64 `yaml:"imminent_threshold"`
	HighThreshold     float64 `yaml:"high_threshold"`
	MediumThreshold   float64 `yaml:"medium_threshold"`
}

// LedgerConfig governs the signer key and chain-cursor recovery behavior.
type LedgerConfig struct {
	SigningKeyBits    int  `yaml:"signing_key_bits"`
	StrictSignatures  bool `yaml:"strict_signatures"`
	RotationIntervalH int  `yaml:"rotation_interval_hours"`
}

// StorageConfig carries the DSNs for the three fan-out tiers of spec.md
// §4.J (row-KV, document, columnar warehouse).
type StorageConfig struct {
	Redis    RedisConfig    `yaml:"redis"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Spanner  SpannerConfig  `yaml:"spanner"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"service_key"`
}

type SpannerConfig struct {
	ProjectID  string `yaml:"project_id"`
	InstanceID string `yaml:"instance_id"`
	DatabaseID string `yaml:"database_id"`
}

// PubSubConfig for the Google Cloud Pub/Sub ledger-event fan-out.
type PubSubConfig struct {
	ProjectID string `yaml:"project_id"`
	TopicID   string `yaml:"topic_id"`
	Enabled   bool   `yaml:"enabled"`
}

// CloudTasksConfig for the durable-hedge fallback on a failing storage
// tier write.
type CloudTasksConfig struct {
	ProjectID  string `yaml:"project_id"`
	LocationID string `yaml:"location_id"`
	QueueID    string `yaml:"queue_id"`
	Enabled    bool   `yaml:"enabled"`
}

// IdentityConfig for SPIFFE-based device transport identity.
type IdentityConfig struct {
	SocketPath  string `yaml:"socket_path"`
	TrustDomain string `yaml:"trust_domain"`
}

type MonitoringConfig struct {
	LatencyAlertMs   int  `yaml:"latency_alert_ms"`
	EnableLiveStream bool `yaml:"enable_live_stream"`
}

// =============================================================================
// Singleton Pattern with Environment Overrides
// =============================================================================

var (
	instance *Config
	once     sync.Once
)

// Get returns the singleton config instance
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file (using defaults)", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Server
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.GRPCPort = getEnv("GRPC_PORT", c.Server.GRPCPort)
	c.Server.Env = getEnv("NEUROFLUX_ENV", c.Server.Env)
	c.Server.Interface = getEnv("NEUROFLUX_INTERFACE", c.Server.Interface)
	if v := getEnvInt("SERVER_READ_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ReadTimeoutSec = v
	}
	if v := getEnvInt("SERVER_WRITE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.WriteTimeoutSec = v
	}
	if v := getEnvInt("SERVER_IDLE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.IdleTimeoutSec = v
	}
	if v := getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownTimeout = v
	}
	if origins := getEnv("CORS_ALLOW_ORIGINS", ""); origins != "" {
		c.Server.CORSAllowOrigins = splitCSV(origins)
	}

	// Device
	if v := getEnvInt("DEVICE_DISCOVERY_TIMEOUT_SEC", 0); v > 0 {
		c.Device.DiscoveryTimeoutSec = v
	}
	c.Device.RequireIdentity = getEnvBool("DEVICE_REQUIRE_IDENTITY", c.Device.RequireIdentity)
	if v := getEnvInt("DEVICE_CAPABILITY_CACHE_TTL_SEC", 0); v > 0 {
		c.Device.CapabilityCacheTTL = v
	}

	// Stream
	if v := getEnvFloat("RING_BUFFER_DURATION_MS", 0); v > 0 {
		c.Stream.RingBufferDurationMs = v
	}
	if v := getEnvInt("CLASSIFICATION_CADENCE_MS", 0); v > 0 {
		c.Stream.ClassificationCadenceMs = v
	}

	// Quality
	if v := getEnvFloat("QUALITY_GOOD_SNR_DB", 0); v > 0 {
		c.Quality.GoodSNRDb = v
	}
	if v := getEnvFloat("QUALITY_FAIR_SNR_DB", 0); v > 0 {
		c.Quality.FairSNRDb = v
	}

	// Seizure
	if v := getEnvFloat("SEIZURE_IMMINENT_THRESHOLD", 0); v > 0 {
		c.Seizure.ImminentThreshold = v
	}
	if v := getEnvFloat("SEIZURE_HIGH_THRESHOLD", 0); v > 0 {
		c.Seizure.HighThreshold = v
	}
	if v := getEnvFloat("SEIZURE_MEDIUM_THRESHOLD", 0); v > 0 {
		c.Seizure.MediumThreshold = v
	}

	// Ledger
	if v := getEnvInt("LEDGER_SIGNING_KEY_BITS", 0); v > 0 {
		c.Ledger.SigningKeyBits = v
	}
	c.Ledger.StrictSignatures = getEnvBool("LEDGER_STRICT_SIGNATURES", c.Ledger.StrictSignatures)
	if v := getEnvInt("LEDGER_ROTATION_INTERVAL_HOURS", 0); v > 0 {
		c.Ledger.RotationIntervalH = v
	}

	// Storage - Redis
	c.Storage.Redis.Addr = getEnv("REDIS_ADDR", c.Storage.Redis.Addr)
	c.Storage.Redis.Password = getEnv("REDIS_PASSWORD", c.Storage.Redis.Password)
	if v := getEnvInt("REDIS_DB", -1); v >= 0 {
		c.Storage.Redis.DB = v
	}

	// Storage - Supabase
	c.Storage.Supabase.URL = getEnv("SUPABASE_URL", c.Storage.Supabase.URL)
	c.Storage.Supabase.ServiceKey = getEnv("SUPABASE_SERVICE_KEY", c.Storage.Supabase.ServiceKey)

	// Storage - Spanner
	c.Storage.Spanner.ProjectID = getEnv("SPANNER_PROJECT_ID", c.Storage.Spanner.ProjectID)
	c.Storage.Spanner.InstanceID = getEnv("SPANNER_INSTANCE_ID", c.Storage.Spanner.InstanceID)
	c.Storage.Spanner.DatabaseID = getEnv("SPANNER_DATABASE_ID", c.Storage.Spanner.DatabaseID)

	// Pub/Sub
	if projectID := getEnv("GCP_PROJECT_ID", ""); projectID != "" {
		c.PubSub.ProjectID = projectID
		c.CloudTasks.ProjectID = projectID // share project
	}
	c.PubSub.TopicID = getEnv("PUBSUB_TOPIC_ID", c.PubSub.TopicID)
	c.PubSub.Enabled = getEnvBool("PUBSUB_ENABLED", c.PubSub.Enabled)

	// Cloud Tasks
	c.CloudTasks.LocationID = getEnv("CLOUD_TASKS_LOCATION", c.CloudTasks.LocationID)
	c.CloudTasks.QueueID = getEnv("CLOUD_TASKS_QUEUE", c.CloudTasks.QueueID)
	c.CloudTasks.Enabled = getEnvBool("CLOUD_TASKS_ENABLED", c.CloudTasks.Enabled)

	// Identity
	c.Identity.SocketPath = getEnv("SPIFFE_SOCKET_PATH", c.Identity.SocketPath)
	c.Identity.TrustDomain = getEnv("SPIFFE_TRUST_DOMAIN", c.Identity.TrustDomain)

	// Monitoring
	if v := getEnvInt("LATENCY_ALERT_MS", 0); v > 0 {
		c.Monitoring.LatencyAlertMs = v
	}
	c.Monitoring.EnableLiveStream = getEnvBool("MONITORING_ENABLE_LIVE_STREAM", c.Monitoring.EnableLiveStream)

	c.applyDefaults()
}

// applyDefaults sets sensible defaults for zero-valued config fields.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.GRPCPort == "" {
		c.Server.GRPCPort = "50051"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Server.IdleTimeoutSec == 0 {
		c.Server.IdleTimeoutSec = 60
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30
	}
	if len(c.Server.CORSAllowOrigins) == 0 {
		c.Server.CORSAllowOrigins = []string{"*"}
	}

	if c.Device.DiscoveryTimeoutSec == 0 {
		c.Device.DiscoveryTimeoutSec = 10
	}
	if c.Device.CapabilityCacheTTL == 0 {
		c.Device.CapabilityCacheTTL = 300
	}

	if c.Stream.RingBufferDurationMs == 0 {
		c.Stream.RingBufferDurationMs = 4000
	}
	if c.Stream.ClassificationCadenceMs == 0 {
		c.Stream.ClassificationCadenceMs = 1000
	}
	if c.Stream.WindowOverlapPercent == 0 {
		c.Stream.WindowOverlapPercent = 50
	}

	if c.Quality.GoodSNRDb == 0 {
		c.Quality.GoodSNRDb = 20
	}
	if c.Quality.FairSNRDb == 0 {
		c.Quality.FairSNRDb = 10
	}
	if c.Quality.FlatlineStdDev == 0 {
		c.Quality.FlatlineStdDev = 0.5
	}
	if c.Quality.SaturationRatio == 0 {
		c.Quality.SaturationRatio = 0.01
	}

	if c.Seizure.ImminentThreshold == 0 {
		c.Seizure.ImminentThreshold = 0.85
	}
	if c.Seizure.HighThreshold == 0 {
		c.Seizure.HighThreshold = 0.60
	}
	if c.Seizure.MediumThreshold == 0 {
		c.Seizure.MediumThreshold = 0.35
	}

	if c.Ledger.SigningKeyBits == 0 {
		c.Ledger.SigningKeyBits = 2048
	}
	if c.Ledger.RotationIntervalH == 0 {
		c.Ledger.RotationIntervalH = 24 * 30
	}

	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}

	if c.PubSub.TopicID == "" {
		c.PubSub.TopicID = "neuroflux-ledger-events"
	}
	if c.CloudTasks.LocationID == "" {
		c.CloudTasks.LocationID = "us-central1"
	}
	if c.CloudTasks.QueueID == "" {
		c.CloudTasks.QueueID = "neuroflux-tier-replay"
	}

	if c.Identity.SocketPath == "" {
		c.Identity.SocketPath = "unix:///tmp/spire-agent/public/api.sock"
	}
	if c.Identity.TrustDomain == "" {
		c.Identity.TrustDomain = "spiffe://neuroflux.local"
	}

	if c.Monitoring.LatencyAlertMs == 0 {
		c.Monitoring.LatencyAlertMs = 500
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// =============================================================================
// Convenience Methods
// =============================================================================

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) GetPort() string {
	if c.Server.Port == "" {
		return "8080"
	}
	return c.Server.Port
}

// GetSupabaseURL returns the Supabase URL.
func (c *Config) GetSupabaseURL() string {
	return c.Storage.Supabase.URL
}

// GetSupabaseKey returns the Supabase service key.
func (c *Config) GetSupabaseKey() string {
	return c.Storage.Supabase.ServiceKey
}
