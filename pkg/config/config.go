// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all HydroView configuration.
type Config struct {
	Version int `yaml:"version"`

	Data      DataConfig      `yaml:"data"`
	Segment   SegmentConfig   `yaml:"segment"`
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	S3        S3Config        `yaml:"s3"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DataConfig locates the CSV exports.
type DataConfig struct {
	// Dir is the root data directory. The sequence and telemetry
	// subdirectories default to paths under it.
	Dir string `yaml:"dir"`

	// SequencesDir holds the "Sequences *.csv" exports.
	SequencesDir string `yaml:"sequences_dir"`

	// TelemetryDir holds the "Telemetry *.csv" exports.
	TelemetryDir string `yaml:"telemetry_dir"`

	// Timezone for calendar-date attribution (IANA name).
	Timezone string `yaml:"timezone"`
}

// SegmentConfig carries the default selector values; callers override
// them per request.
type SegmentConfig struct {
	Policy string `yaml:"policy"` // hide | clean_split | raw_split | show_all

	// ShowManufacturing includes Manufacturing and Testing states by default.
	ShowManufacturing bool `yaml:"show_manufacturing"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// CacheConfig controls the segmentation-result cache.
type CacheConfig struct {
	Backend    string        `yaml:"backend"` // memory | redis
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`

	RedisAddress  string `yaml:"redis_address"`
	RedisPassword string `yaml:"redis_password"`
	RedisDatabase int    `yaml:"redis_database"`
}

// S3Config points at bucket-synced exports. An empty bucket means the
// data is read from the local filesystem only.
type S3Config struct {
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"` // for S3-compatible stores
}

// TelemetryConfig controls optional trace export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // OTLP gRPC, e.g. localhost:4317
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Data: DataConfig{
			Dir:          "data",
			SequencesDir: filepath.Join("data", "sequences"),
			TelemetryDir: filepath.Join("data", "telemetry"),
			Timezone:     "UTC",
		},
		Segment: SegmentConfig{
			Policy: "hide",
		},
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Cache: CacheConfig{
			Backend:    "memory",
			MaxEntries: 64,
			TTL:        time.Hour,
		},
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
	}
}

// Load loads configuration from all sources in priority order.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	// Load from paths in order (later overrides earlier)
	for _, path := range m.getConfigPaths() {
		if err := m.loadFile(path); err != nil {
			if !os.IsNotExist(err) {
				return err
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}

	m.loadEnv()
	return nil
}

// getConfigPaths returns config file paths in priority order.
func (m *Manager) getConfigPaths() []string {
	var paths []string

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/hydroview/config.yaml")
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".hydroview", "config.yaml"))
	}

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".hydroview.yaml"))
	}

	return paths
}

// loadFile loads a single config file and merges it.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	m.merge(&partial)
	return nil
}

// merge merges non-zero values from src into config.
func (m *Manager) merge(src *Config) {
	if src.Data.Dir != "" {
		m.config.Data.Dir = src.Data.Dir
		// Subdirectories follow the root unless set explicitly.
		m.config.Data.SequencesDir = filepath.Join(src.Data.Dir, "sequences")
		m.config.Data.TelemetryDir = filepath.Join(src.Data.Dir, "telemetry")
	}
	if src.Data.SequencesDir != "" {
		m.config.Data.SequencesDir = src.Data.SequencesDir
	}
	if src.Data.TelemetryDir != "" {
		m.config.Data.TelemetryDir = src.Data.TelemetryDir
	}
	if src.Data.Timezone != "" {
		m.config.Data.Timezone = src.Data.Timezone
	}

	if src.Segment.Policy != "" {
		m.config.Segment.Policy = src.Segment.Policy
	}
	if src.Segment.ShowManufacturing {
		m.config.Segment.ShowManufacturing = true
	}

	if src.Server.Port != 0 {
		m.config.Server.Port = src.Server.Port
	}
	if src.Server.Host != "" {
		m.config.Server.Host = src.Server.Host
	}

	if src.Cache.Backend != "" {
		m.config.Cache.Backend = src.Cache.Backend
	}
	if src.Cache.MaxEntries != 0 {
		m.config.Cache.MaxEntries = src.Cache.MaxEntries
	}
	if src.Cache.TTL != 0 {
		m.config.Cache.TTL = src.Cache.TTL
	}
	if src.Cache.RedisAddress != "" {
		m.config.Cache.RedisAddress = src.Cache.RedisAddress
	}
	if src.Cache.RedisPassword != "" {
		m.config.Cache.RedisPassword = src.Cache.RedisPassword
	}
	if src.Cache.RedisDatabase != 0 {
		m.config.Cache.RedisDatabase = src.Cache.RedisDatabase
	}

	if src.S3.Region != "" {
		m.config.S3.Region = src.S3.Region
	}
	if src.S3.Bucket != "" {
		m.config.S3.Bucket = src.S3.Bucket
	}
	if src.S3.Prefix != "" {
		m.config.S3.Prefix = src.S3.Prefix
	}
	if src.S3.Endpoint != "" {
		m.config.S3.Endpoint = src.S3.Endpoint
	}

	if src.Telemetry.Enabled {
		m.config.Telemetry.Enabled = true
	}
	if src.Telemetry.Endpoint != "" {
		m.config.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() {
	if v := os.Getenv("HYDROVIEW_DATA_DIR"); v != "" {
		m.config.Data.Dir = v
		m.config.Data.SequencesDir = filepath.Join(v, "sequences")
		m.config.Data.TelemetryDir = filepath.Join(v, "telemetry")
	}
	if v := os.Getenv("HYDROVIEW_TIMEZONE"); v != "" {
		m.config.Data.Timezone = v
	}
	if v := os.Getenv("HYDROVIEW_POLICY"); v != "" {
		m.config.Segment.Policy = v
	}
	if v := os.Getenv("HYDROVIEW_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			m.config.Server.Port = port
		}
	}
	if v := os.Getenv("HYDROVIEW_CACHE_BACKEND"); v != "" {
		m.config.Cache.Backend = v
	}
	if v := os.Getenv("HYDROVIEW_REDIS_ADDRESS"); v != "" {
		m.config.Cache.RedisAddress = v
	}
	if v := os.Getenv("HYDROVIEW_S3_BUCKET"); v != "" {
		m.config.S3.Bucket = v
	}
	if v := os.Getenv("HYDROVIEW_OTLP_ENDPOINT"); v != "" {
		m.config.Telemetry.Endpoint = v
		m.config.Telemetry.Enabled = true
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Data.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: invalid timezone %q: %w", c.Data.Timezone, err)
	}
	return loc, nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the config file paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Save writes the current config to the user config file.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".hydroview")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0o644)
}

// Global instance
var (
	globalManager *Manager
	globalOnce    sync.Once
)

// Global returns the global configuration manager.
func Global() *Manager {
	globalOnce.Do(func() {
		globalManager = NewManager()
		globalManager.Load()
	})
	return globalManager
}
