package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the resolved runtime configuration. Flags override file
// values, file values override defaults.
type AppConfig struct {
	Port        int
	Endpoint    string // ZMQ endpoint of the VR runtime's state stream
	ExportRoot  string
	Participant string
	SampleRate  float64 // Hz, per channel
	StaleAfter  time.Duration
	Simulate    bool
	SimRate     float64 // Hz, simulator update rate
	LogEvery    int
}

func Default() AppConfig {
	return AppConfig{
		Port:       8877,
		Endpoint:   "tcp://localhost:5556",
		ExportRoot: "data/raw",
		SampleRate: 90,
		StaleAfter: 500 * time.Millisecond,
		SimRate:    120,
		LogEvery:   100,
	}
}

func (c AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ExportRoot == "" {
		return fmt.Errorf("export root must not be empty")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %g", c.SampleRate)
	}
	if !c.Simulate && c.Endpoint == "" {
		return fmt.Errorf("endpoint must be set when not simulating")
	}
	return nil
}

// FileConfig is the YAML session config. Every field is optional; unset
// fields keep their current value when applied.
type FileConfig struct {
	Port         *int     `yaml:"port"`
	Endpoint     *string  `yaml:"endpoint"`
	ExportRoot   *string  `yaml:"export_root"`
	Participant  *string  `yaml:"participant"`
	SampleRateHz *float64 `yaml:"sample_rate_hz"`
	StaleAfterMs *int     `yaml:"stale_after_ms"`
	Simulate     *bool    `yaml:"simulate"`
	SimRateHz    *float64 `yaml:"sim_rate_hz"`
	LogEvery     *int     `yaml:"log_every"`
}

func LoadFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// Apply overlays the file values onto c.
func (c *AppConfig) Apply(fc FileConfig) {
	if fc.Port != nil {
		c.Port = *fc.Port
	}
	if fc.Endpoint != nil {
		c.Endpoint = *fc.Endpoint
	}
	if fc.ExportRoot != nil {
		c.ExportRoot = *fc.ExportRoot
	}
	if fc.Participant != nil {
		c.Participant = *fc.Participant
	}
	if fc.SampleRateHz != nil {
		c.SampleRate = *fc.SampleRateHz
	}
	if fc.StaleAfterMs != nil {
		c.StaleAfter = time.Duration(*fc.StaleAfterMs) * time.Millisecond
	}
	if fc.Simulate != nil {
		c.Simulate = *fc.Simulate
	}
	if fc.SimRateHz != nil {
		c.SimRate = *fc.SimRateHz
	}
	if fc.LogEvery != nil {
		c.LogEvery = *fc.LogEvery
	}
}
