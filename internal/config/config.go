package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"sms-decline-analysis/internal/model"
)

// Config is the project configuration
type Config struct {
	Input      string           `yaml:"input"`    // delivery report CSV
	Database   string           `yaml:"database"` // sqlite file for run history
	Output     OutputConfig     `yaml:"output"`
	Validation model.Validation `yaml:"validation"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
}

// OutputConfig controls where artifacts go
type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Charts *bool  `yaml:"charts"` // nil means enabled
}

// LogConfig logging settings
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ServerConfig HTTP API settings
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	RunTimeout string `yaml:"run_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads the configuration at path and fills unset fields with defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Input == "" {
		c.Input = "SmsDeliveryReport.csv"
	}
	if c.Database == "" {
		c.Database = "analysis.db"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "outputs"
	}
	if len(c.Validation.Segments) == 0 {
		c.Validation.Segments = append([]string(nil), model.KnownSegments...)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RunTimeout == "" {
		c.Server.RunTimeout = "5m"
	}
}

// ChartsEnabled reports whether PNG charts should be rendered.
func (c *Config) ChartsEnabled() bool {
	return c.Output.Charts == nil || *c.Output.Charts
}

// RunSpec builds the run parameters for input (the configured input when empty).
func (c *Config) RunSpec(input string) model.RunSpec {
	if input == "" {
		input = c.Input
	}
	return model.RunSpec{
		Input:      input,
		Validation: c.Validation,
		Export:     model.Export{Dir: c.Output.Dir, Charts: c.ChartsEnabled()},
		Timeout:    c.Server.RunTimeout,
	}
}
