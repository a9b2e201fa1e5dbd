package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		BaseURL string `yaml:"base_url"`
		WSURL   string `yaml:"ws_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"server"`
	Session struct {
		StorePath string `yaml:"store_path"`
	} `yaml:"session"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Connect struct {
		BackoffBase string `yaml:"backoff_base"`
		MaxAttempts int    `yaml:"max_attempts"`
	} `yaml:"connect"`
	Integrity struct {
		HiddenThreshold  string `yaml:"hidden_threshold"`
		BlurThreshold    string `yaml:"blur_threshold"`
		DevtoolsInterval string `yaml:"devtools_interval"`
	} `yaml:"integrity"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
