package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// App Settings
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// Scan Etiquette
	Workers  int     `envconfig:"MAX_WORKERS" default:"1"`
	ScanRate float64 `envconfig:"SCAN_RATE" default:"2"` // targets per second across all workers

	// Network Logic
	ProbeTimeout time.Duration `envconfig:"PROBE_TIMEOUT" default:"5s"`
	IPTimeout    time.Duration `envconfig:"IP_TIMEOUT" default:"5s"`

	// Optional Enrichment
	GeoIPPath string `envconfig:"GEOIP_PATH" default:""`
}

// Load reads .env and processes environment variables
func Load() *Config {
	// Silently ignore if .env is missing (production might use real ENV vars)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Configuration Error: %v", err)
	}
	return &cfg
}
