// Package config loads application settings: defaults, then an optional YAML
// file, then environment overrides. A .env file is honored for local runs.
package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	strutil "bursa/pkg/platform/strings"
)

const (
	configPathEnv   = "SESSION_CONFIG"
	addrEnv         = "SESSION_ADDR"
	databasePathEnv = "SESSION_DB_PATH"
	planPathEnv     = "SESSION_PLAN_PATH"
)

// Config holds high-level settings required across the application.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// DatabasePath is the SQLite session file.
	DatabasePath string `yaml:"databasePath"`
	// CapacityPlanPath points at the JSON seat allocation; it is loaded at
	// import time to seed quotas and canonical program spellings.
	CapacityPlanPath string `yaml:"capacityPlanPath"`
	// FuzzyLimit caps fuzzy search results.
	FuzzyLimit int `yaml:"fuzzyLimit"`
	// DropDuplicates maps duplicate classifications ("identical",
	// "same_person_different_program", "different_people") that should drop
	// the second record instead of keeping both.
	DropDuplicates []string `yaml:"dropDuplicates"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides.
func Load() Config {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	cfg.DropDuplicates = strutil.DedupeAndTrim(cfg.DropDuplicates)
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(addrEnv); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(databasePathEnv); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv(planPathEnv); v != "" {
		c.CapacityPlanPath = v
	}
}

func defaultConfig() Config {
	return Config{
		Addr:             ":8080",
		DatabasePath:     "session.db",
		CapacityPlanPath: "capacity_plan.json",
		FuzzyLimit:       20,
	}
}
