package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the process configuration of the contact manager
type Config struct {
	Ownship         string
	MissionFile     string
	HTTPAddr        string
	NATSURL         string
	SubjectPrefix   string
	AppTick         float64
	RulesDir        string
	HotReload       bool
	DebounceMs      int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	StateTTL        time.Duration
	MaxEvents       int
	IndexCap        int
	LogLevel        string
	LogFormat       string
	ThresholdLookup string

	// LatOrigin and LonOrigin are nil when no geodetic origin is configured
	LatOrigin *float64
	LonOrigin *float64

	// Params are the engine's startup "key = value" lines
	Params []string
}

// Mission is the YAML mission file
type Mission struct {
	Ownship         string   `yaml:"ownship"`
	LatOrigin       *float64 `yaml:"lat_origin"`
	LonOrigin       *float64 `yaml:"lon_origin"`
	AppTick         float64  `yaml:"app_tick"`
	ThresholdLookup string   `yaml:"threshold_lookup"`
	Params          []string `yaml:"params"`
}

// Load reads the configuration from the environment and, when
// CONTACTMGR_CONFIG names one, the mission file. Environment values win.
func Load() (*Config, error) {
	cfg := &Config{
		MissionFile:   getEnv("CONTACTMGR_CONFIG", ""),
		HTTPAddr:      getEnv("CONTACTMGR_HTTP_ADDR", ":8080"),
		NATSURL:       getEnv("CONTACTMGR_NATS_URL", "nats://localhost:4222"),
		AppTick:       4,
		RulesDir:      getEnv("CONTACTMGR_RULES_DIR", ""),
		HotReload:     getEnvBool("CONTACTMGR_HOT_RELOAD", false),
		DebounceMs:    getEnvInt("CONTACTMGR_DEBOUNCE_MS", 1000),
		RedisAddr:     getEnv("CONTACTMGR_REDIS_ADDR", ""),
		RedisPassword: getEnv("CONTACTMGR_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("CONTACTMGR_REDIS_DB", 0),
		StateTTL:      time.Duration(getEnvInt("CONTACTMGR_STATE_TTL_SEC", 3600)) * time.Second,
		MaxEvents:     getEnvInt("CONTACTMGR_MAX_EVENTS", 1000),
		IndexCap:      getEnvInt("CONTACTMGR_INDEX_CAP", 1000),
		LogLevel:      getEnv("CONTACTMGR_LOG_LEVEL", "info"),
		LogFormat:     getEnv("CONTACTMGR_LOG_FORMAT", "json"),
	}

	if cfg.MissionFile != "" {
		mission, err := LoadMission(cfg.MissionFile)
		if err != nil {
			return nil, err
		}
		cfg.applyMission(mission)
	}

	// Environment overrides
	cfg.Ownship = getEnv("CONTACTMGR_OWNSHIP", cfg.Ownship)
	cfg.AppTick = getEnvFloat("CONTACTMGR_APP_TICK", cfg.AppTick)
	cfg.ThresholdLookup = getEnv("CONTACTMGR_THRESHOLD_LOOKUP", cfg.ThresholdLookup)
	if v, ok := lookupFloat("CONTACTMGR_LAT_ORIGIN"); ok {
		cfg.LatOrigin = &v
	}
	if v, ok := lookupFloat("CONTACTMGR_LON_ORIGIN"); ok {
		cfg.LonOrigin = &v
	}
	cfg.SubjectPrefix = getEnv("CONTACTMGR_SUBJECT_PREFIX", cfg.Ownship)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadMission parses a YAML mission file
func LoadMission(path string) (*Mission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mission file %s: %w", path, err)
	}

	var m Mission
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse mission file %s: %w", path, err)
	}
	return &m, nil
}

func (c *Config) applyMission(m *Mission) {
	c.Ownship = m.Ownship
	if m.AppTick > 0 {
		c.AppTick = m.AppTick
	}
	c.ThresholdLookup = m.ThresholdLookup
	c.LatOrigin = m.LatOrigin
	c.LonOrigin = m.LonOrigin
	c.Params = append(c.Params, m.Params...)
}

// Validate checks the configuration for values the process cannot run with
func (c *Config) Validate() error {
	if c.AppTick <= 0 {
		return fmt.Errorf("app_tick must be > 0, got %v", c.AppTick)
	}
	if (c.LatOrigin == nil) != (c.LonOrigin == nil) {
		return fmt.Errorf("lat_origin and lon_origin must be set together")
	}
	if c.MaxEvents <= 0 {
		return fmt.Errorf("max events must be > 0, got %d", c.MaxEvents)
	}
	return nil
}

// TickInterval returns the period of the engine iteration
func (c *Config) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.AppTick)
}

// HasOrigin reports whether a geodetic origin is configured
func (c *Config) HasOrigin() bool {
	return c.LatOrigin != nil && c.LonOrigin != nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as a float with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if v, ok := lookupFloat(key); ok {
		return v
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value
func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

func lookupFloat(key string) (float64, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
