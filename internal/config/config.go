package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type ZoneConfig struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Pin             int    `json:"pin"`
	DefaultDuration int    `json:"default_duration"`
}

type Config struct {
	DBPath     string
	ConfigFile string
	LogLevel   zerolog.Level

	APIPort  int    `json:"api_port"`
	GPIOMode string `json:"gpio_mode"` // "pinctrl" or "sim"
	SafeMode bool   `json:"safe_mode"`

	// Relay electrical convention. The stock board is active-low.
	RelayActiveHigh bool `json:"relay_active_high"`

	// Seed values for system_settings; the live values are operator-editable
	// in the database afterwards.
	MaxConcurrentZones int `json:"max_concurrent_zones"`
	MinDurationMinutes int `json:"min_duration_minutes"`
	MaxDurationMinutes int `json:"max_duration_minutes"`
	StabilizationMs    int `json:"stabilization_ms"`

	InterZoneBufferSeconds int    `json:"inter_zone_buffer_seconds"`
	Timezone               string `json:"timezone"`

	Zones []ZoneConfig `json:"zones"`

	MQTTBroker string `json:"mqtt_broker"` // empty disables the event feed

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`

	NtfyTopic string `json:"ntfy_topic"`

	BootScriptFilePath string `json:"boot_script_file_path"`
	OSServicePath      string `json:"os_service_path"`
	MainServicePath    string `json:"main_service_path"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.DBPath, "db", "data/irrigation.db", "Path to SQLite database file")
	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to controller config file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	applyDefaults(&cfg)
	cfg.validate()
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.GPIOMode == "" {
		cfg.GPIOMode = "sim"
	}
	if cfg.MaxConcurrentZones == 0 {
		cfg.MaxConcurrentZones = 2
	}
	if cfg.MinDurationMinutes == 0 {
		cfg.MinDurationMinutes = 1
	}
	if cfg.MaxDurationMinutes == 0 {
		cfg.MaxDurationMinutes = 60
	}
	if cfg.StabilizationMs == 0 {
		cfg.StabilizationMs = 100
	}
	if cfg.InterZoneBufferSeconds == 0 {
		cfg.InterZoneBufferSeconds = 5
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) validate() {
	var problems []string

	if cfg.GPIOMode != "pinctrl" && cfg.GPIOMode != "sim" {
		problems = append(problems, fmt.Sprintf("gpio_mode must be \"pinctrl\" or \"sim\", got %q", cfg.GPIOMode))
	}
	if len(cfg.Zones) == 0 {
		problems = append(problems, "at least one zone must be configured")
	}
	if cfg.MinDurationMinutes < 1 || cfg.MaxDurationMinutes < cfg.MinDurationMinutes {
		problems = append(problems, fmt.Sprintf("invalid duration bounds [%d, %d]", cfg.MinDurationMinutes, cfg.MaxDurationMinutes))
	}
	if cfg.MaxConcurrentZones < 1 {
		problems = append(problems, "max_concurrent_zones must be at least 1")
	}

	usedIDs := map[int]string{}
	usedPins := map[int]string{}
	for _, z := range cfg.Zones {
		if z.Name == "" {
			problems = append(problems, fmt.Sprintf("zone %d has no name", z.ID))
		}
		if other, exists := usedIDs[z.ID]; exists {
			problems = append(problems, fmt.Sprintf("zones %q and %q both use id %d", z.Name, other, z.ID))
		} else {
			usedIDs[z.ID] = z.Name
		}
		if other, exists := usedPins[z.Pin]; exists {
			problems = append(problems, fmt.Sprintf("zones %q and %q both use pin %d", z.Name, other, z.Pin))
		} else {
			usedPins[z.Pin] = z.Name
		}
	}

	if len(problems) > 0 {
		panic("Invalid config: " + strings.Join(problems, "; "))
	}
}
