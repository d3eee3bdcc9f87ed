package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all runtime configuration.
type Config struct {
	// HTTP surface
	ListenAddr string `koanf:"listen_addr"`
	PublicURL  string `koanf:"public_url"`
	PublicDir  string `koanf:"public_dir"` // "" = no static site
	TrustProxy bool   `koanf:"trust_proxy"`

	// Content and classification
	ReasonsFile string `koanf:"reasons_file"`
	RulesFile   string `koanf:"rules_file"` // "" = built-in rules
	GeoIPDB     string `koanf:"geoip_db"`   // "" = every country Unknown

	// Limits
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute"`
	BotLimit           int           `koanf:"bot_limit"`
	BotWindow          time.Duration `koanf:"bot_window"`

	// State
	DataDir                  string        `koanf:"data_dir"`
	StorageBackend           string        `koanf:"storage_backend"`
	ActivityRetention        time.Duration `koanf:"activity_retention"`
	ActivityPruneProbability float64       `koanf:"activity_prune_probability"`
	JanitorInterval          time.Duration `koanf:"janitor_interval"`

	// Operational
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
	LogAnonymizeIPs bool   `koanf:"log_anonymize_ips"`
	MetricsAddr     string `koanf:"metrics_addr"` // "" = disabled
	MetricsEnabled  bool   `koanf:"metrics_enabled"`

	// BuildVersion is set by the binary, not by configuration.
	BuildVersion string `koanf:"-"`
}

// defaults is the lowest-priority layer.
var defaults = map[string]any{
	"listen_addr":                ":3000",
	"public_url":                 "",
	"public_dir":                 "",
	"trust_proxy":                true,
	"reasons_file":               "reasons.json",
	"rules_file":                 "",
	"geoip_db":                   "",
	"rate_limit_per_minute":      120,
	"bot_limit":                  5,
	"bot_window":                 60 * time.Second,
	"data_dir":                   "data",
	"storage_backend":            "file",
	"activity_retention":         14 * 24 * time.Hour,
	"activity_prune_probability": 0.01,
	"janitor_interval":           time.Minute,
	"log_level":                  "info",
	"log_format":                 "json",
	"log_anonymize_ips":          false,
	"metrics_addr":               ":9090",
	"metrics_enabled":            true,
}

// Load reads configuration from (lowest → highest priority):
//  1. Built-in defaults
//  2. YAML file at CONFIG_FILE env var path (if set)
//  3. Environment variables, including any set by a .env file in the
//     working directory (real environment variables win over .env)
func Load() (*Config, error) {
	// Optional; absent .env is the normal case.
	_ = godotenv.Load()

	k := koanf.New(".")

	// Layer 1: defaults.
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	// Layer 2: optional YAML file.
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", cfgFile, err)
		}
	}

	// Layer 3: environment variables.
	// Transform: "LISTEN_ADDR" → "listen_addr". Only known keys are taken so
	// unrelated variables (PATH, HOME, ...) never reach the config map.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, known := defaults[key]; !known {
			return ""
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	// Normalise string fields.
	cfg.LogLevel = strings.TrimSpace(strings.ToLower(cfg.LogLevel))
	cfg.LogFormat = strings.TrimSpace(strings.ToLower(cfg.LogFormat))
	cfg.StorageBackend = strings.TrimSpace(strings.ToLower(cfg.StorageBackend))
	cfg.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/")

	// Hosting platforms hand out a bare PORT; honour it unless LISTEN_ADDR
	// is set explicitly.
	if os.Getenv("LISTEN_ADDR") == "" {
		if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
			cfg.ListenAddr = ":" + port
		}
	}

	if !cfg.MetricsEnabled {
		cfg.MetricsAddr = ""
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []string

	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, "LISTEN_ADDR is required (e.g., :3000)")
	}
	if strings.TrimSpace(c.ReasonsFile) == "" {
		errs = append(errs, "REASONS_FILE is required (a .json or .yaml list of reasons)")
	}
	if c.PublicURL != "" {
		if u, err := url.Parse(c.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "PUBLIC_URL must be an absolute URL (e.g., https://naas.example.com)")
		}
	}
	if c.RateLimitPerMinute < 1 || c.RateLimitPerMinute > 100000 {
		errs = append(errs, "RATE_LIMIT_PER_MINUTE must be between 1 and 100000")
	}
	if c.BotLimit < 1 {
		errs = append(errs, "BOT_LIMIT must be at least 1")
	}
	if c.BotWindow < time.Second {
		errs = append(errs, "BOT_WINDOW must be at least 1s")
	}
	if c.ActivityRetention < time.Hour {
		errs = append(errs, "ACTIVITY_RETENTION must be at least 1h")
	}
	if c.ActivityPruneProbability < 0 || c.ActivityPruneProbability > 1 {
		errs = append(errs, "ACTIVITY_PRUNE_PROBABILITY must be between 0 and 1")
	}
	if c.JanitorInterval < time.Second {
		errs = append(errs, "JANITOR_INTERVAL must be at least 1s")
	}
	switch c.StorageBackend {
	case "file", "bolt":
	default:
		errs = append(errs, `STORAGE_BACKEND must be "file" or "bolt"`)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, `LOG_FORMAT must be "json" or "text"`)
	}

	// DataDir path sanitisation: reject traversal sequences and null bytes.
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, "DATA_DIR is required")
	}
	if strings.Contains(c.DataDir, "..") {
		errs = append(errs, `DATA_DIR must not contain ".." (directory traversal)`)
	}
	if strings.ContainsRune(c.DataDir, 0) {
		errs = append(errs, "DATA_DIR must not contain null bytes")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d configuration error(s):\n  - %s", len(errs), strings.Join(errs, "\n  - "))
	}
	return nil
}
