package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/jengzang/watchdog-backend-go/internal/detection"
	"github.com/jengzang/watchdog-backend-go/internal/logging"
)

// Config 应用配置
type Config struct {
	ProjectName string `koanf:"project_name"`
	Port        string `koanf:"port"`
	DBPath      string `koanf:"db_path"`
	JWTSecret   string `koanf:"jwt_secret"`

	RateLimit RateLimitConfig  `koanf:"rate_limit"`
	Log       logging.Config   `koanf:"log"`
	Detection detection.Config `koanf:"detection"`
}

// RateLimitConfig limits requests per client IP
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"rps"`
	Burst             int     `koanf:"burst"`
}

// ConfigPathEnvVar points at an optional YAML config file
const ConfigPathEnvVar = "CONFIG_PATH"

// MinJWTSecretLength is the shortest admin signing secret accepted
const MinJWTSecretLength = 16

// placeholderJWTSecrets are sample values that must never sign admin tokens
var placeholderJWTSecrets = []string{
	"your-secret-key-change-in-production",
	"changeme",
	"secret",
}

func defaultConfig() *Config {
	return &Config{
		ProjectName: "watchdog",
		Port:        ":8080",
		DBPath:      "./data/watchdog.db",
		JWTSecret:   "",
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "json",
		},
		Detection: detection.DefaultConfig(),
	}
}

// envMappings maps environment variables onto config keys
var envMappings = map[string]string{
	"project_name":     "project_name",
	"port":             "port",
	"db_path":          "db_path",
	"jwt_secret":       "jwt_secret",
	"log_level":        "log.level",
	"log_format":       "log.format",
	"rate_limit_rps":   "rate_limit.rps",
	"rate_limit_burst": "rate_limit.burst",

	"detection_split_radius_m":          "detection.split_radius_m",
	"detection_path_loss_exponent":      "detection.path_loss_exponent",
	"detection_recency_half_life":       "detection.recency_half_life",
	"detection_max_iterations":          "detection.max_iterations",
	"detection_saturation_radius_m":     "detection.saturation_radius_m",
	"detection_distance_weight":         "detection.distance_weight",
	"detection_parameter_weight":        "detection.parameter_weight",
	"detection_parameter_saturation":    "detection.parameter_saturation",
	"detection_unknown_identity_weight": "detection.unknown_identity_weight",
	"detection_power_weight":            "detection.power_weight",
	"detection_reference_power_dbm":     "detection.reference_power_dbm",
	"detection_power_tolerance_db":      "detection.power_tolerance_db",
	"detection_power_saturation_db":     "detection.power_saturation_db",
	"detection_similar_radius_m":        "detection.similar_radius_m",
	"detection_max_plmn_edit_distance":  "detection.max_plmn_edit_distance",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	// Unknown variables are ignored
	return ""
}

// Load 加载配置: defaults, then the optional YAML file, then environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port must not be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must not be empty"))
	}
	if err := validateJWTSecret(c.JWTSecret); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must be >= 0"))
	}
	if err := c.Detection.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detection: %w", err))
	}
	return errors.Join(errs...)
}

// ShutdownTimeout bounds graceful HTTP shutdown
const ShutdownTimeout = 10 * time.Second

// AdminEnabled reports whether a signing secret is configured. Without one the admin API
// refuses every request.
func (c *Config) AdminEnabled() bool {
	return c.JWTSecret != ""
}

// validateJWTSecret accepts an unset secret, which disables the admin API
func validateJWTSecret(secret string) error {
	if secret == "" {
		return nil
	}
	for _, placeholder := range placeholderJWTSecrets {
		if strings.EqualFold(secret, placeholder) {
			return errors.New("jwt_secret is a placeholder value; set a real secret")
		}
	}
	if len(secret) < MinJWTSecretLength {
		return fmt.Errorf("jwt_secret must be at least %d characters", MinJWTSecretLength)
	}
	return nil
}
