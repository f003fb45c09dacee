package common

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the release backend binaries.
// Values come from defaults, then an optional YAML file, then environment
// overrides. Command-line flags are applied on top by each binary.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	EnablePprof bool   `yaml:"pprof"`

	LogJSON  bool `yaml:"log_json"`
	LogDebug bool `yaml:"log_debug"`

	// AdminToken guards the admin routes (user:pass, the password part
	// optionally bcrypt-hashed). Empty disables admin authentication.
	AdminToken string `yaml:"admin_token"`

	// PublisherKeys lists the hex Ed25519 public keys allowed to submit
	// releases. Empty accepts any correctly signed submission.
	PublisherKeys []string `yaml:"publisher_keys"`

	// Services selects which services the multiservice binary runs.
	Services []string `yaml:"services"`

	Database  DatabaseConfig  `yaml:"database"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	IPFS      IPFSConfig      `yaml:"ipfs"`
	Download  DownloadConfig  `yaml:"download"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
	Redis     RedisConfig     `yaml:"redis"`
	Keys      KeysConfig      `yaml:"keys"`
}

// DatabaseConfig holds PostgreSQL connection settings. An empty host
// selects the in-memory store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ArtifactsConfig selects the artifact storage backend. A GCS bucket takes
// precedence over the local directory.
type ArtifactsConfig struct {
	Dir                string `yaml:"dir"`
	GCSBucket          string `yaml:"gcs_bucket"`
	GCSPrefix          string `yaml:"gcs_prefix"`
	GCSCredentialsFile string `yaml:"gcs_credentials_file"`
}

// IPFSConfig holds the IPFS node used for artifact distribution. An empty
// API URL disables IPFS entirely.
type IPFSConfig struct {
	APIURL  string `yaml:"api_url"`
	Gateway string `yaml:"gateway"`

	// PinSweepSchedule is a cron expression for the periodic re-pin of
	// published artifacts. Empty disables the sweep.
	PinSweepSchedule string `yaml:"pin_sweep_schedule"`
}

// DownloadConfig holds the public distribution settings.
type DownloadConfig struct {
	// BaseURL is the public base URL of the update server, used as the
	// web seed in minted magnet links.
	BaseURL string `yaml:"base_url"`

	// AllowedOrigins configures CORS for browser clients. Empty allows
	// any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Trackers are announced in minted magnet links.
	Trackers []string `yaml:"trackers"`
}

// FeedbackConfig bounds feedback submissions per client IP.
type FeedbackConfig struct {
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

// RedisConfig holds the Redis instance backing the shared rate limiter.
// An empty address selects the per-process limiter.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KeysConfig holds the signing key material.
type KeysConfig struct {
	// SigningKey is a hex-encoded Ed25519 private key. The update service
	// uses it to sign manifests, the publish CLI to sign submissions.
	SigningKey string `yaml:"signing_key"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr: ":8090",
		Services: []string{"registry", "update", "feedback"},
		Database: DatabaseConfig{
			Port:     5432,
			User:     "postgres",
			Database: "g3release",
			SSLMode:  "disable",
		},
		Artifacts: ArtifactsConfig{
			Dir: "artifacts",
		},
		IPFS: IPFSConfig{
			Gateway:          "https://ipfs.io",
			PinSweepSchedule: "@hourly",
		},
		Feedback: FeedbackConfig{
			RateLimit:  10,
			RateWindow: time.Hour,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// and environment overrides, in that order. A .env file in the working
// directory is loaded into the environment first when present.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides maps the secret-bearing environment variables onto the
// configuration so secrets can stay out of config files.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("G3RELEASE_ADMIN_TOKEN"); v != "" {
		c.AdminToken = v
	}
	if v := os.Getenv("G3RELEASE_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("G3RELEASE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("G3RELEASE_SIGNING_KEY"); v != "" {
		c.Keys.SigningKey = v
	}
}
