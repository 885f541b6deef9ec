package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Proxy daemon.
	Port          string `yaml:"port"`
	BackendAPIURL string `yaml:"backend_api_url"`
	StaticDir     string `yaml:"static_dir"`

	// Where the CLI reaches the proxy daemon.
	ProxyURL string `yaml:"proxy_url"`

	// External identity provider.
	AuthURL    string `yaml:"auth_url"`
	AuthAPIKey string `yaml:"auth_api_key"`

	// Managed backend (object storage + history table).
	ProjectURL    string `yaml:"project_url"`
	ProjectAPIKey string `yaml:"project_api_key"`
	StorageBucket string `yaml:"storage_bucket"`

	HistoryBackend string `yaml:"history_backend"` // "managed" or "sqlite"
	HistoryTable   string `yaml:"history_table"`
	DBPath         string `yaml:"db_path"`

	// Orphaned-image reconciliation sweep; disabled when the schedule is empty.
	SweepSchedule    string `yaml:"sweep_schedule"`
	SweepMinAgeHours int    `yaml:"sweep_min_age_hours"`

	CredentialsPath string `yaml:"credentials_path"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.Port, "PORT")
	envOverride(&cfg.BackendAPIURL, "BACKEND_API_URL")
	envOverride(&cfg.StaticDir, "STATIC_DIR")
	envOverride(&cfg.ProxyURL, "PROXY_URL")
	envOverride(&cfg.AuthURL, "AUTH_URL")
	envOverride(&cfg.AuthAPIKey, "AUTH_API_KEY")
	envOverride(&cfg.ProjectURL, "PROJECT_URL")
	envOverride(&cfg.ProjectAPIKey, "PROJECT_API_KEY")
	envOverride(&cfg.StorageBucket, "STORAGE_BUCKET")
	envOverride(&cfg.HistoryBackend, "HISTORY_BACKEND")
	envOverride(&cfg.HistoryTable, "HISTORY_TABLE")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.SweepSchedule, "SWEEP_SCHEDULE")
	envOverrideInt(&cfg.SweepMinAgeHours, "SWEEP_MIN_AGE_HOURS")
	envOverride(&cfg.CredentialsPath, "CREDENTIALS_PATH")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.BackendAPIURL == "" {
		cfg.BackendAPIURL = "http://localhost:8000"
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "./static"
	}
	if cfg.ProxyURL == "" {
		cfg.ProxyURL = "http://localhost:" + cfg.Port
	}
	if cfg.StorageBucket == "" {
		cfg.StorageBucket = "skin-images"
	}
	if cfg.HistoryBackend == "" {
		cfg.HistoryBackend = "managed"
	}
	if cfg.HistoryTable == "" {
		cfg.HistoryTable = "history"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./safeskin.db"
	}
	if cfg.SweepMinAgeHours == 0 {
		cfg.SweepMinAgeHours = 24
	}
	if cfg.CredentialsPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.CredentialsPath = filepath.Join(home, ".safeskin", "session.json")
	}

	return cfg
}

func envOverride(field *string, key string) {
	if val := os.Getenv(key); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, key string) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		}
	}
}
