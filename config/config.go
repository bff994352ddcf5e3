package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"newbusiness/models"
)

var envLoaded bool

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type DBConfig struct {
	Driver       string `json:"driver"` // postgres, sqlite
	Host         string `json:"host"`
	Port         string `json:"port"`
	User         string `json:"user"`
	Password     string `json:"-"`
	Name         string `json:"name"`
	SSLMode      string `json:"ssl_mode"`
	SQLitePath   string `json:"sqlite_path"`
	MaxIdleConns int    `json:"max_idle_conns"`
	MaxOpenConns int    `json:"max_open_conns"`
}

// SourceConfig holds the credentials and endpoints for one external system.
type SourceConfig struct {
	BaseURL          string `json:"base_url" yaml:"base_url"`
	APIKey           string `json:"-" yaml:"api_key"`
	WebhookSecret    string `json:"-" yaml:"webhook_secret"`
	RequireSignature bool   `json:"require_signature" yaml:"require_signature"`
	WebhookURL       string `json:"webhook_url" yaml:"webhook_url"` // receives our outbound notifications
}

type Config struct {
	Environment     string                         `json:"environment"`
	ServerPort      string                         `json:"server_port"`
	DB              DBConfig                       `json:"db"`
	JWTSecret       string                         `json:"-"`
	SystemPassword  string                         `json:"-"`
	SentryDSN       string                         `json:"-"`
	Redis           RedisConfig                    `json:"redis"`
	WebhookRateMax  int                            `json:"webhook_rate_max"`
	WebhookTimeout  time.Duration                  `json:"webhook_timeout"`
	UpstreamTimeout time.Duration                  `json:"upstream_timeout"`
	SyncInterval    time.Duration                  `json:"sync_interval"` // 0 disables scheduled pulls
	AllowedOrigins  []string                       `json:"allowed_origins"`
	Integrations    map[models.Source]SourceConfig `json:"integrations"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

// LoadConfig builds the configuration from the environment, overlaying an
// optional integrations YAML file named by INTEGRATIONS_FILE.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", "5000"),
		DB: DBConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Name:         getEnv("DB_NAME", "newbusiness"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			SQLitePath:   getEnv("DB_SQLITE_PATH", "newbusiness.db"),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		},
		JWTSecret:      getEnv("JWT_SECRET", ""),
		SystemPassword: getEnv("SYSTEM_USER_PASSWORD", ""),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		WebhookRateMax:  getEnvAsInt("WEBHOOK_RATE_LIMIT", 120),
		WebhookTimeout:  getEnvAsDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		UpstreamTimeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		SyncInterval:    getEnvAsDuration("SYNC_INTERVAL", 0),
		AllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		Integrations:    map[models.Source]SourceConfig{},
	}

	if path := getEnv("INTEGRATIONS_FILE", ""); path != "" {
		fileIntegrations, err := LoadIntegrationsFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load integrations file: %w", err)
		}
		for src, sc := range fileIntegrations {
			cfg.Integrations[src] = sc
		}
	}
	applyIntegrationEnv(cfg.Integrations)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logConfig(cfg)
	return cfg, nil
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if c.DB.Driver != "postgres" && c.DB.Driver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DB.Driver)
	}
	if c.DB.Driver == "postgres" && c.DB.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.WebhookTimeout <= 0 {
		c.WebhookTimeout = 10 * time.Second
	}
	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = 30 * time.Second
	}
	if c.Environment == "production" {
		for _, src := range models.Sources {
			if sc, ok := c.Integrations[src]; ok && sc.BaseURL != "" && sc.WebhookSecret == "" {
				return fmt.Errorf("%s webhook secret is required in production", src)
			}
		}
	}
	return nil
}

// Source returns the integration settings for src, or the zero value.
func (c *Config) Source(src models.Source) SourceConfig {
	return c.Integrations[src]
}

// applyIntegrationEnv overlays AGENCY_CRM_* and TV_PLANNER_* variables.
func applyIntegrationEnv(integrations map[models.Source]SourceConfig) {
	for _, src := range models.Sources {
		prefix := strings.ToUpper(strings.ReplaceAll(string(src), "-", "_")) + "_"
		sc := integrations[src]
		sc.BaseURL = getEnv(prefix+"API_URL", sc.BaseURL)
		sc.APIKey = getEnv(prefix+"API_KEY", sc.APIKey)
		sc.WebhookSecret = getEnv(prefix+"WEBHOOK_SECRET", sc.WebhookSecret)
		sc.WebhookURL = getEnv(prefix+"WEBHOOK_URL", sc.WebhookURL)
		sc.RequireSignature = getEnvAsBool(prefix+"REQUIRE_SIGNATURE", sc.RequireSignature)
		integrations[src] = sc
	}
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		log.Printf("⚠️ Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func logConfig(cfg *Config) {
	log.Println("🔧 Loaded configuration:")
	log.Printf("Environment: %s", cfg.Environment)
	log.Printf("Server Port: %s", cfg.ServerPort)
	if cfg.DB.Driver == "sqlite" {
		log.Printf("Database: sqlite %s", cfg.DB.SQLitePath)
	} else {
		log.Printf("Database: %s@%s:%s/%s", cfg.DB.User, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
	}
	for _, src := range models.Sources {
		sc := cfg.Integrations[src]
		log.Printf("Integration %s: url=%q api_key(%t) webhook_secret(%t)",
			src, sc.BaseURL, sc.APIKey != "", sc.WebhookSecret != "")
	}
}
