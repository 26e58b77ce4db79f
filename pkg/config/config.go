package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// OCR providers accepted in configuration.
const (
	OCRProviderTesseract = "tesseract"
	OCRProviderVision    = "gcp_vision"
	OCRProviderNone      = "none"
)

// Meal oracle providers accepted in configuration.
const (
	OracleProviderClassifier = "classifier"
	OracleProviderOpenAI     = "openai"
	OracleProviderNone       = "none"
)

// Config holds all configuration for nutriscan-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// MaxUploadMB caps label photo uploads.
	MaxUploadMB int64 `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB" env-default:"10"`
	// MaxImageMegapixels caps the decoded size of a label photo.
	MaxImageMegapixels int `yaml:"max_image_megapixels" env:"MAX_IMAGE_MEGAPIXELS" env-default:"24"`

	// Health-data store (PostgreSQL). An empty host keeps profiles in memory.
	Database DatabaseConfig `yaml:"database"`

	// Product lookup cache. An empty host disables caching.
	Redis RedisConfig `yaml:"redis"`

	ProductLookup ProductLookupConfig `yaml:"product_lookup"`
	OCR           OCRConfig           `yaml:"ocr"`
	MealOracle    MealOracleConfig    `yaml:"meal_oracle"`
	ReferenceData ReferenceDataConfig `yaml:"reference_data"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:""`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"nutriscan"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"nutriscan"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// IsConfigured reports whether a PostgreSQL host was given.
func (c *DatabaseConfig) IsConfigured() bool {
	return c.Host != ""
}

// ConnectionString returns a PostgreSQL connection URL.
func (c *DatabaseConfig) ConnectionString() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig holds Redis configuration for the product lookup cache.
type RedisConfig struct {
	Host     string        `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int           `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string        `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL" env-default:"24h"`
}

// Addr returns host:port, rewritten for Docker when needed.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port)
}

// ProductLookupConfig configures the external product database client.
type ProductLookupConfig struct {
	BaseURL          string        `yaml:"base_url" env:"PRODUCT_LOOKUP_BASE_URL" env-default:"https://world.openfoodfacts.org"`
	UserAgent        string        `yaml:"user_agent" env:"PRODUCT_LOOKUP_USER_AGENT" env-default:"nutriscan-engine/1.0"`
	Timeout          time.Duration `yaml:"timeout" env:"PRODUCT_LOOKUP_TIMEOUT" env-default:"10s"`
	MinBarcodeLength int           `yaml:"min_barcode_length" env:"PRODUCT_LOOKUP_MIN_BARCODE_LENGTH" env-default:"8"`
	// Alternatives toggles the healthier-alternatives search on barcode analyses.
	Alternatives bool `yaml:"alternatives" env:"PRODUCT_LOOKUP_ALTERNATIVES" env-default:"true"`
}

// OCRConfig selects and configures the text recognition engine.
type OCRConfig struct {
	Provider      string        `yaml:"provider" env:"OCR_PROVIDER" env-default:"tesseract"`
	ServiceURL    string        `yaml:"service_url" env:"OCR_SERVICE_URL" env-default:"http://localhost:8884"`
	Timeout       time.Duration `yaml:"timeout" env:"OCR_TIMEOUT" env-default:"30s"`
	MaxConcurrent int           `yaml:"max_concurrent" env:"OCR_MAX_CONCURRENT" env-default:"4"`
	// CredentialsFile is the service account JSON used by the Cloud Vision engine.
	// Empty means application default credentials.
	CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS" env-default:""`
}

// MealOracleConfig selects and configures the meal recommendation oracle.
type MealOracleConfig struct {
	Provider string        `yaml:"provider" env:"MEAL_ORACLE_PROVIDER" env-default:"classifier"`
	URL      string        `yaml:"url" env:"MEAL_ORACLE_URL" env-default:"http://localhost:5000"`
	Model    string        `yaml:"model" env:"MEAL_ORACLE_MODEL" env-default:"gpt-4o-mini"`
	APIKey   string        `yaml:"-" env:"MEAL_ORACLE_API_KEY"` // Secret - not in YAML
	Timeout  time.Duration `yaml:"timeout" env:"MEAL_ORACLE_TIMEOUT" env-default:"15s"`

	// Circuit breaker around the oracle
	BreakerThreshold  int           `yaml:"breaker_threshold" env:"MEAL_ORACLE_BREAKER_THRESHOLD" env-default:"3"`
	BreakerResetAfter time.Duration `yaml:"breaker_reset_after" env:"MEAL_ORACLE_BREAKER_RESET_AFTER" env-default:"30s"`
}

// ReferenceDataConfig optionally replaces the embedded reference datasets with files on disk.
type ReferenceDataConfig struct {
	NutrientLimits string `yaml:"nutrient_limits" env:"REFERENCE_NUTRIENT_LIMITS" env-default:""`
	Allergens      string `yaml:"allergens" env:"REFERENCE_ALLERGENS" env-default:""`
	Additives      string `yaml:"additives" env:"REFERENCE_ADDITIVES" env-default:""`
	Diseases       string `yaml:"diseases" env:"REFERENCE_DISEASES" env-default:""`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit config path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// Validate checks provider names and durations.
func (c *Config) Validate() error {
	if !slices.Contains([]string{OCRProviderTesseract, OCRProviderVision, OCRProviderNone}, c.OCR.Provider) {
		return fmt.Errorf("unknown ocr provider %q", c.OCR.Provider)
	}
	if !slices.Contains([]string{OracleProviderClassifier, OracleProviderOpenAI, OracleProviderNone}, c.MealOracle.Provider) {
		return fmt.Errorf("unknown meal_oracle provider %q", c.MealOracle.Provider)
	}
	if c.OCR.Provider == OCRProviderTesseract && c.OCR.ServiceURL == "" {
		return fmt.Errorf("ocr service_url is required for the tesseract provider")
	}
	if c.MealOracle.Provider != OracleProviderNone && c.MealOracle.URL == "" {
		return fmt.Errorf("meal_oracle url is required for the %s provider", c.MealOracle.Provider)
	}

	for name, d := range map[string]time.Duration{
		"product_lookup.timeout":          c.ProductLookup.Timeout,
		"ocr.timeout":                     c.OCR.Timeout,
		"meal_oracle.timeout":             c.MealOracle.Timeout,
		"meal_oracle.breaker_reset_after": c.MealOracle.BreakerResetAfter,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Redis.Host != "" && c.Redis.CacheTTL <= 0 {
		return fmt.Errorf("redis.cache_ttl must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive")
	}
	if c.MaxImageMegapixels <= 0 {
		return fmt.Errorf("max_image_megapixels must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs with production logging.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
