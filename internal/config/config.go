// Package config provides unified configuration loading for the deck pipeline.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/autoslides/internal/domain"
)

// Config holds all configuration for a pipeline run.
type Config struct {
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Report        ReportConfig        `yaml:"report"`
	Model         ModelConfig         `yaml:"model"`
	Database      DatabaseConfig      `yaml:"database"`
	Drive         DriveConfig         `yaml:"drive"`
	Cooldown      CooldownConfig      `yaml:"cooldown"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PipelineConfig holds batch orchestration settings.
type PipelineConfig struct {
	OutputDir     string           `yaml:"output_dir"`
	DateRange     domain.DateRange `yaml:"date_range"`
	Scale         float64          `yaml:"scale"`
	Cooldown      time.Duration    `yaml:"cooldown"`
	Workers       int              `yaml:"workers"`
	SkipSlides    []int            `yaml:"skip_slides"`
	SummaryMode   string           `yaml:"summary_mode"`   // strict or tolerant
	OverlayPolicy string           `yaml:"overlay_policy"` // replace or reject
	Summarize     bool             `yaml:"summarize"`
	Publish       bool             `yaml:"publish"`
}

// ReportConfig holds dashboard export settings.
type ReportConfig struct {
	Endpoint    string            `yaml:"endpoint"`
	CookiesFile string            `yaml:"cookies_file"`
	ReportID    string            `yaml:"report_id"`
	ReportName  string            `yaml:"report_name"`
	Referer     string            `yaml:"referer"`
	Width       int               `yaml:"width"`
	Height      int               `yaml:"height"`
	PageWidth   int               `yaml:"page_width"`
	PageHeight  int               `yaml:"page_height"`
	Pages       []ReportPage      `yaml:"pages"`
	Filters     ReportFilters     `yaml:"filters"`
	Headers     map[string]string `yaml:"headers"`
	Timeout     time.Duration     `yaml:"timeout"`
	MaxRetries  int               `yaml:"max_retries"`
}

// ReportPage is one dashboard page included in the export.
type ReportPage struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ReportFilters names the dashboard controls the export filters on.
type ReportFilters struct {
	BrandComponent   string `yaml:"brand_component"`
	BrandConcept     string `yaml:"brand_concept"`
	BrandField       string `yaml:"brand_field"`
	CountryComponent string `yaml:"country_component"`
	CountryConcept   string `yaml:"country_concept"`
	CountryField     string `yaml:"country_field"`
	DateComponent    string `yaml:"date_component"`
}

// ModelConfig holds generative model settings.
type ModelConfig struct {
	Provider string        `yaml:"provider"` // gemini, openrouter, openai or anthropic
	Name     string        `yaml:"name"`
	BaseURL  string        `yaml:"base_url"` // API root; the gemini SDK appends the version
	Timeout  time.Duration `yaml:"timeout"`
	APIKey   string        `yaml:"-"`
}

// DatabaseConfig holds configuration store settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	Table    string         `yaml:"table"`
	Ventures []string       `yaml:"ventures"`
	Brands   []string       `yaml:"brands"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"-"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DriveConfig holds cloud storage settings.
type DriveConfig struct {
	CredentialsFile   string `yaml:"credentials_file"`
	VentureSubfolders bool   `yaml:"venture_subfolders"`
	DryRun            bool   `yaml:"dry_run"`
}

// CooldownConfig holds report-fetch throttling settings.
type CooldownConfig struct {
	Driver string      `yaml:"driver"` // memory or redis
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies .env and environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration matching the monthly marketing deck.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			OutputDir:     "Temp",
			Scale:         1.0,
			Cooldown:      2 * time.Second,
			Workers:       1,
			SkipSlides:    []int{1, 5, 8},
			SummaryMode:   "strict",
			OverlayPolicy: "replace",
			Summarize:     true,
			Publish:       true,
		},
		Report: ReportConfig{
			Endpoint:    "https://lookerstudio.google.com/getPdf?appVersion=20250519_0000",
			CookiesFile: "cookies.json",
			ReportID:    "527b536c-e3ab-44ba-918a-9bc7fb639145",
			ReportName:  "Marketing_performance_testing",
			Referer:     "https://lookerstudio.google.com/reporting/527b536c-e3ab-44ba-918a-9bc7fb639145/page/p_lfee22gzrd/edit",
			Width:       1200,
			Height:      900,
			PageWidth:   2000,
			PageHeight:  1125,
			Pages:       defaultReportPages(),
			Filters: ReportFilters{
				BrandComponent:   "cd-c7bvegnbsd",
				BrandConcept:     "qt_ejrmavxtrd",
				BrandField:       "_brand_name_",
				CountryComponent: "cd-d2fvegnbsd",
				CountryConcept:   "qt_i7rsf6ytrd",
				CountryField:     "_country_code_",
				DateComponent:    "cd-augvegnbsd",
			},
			Timeout:    2 * time.Minute,
			MaxRetries: 2,
		},
		Model: ModelConfig{
			Provider: "gemini",
			Name:     "gemini-2.5-flash",
			Timeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "autoslides.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
			Table: "dim_automation_deck_config",
		},
		Drive: DriveConfig{
			CredentialsFile: "key.json",
		},
		Cooldown: CooldownConfig{
			Driver: "memory",
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "autoslides:report-fetch",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

func defaultReportPages() []ReportPage {
	return []ReportPage{
		{ID: "p_elblpxchtd", Name: "OPEN SLIDE"},
		{ID: "p_fl86z34isd", Name: "YTD MoM Performance"},
		{ID: "p_lfee22gzrd", Name: "Monthly Performance Overview"},
		{ID: "p_bh6r1rhhtd", Name: "Monthly Performance Details"},
		{ID: "p_muuxu3chtd", Name: "OFFSITE SLIDE"},
		{ID: "p_suznq25gsd", Name: "Facebook CPAS - Shopee"},
		{ID: "p_zrcvvdihtd", Name: "Facebook CPAS - Lazada"},
		{ID: "p_15lmn5chtd", Name: "ONSITE SLIDE"},
		{ID: "p_us2mw77gsd", Name: "Lazada Sponsored Discovery"},
		{ID: "p_ykr8xr8gsd", Name: "Lazada Sponsored Discovery - Keyword"},
		{ID: "p_626t62ihtd", Name: "Lazada Sponsored Affiliate"},
		{ID: "p_nyb2wbfitd", Name: "Lazada Sponsored Store"},
		{ID: "p_addj7ygitd", Name: "Lazada Sponsored Max"},
		{ID: "p_mygp934isd", Name: "Shopee Ads"},
		{ID: "p_regvu4gitd", Name: "Shopee Ads - Keywords"},
		{ID: "p_cf9rbohitd", Name: "Shopee Live Ads"},
		{ID: "p_c1y6k8hitd", Name: "Shopee Affiliate (AMS)"},
		{ID: "p_ff7j5miitd", Name: "Shopee Search Brand Ads"},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Pipeline.OutputDir == "" {
		return domain.ConfigError("pipeline.output_dir is required", nil)
	}

	if !domain.ValidScale(c.Pipeline.Scale) {
		return domain.ConfigError(fmt.Sprintf("pipeline.scale must be a finite number in (0, %v], got %v", domain.MaxRenderScale, c.Pipeline.Scale), nil)
	}

	if c.Pipeline.Workers < 1 {
		return domain.ConfigError(fmt.Sprintf("pipeline.workers must be >= 1, got %d", c.Pipeline.Workers), nil)
	}

	if c.Pipeline.Cooldown < 0 {
		return domain.ConfigError("pipeline.cooldown must not be negative", nil)
	}

	for _, n := range c.Pipeline.SkipSlides {
		if n < 1 {
			return domain.ConfigError(fmt.Sprintf("pipeline.skip_slides uses 1-based numbers, got %d", n), nil)
		}
	}

	if c.Pipeline.SummaryMode != "strict" && c.Pipeline.SummaryMode != "tolerant" {
		return domain.ConfigError(fmt.Sprintf("invalid summary mode: %s", c.Pipeline.SummaryMode), nil)
	}

	if c.Pipeline.OverlayPolicy != "replace" && c.Pipeline.OverlayPolicy != "reject" {
		return domain.ConfigError(fmt.Sprintf("invalid overlay policy: %s", c.Pipeline.OverlayPolicy), nil)
	}

	if c.Pipeline.DateRange.Start != "" || c.Pipeline.DateRange.End != "" {
		if err := c.Pipeline.DateRange.Validate(); err != nil {
			return err
		}
	}

	switch c.Model.Provider {
	case "gemini", "openrouter", "openai", "anthropic":
	default:
		return domain.ConfigError(fmt.Sprintf("invalid model provider: %s", c.Model.Provider), nil)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return domain.ConfigError(fmt.Sprintf("invalid database driver: %s", c.Database.Driver), nil)
	}

	if c.Cooldown.Driver != "memory" && c.Cooldown.Driver != "redis" {
		return domain.ConfigError(fmt.Sprintf("invalid cooldown driver: %s", c.Cooldown.Driver), nil)
	}

	if len(c.Report.Pages) == 0 {
		return domain.ConfigError("report.pages must list at least one page", nil)
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// ModelAPIKeyEnv returns the environment variable holding the model API key.
func (c *Config) ModelAPIKeyEnv() string {
	switch c.Model.Provider {
	case "openrouter":
		return "OPENROUTER_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// RequireModelAPIKey returns the model API key or a config error when unset.
func (c *Config) RequireModelAPIKey() (string, error) {
	if c.Model.APIKey == "" {
		return "", domain.ConfigError(fmt.Sprintf("%s environment variable is not set", c.ModelAPIKeyEnv()), nil)
	}
	return c.Model.APIKey, nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUTOSLIDES_OUTPUT_DIR"); v != "" {
		cfg.Pipeline.OutputDir = v
	}

	if v := os.Getenv("AUTOSLIDES_START_DATE"); v != "" {
		cfg.Pipeline.DateRange.Start = v
	}

	if v := os.Getenv("AUTOSLIDES_END_DATE"); v != "" {
		cfg.Pipeline.DateRange.End = v
	}

	if v := os.Getenv("AUTOSLIDES_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}

	if v := os.Getenv("AUTOSLIDES_SKIP_SLIDES"); v != "" {
		if skips, err := ParseSlideList(v); err == nil {
			cfg.Pipeline.SkipSlides = skips
		}
	}

	if v := os.Getenv("COOKIES_FILE"); v != "" {
		cfg.Report.CookiesFile = v
	}

	if v := os.Getenv("MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Model.Name = v
	}

	cfg.Model.APIKey = os.Getenv(cfg.ModelAPIKeyEnv())

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Database.Postgres.DSN = v
	}

	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		cfg.Drive.CredentialsFile = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cooldown.Driver = "redis"
		cfg.Cooldown.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cooldown.Redis.Password = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ParseSlideList parses a comma separated list of 1-based slide numbers.
func ParseSlideList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid slide number %q: %w", p, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("slide numbers start at 1, got %d", n)
		}
		out = append(out, n)
	}
	return out, nil
}
