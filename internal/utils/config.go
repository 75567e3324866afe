package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PaperSize holds paper dimensions in inches.
type PaperSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PostgresConfig describes the connection used by the audit recorder.
type PostgresConfig struct {
	// DSN, when set, is used as-is and the fields below are ignored.
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Config is the full service configuration loaded from YAML.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Limits struct {
		MaxBodyBytes int `yaml:"max_body_bytes"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		RedisHost   string `yaml:"redis_host"`
		RateLimitDB int    `yaml:"redis_rate_db"`
		AuditDB     int    `yaml:"redis_audit_db"`
	} `yaml:"cache"`

	RateLimiter struct {
		EnableUserLimiter bool          `yaml:"enable_user_limiter"`
		UserLimit         int           `yaml:"user_limit"`
		Interval          time.Duration `yaml:"interval"`
	} `yaml:"rate_limiter"`

	PDF struct {
		Engine          string               `yaml:"engine"`
		DefaultPaper    string               `yaml:"default_paper"`
		PaperSizes      map[string]PaperSize `yaml:"paper_sizes"`
		DefaultMargin   float64              `yaml:"default_margin"`
		TimeoutSecs     int                  `yaml:"timeout_secs"`
		ChromePath      string               `yaml:"chrome_path"`
		ChromeNoSandbox bool                 `yaml:"chrome_no_sandbox"`
		ChromePoolSize  int                  `yaml:"chrome_pool_size"`
		UserDataDir     string               `yaml:"user_data_dir"`
	} `yaml:"pdf"`

	Templates struct {
		Root          string `yaml:"root"`
		Extension     string `yaml:"extension"`
		ConfigDir     string `yaml:"config_dir"`
		DefaultConfig string `yaml:"default_config"`
		Cache         bool   `yaml:"cache"`
	} `yaml:"templates"`

	Output struct {
		Root string `yaml:"root"`
	} `yaml:"output"`

	Auth struct {
		UserEnv     string `yaml:"user_env"`
		PasswordEnv string `yaml:"password_env"`
		Realm       string `yaml:"realm"`
		EnvFile     string `yaml:"env_file"`
	} `yaml:"auth"`

	Audit struct {
		Backend    string         `yaml:"backend"`
		Postgres   PostgresConfig `yaml:"postgres"`
		RedisKey   string         `yaml:"redis_key"`
		MaxEntries int64          `yaml:"max_entries"`
	} `yaml:"audit"`
}

// Supported values for pdf.engine and audit.backend.
const (
	EngineChromedp = "chromedp"
	EngineRod      = "rod"

	AuditNone     = "none"
	AuditPostgres = "postgres"
	AuditRedis    = "redis"
)

// DefaultConfig returns the configuration used when no file overrides a value.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":8080"
	cfg.Limits.MaxBodyBytes = 4 * 1024 * 1024
	cfg.Logger.File = "logs/pdf-generator.log"
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 28
	cfg.Cache.RateLimitDB = 0
	cfg.Cache.AuditDB = 2
	cfg.RateLimiter.Interval = time.Minute
	cfg.PDF.Engine = EngineChromedp
	cfg.PDF.DefaultPaper = "A4"
	cfg.PDF.PaperSizes = map[string]PaperSize{
		"A4":     {Width: 8.27, Height: 11.69},
		"A5":     {Width: 5.83, Height: 8.27},
		"LETTER": {Width: 8.5, Height: 11},
		"LEGAL":  {Width: 8.5, Height: 14},
	}
	cfg.PDF.DefaultMargin = 0.4
	cfg.PDF.TimeoutSecs = 30
	cfg.Templates.Root = "templates"
	cfg.Templates.Extension = ".j2"
	cfg.Templates.ConfigDir = "."
	cfg.Templates.DefaultConfig = "render_config.json"
	cfg.Templates.Cache = true
	cfg.Output.Root = "output"
	cfg.Auth.UserEnv = "BASIC_USER"
	cfg.Auth.PasswordEnv = "BASIC_PASSWORD"
	cfg.Auth.Realm = "Login Required"
	cfg.Auth.EnvFile = ".env"
	cfg.Audit.Backend = AuditNone
	cfg.Audit.RedisKey = "pdf-generator:generations"
	cfg.Audit.MaxEntries = 1000
	return cfg
}

// LoadConfig loads the configuration from CONFIG_PATH (default config.yaml).
// A missing file is not an error: defaults are used instead.
func LoadConfig() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom loads and validates the configuration at path. It panics on
// unreadable or invalid configuration.
func LoadConfigFrom(path string) Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("config: parse %s: %v", path, err))
		}
	}

	if dsn := os.Getenv("AUDIT_POSTGRES_DSN"); dsn != "" {
		cfg.Audit.Postgres.DSN = dsn
	}
	normalizeConfig(&cfg)
	if err := validateConfig(cfg); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func normalizeConfig(cfg *Config) {
	cfg.PDF.Engine = strings.ToLower(strings.TrimSpace(cfg.PDF.Engine))
	cfg.PDF.DefaultPaper = strings.ToUpper(cfg.PDF.DefaultPaper)
	if len(cfg.PDF.PaperSizes) > 0 {
		sizes := make(map[string]PaperSize, len(cfg.PDF.PaperSizes))
		for name, size := range cfg.PDF.PaperSizes {
			sizes[strings.ToUpper(name)] = size
		}
		cfg.PDF.PaperSizes = sizes
	}
	if cfg.Templates.Extension != "" && !strings.HasPrefix(cfg.Templates.Extension, ".") {
		cfg.Templates.Extension = "." + cfg.Templates.Extension
	}
	cfg.Audit.Backend = strings.ToLower(strings.TrimSpace(cfg.Audit.Backend))
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = AuditNone
	}
}

func validateConfig(cfg Config) error {
	switch cfg.PDF.Engine {
	case EngineChromedp, EngineRod:
	default:
		return fmt.Errorf("unknown pdf.engine %q", cfg.PDF.Engine)
	}
	if _, ok := cfg.PDF.PaperSizes[cfg.PDF.DefaultPaper]; !ok {
		return fmt.Errorf("pdf.default_paper %q has no entry in pdf.paper_sizes", cfg.PDF.DefaultPaper)
	}
	if cfg.PDF.TimeoutSecs <= 0 {
		return errors.New("pdf.timeout_secs must be positive")
	}
	if cfg.PDF.ChromePoolSize < 0 {
		return errors.New("pdf.chrome_pool_size must not be negative")
	}
	if cfg.PDF.DefaultMargin < 0 || cfg.PDF.DefaultMargin > 2 {
		return errors.New("pdf.default_margin must be between 0 and 2 inches")
	}
	if cfg.Templates.Root == "" || cfg.Output.Root == "" {
		return errors.New("templates.root and output.root are required")
	}
	if cfg.Templates.Extension == "" {
		return errors.New("templates.extension is required")
	}
	if cfg.RateLimiter.UserLimit < 0 {
		return errors.New("rate_limiter.user_limit must not be negative")
	}
	if cfg.RateLimiter.UserLimit > 0 && cfg.RateLimiter.Interval <= 0 {
		return errors.New("rate_limiter.interval must be positive")
	}
	switch cfg.Audit.Backend {
	case AuditNone, AuditPostgres, AuditRedis:
	default:
		return fmt.Errorf("unknown audit.backend %q", cfg.Audit.Backend)
	}
	return nil
}
