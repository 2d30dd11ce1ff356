package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "doxnav.yaml"

type Config struct {
	Database struct {
		Path string `yaml:"path" env:"DOXNAV_DB"`
	} `yaml:"database"`
	Scan struct {
		Roots   []string `yaml:"roots"`
		Workers int      `yaml:"workers" env:"DOXNAV_WORKERS"`
		Report  string   `yaml:"report" env:"DOXNAV_REPORT"`
	} `yaml:"scan"`
	Lint struct {
		MaxDepth     int    `yaml:"max_depth" env:"DOXNAV_MAX_DEPTH"`
		Extension    string `yaml:"extension" env:"DOXNAV_EXTENSION"`
		CheckTargets bool   `yaml:"check_targets" env:"DOXNAV_CHECK_TARGETS"`
	} `yaml:"lint"`
	Index struct {
		ChunkSize int `yaml:"chunk_size"`
	} `yaml:"index"`
	Watch struct {
		Debounce time.Duration `yaml:"debounce" env:"DOXNAV_WATCH_DEBOUNCE"`
	} `yaml:"watch"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	var cfg Config
	cfg.Database.Path = "doxnav.db"
	cfg.Scan.Roots = []string{"."}
	cfg.Scan.Workers = 4
	cfg.Scan.Report = ".doxnav/scan_report.json"
	cfg.Lint.MaxDepth = 8
	cfg.Lint.Extension = ".html"
	cfg.Lint.CheckTargets = true
	cfg.Index.ChunkSize = 250
	cfg.Watch.Debounce = 300 * time.Millisecond
	return &cfg
}

// LoadConfig applies, in order: defaults, .env, the YAML file at path and
// DOXNAV_* environment variables. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	// 3. Override with environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

var extensionPattern = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)

func (c *Config) Validate() error {
	errs := validation.Errors{
		"database": validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.Path, validation.Required),
		),
		"scan": validation.ValidateStruct(&c.Scan,
			validation.Field(&c.Scan.Workers, validation.Required, validation.Min(1), validation.Max(64)),
		),
		"lint": validation.ValidateStruct(&c.Lint,
			validation.Field(&c.Lint.MaxDepth, validation.Min(0)),
			validation.Field(&c.Lint.Extension, validation.Match(extensionPattern)),
		),
		"index": validation.ValidateStruct(&c.Index,
			validation.Field(&c.Index.ChunkSize, validation.Required, validation.Min(1)),
		),
		"watch": validation.ValidateStruct(&c.Watch,
			validation.Field(&c.Watch.Debounce, validation.Min(time.Duration(0))),
		),
	}
	return errs.Filter()
}
