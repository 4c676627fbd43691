package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EngineLocal  = "local"
	EngineRemote = "remote"

	CatalogFile     = "file"
	CatalogPostgres = "postgres"
)

type Config struct {
	Autosave struct {
		Debounce time.Duration `yaml:"debounce"`
	} `yaml:"autosave"`
	Notifications struct {
		Duration        time.Duration `yaml:"duration"`
		ContentDuration time.Duration `yaml:"content_duration"`
	} `yaml:"notifications"`
	Content struct {
		Languages   []string `yaml:"languages"`
		AutoExtract bool     `yaml:"auto_extract"`
	} `yaml:"content"`
	Engine struct {
		Mode                  string        `yaml:"mode"`
		OutputDir             string        `yaml:"output_dir"`
		RemoteURL             string        `yaml:"remote_url"`
		Timeout               time.Duration `yaml:"timeout"`
		ThumbnailWidth        int           `yaml:"thumbnail_width"`
		ImageFetchConcurrency int           `yaml:"image_fetch_concurrency"`
		OCR                   bool          `yaml:"ocr"`
	} `yaml:"engine"`
	Catalog struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
		DSN    string `yaml:"dsn"`
	} `yaml:"catalog"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Watch struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"watch"`
}

func Default() *Config {
	var cfg Config
	cfg.Autosave.Debounce = 3 * time.Second
	cfg.Notifications.Duration = 3 * time.Second
	cfg.Notifications.ContentDuration = 4 * time.Second
	cfg.Content.Languages = []string{"eng", "ind"}
	cfg.Content.AutoExtract = true
	cfg.Engine.Mode = EngineLocal
	cfg.Engine.RemoteURL = "http://localhost:8765"
	cfg.Engine.Timeout = 60 * time.Second
	cfg.Engine.ThumbnailWidth = 160
	cfg.Engine.ImageFetchConcurrency = 4
	cfg.Engine.OCR = true
	cfg.Catalog.Driver = CatalogFile
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Watch.Enabled = true
	return &cfg
}

// DefaultPath is $XDG_CONFIG_HOME/pagedesk/config.yaml, falling back to
// ~/.config.
func DefaultPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "pagedesk", "config.yaml"), nil
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Engine.Mode {
	case EngineLocal, EngineRemote:
	default:
		return fmt.Errorf("engine.mode must be %q or %q, got %q", EngineLocal, EngineRemote, c.Engine.Mode)
	}
	switch c.Catalog.Driver {
	case CatalogFile:
	case CatalogPostgres:
		if c.Catalog.DSN == "" {
			return errors.New("catalog.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("catalog.driver must be %q or %q, got %q", CatalogFile, CatalogPostgres, c.Catalog.Driver)
	}
	if c.Autosave.Debounce <= 0 {
		return errors.New("autosave.debounce must be positive")
	}
	if c.Notifications.Duration <= 0 || c.Notifications.ContentDuration <= 0 {
		return errors.New("notification durations must be positive")
	}
	if c.Engine.Timeout <= 0 {
		return errors.New("engine.timeout must be positive")
	}
	if c.Engine.ImageFetchConcurrency < 1 {
		return errors.New("engine.image_fetch_concurrency must be at least 1")
	}
	if len(c.Content.Languages) == 0 {
		return errors.New("content.languages must not be empty")
	}
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
