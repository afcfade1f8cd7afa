// Package config loads the serving configuration of the identag CLI.
//
// The default file lives under os.UserConfigDir()/identag/:
//
//	~/Library/Application Support/identag/serve.yaml   (macOS)
//	~/.config/identag/serve.yaml                       (Linux)
//	%AppData%/identag/serve.yaml                       (Windows)
//
// IDENTAG_CONFIG_DIR overrides the directory. Relative paths inside the file
// are resolved against the directory holding the file.
//
//	model: models/model.msgpack        # or s3://bucket/prefix/model.msgpack
//	s3:
//	  region: us-east-1
//	  endpoint: http://localhost:9000  # optional, enables path-style
//	embeddings:
//	  token: embeddings/token.txt
//	  target: embeddings/target.txt
//	dictionary: dict/pos.tsv
//	abbreviations: dict/abbreviations.txt
//	cache:
//	  backend: badger                  # badger | sqlite | memory
//	  dir: cache
//	  tolerate_errors: false
//	log_level: info
//	addr: ":5000"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/identag/pkg/storage"
)

const (
	// appDir is the directory name under os.UserConfigDir().
	appDir = "identag"

	// serveFile is the default serving configuration file name.
	serveFile = "serve.yaml"

	// DirEnv overrides the configuration directory.
	DirEnv = "IDENTAG_CONFIG_DIR"

	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":5000"
)

// Cache backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid serve config")

// Serve is the serving configuration.
type Serve struct {
	Addr          string     `yaml:"addr,omitempty"`
	Model         string     `yaml:"model"`
	S3            S3         `yaml:"s3,omitempty"`
	Embeddings    Embeddings `yaml:"embeddings,omitempty"`
	Dictionary    string     `yaml:"dictionary,omitempty"`
	Abbreviations string     `yaml:"abbreviations,omitempty"`
	Cache         Cache      `yaml:"cache,omitempty"`
	LogLevel      string     `yaml:"log_level,omitempty"`

	// Path is the file the config was loaded from.
	Path string `yaml:"-"`
}

// S3 configures the client used for s3:// model locations.
type S3 struct {
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Embeddings names the two pretrained vector files.
type Embeddings struct {
	Token  string `yaml:"token,omitempty"`
	Target string `yaml:"target,omitempty"`
}

// Cache configures the tag cache.
type Cache struct {
	Backend        string `yaml:"backend,omitempty"`
	Dir            string `yaml:"dir,omitempty"`
	TolerateErrors bool   `yaml:"tolerate_errors,omitempty"`
}

// Dir returns the configuration directory.
func Dir() (string, error) {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir), nil
}

// DefaultPath returns the default serve.yaml location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, serveFile), nil
}

// Load reads, resolves and validates a serve config. An empty path selects
// DefaultPath.
func Load(path string) (*Serve, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read serve config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.Path = abs
	cfg.resolve(filepath.Dir(abs))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a serve config. Unknown keys are rejected.
func Parse(data []byte) (*Serve, error) {
	var cfg Serve
	dec := yaml.NewDecoder(bytes.NewReader(data), yaml.DisallowUnknownField())
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return &cfg, nil
}

func (c *Serve) resolve(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	if loc, err := storage.ParseLocation(c.Model); err == nil && !loc.IsS3() {
		c.Model = abs(c.Model)
	}
	c.Embeddings.Token = abs(c.Embeddings.Token)
	c.Embeddings.Target = abs(c.Embeddings.Target)
	c.Dictionary = abs(c.Dictionary)
	c.Abbreviations = abs(c.Abbreviations)
	if c.Cache.Dir == "" {
		c.Cache.Dir = "cache"
	}
	c.Cache.Dir = abs(c.Cache.Dir)
}

// Validate checks required keys and fills defaults.
func (c *Serve) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalid)
	}
	if _, err := storage.ParseLocation(c.Model); err != nil {
		return fmt.Errorf("%w: model: %w", ErrInvalid, err)
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	switch c.Cache.Backend {
	case "":
		c.Cache.Backend = BackendBadger
	case BackendBadger, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("%w: cache.backend %q (want badger, sqlite or memory)", ErrInvalid, c.Cache.Backend)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel. Empty means info.
func (c *Serve) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}
	return l, nil
}
