// internal/config/config.go
//
// This package handles configuration and the .ideaboard directory structure.
// Every project that uses ideaboard gets a .ideaboard/ folder created in its root.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

const (
	// BoardDir is the name of the directory we create in each project
	BoardDir = ".ideaboard"

	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"

	defaultPipeline    = "Overview"
	defaultStorePath   = "ideas.json"
	defaultRedisAddr   = "127.0.0.1:6379"
	defaultRedisPrefix = "ideaboard"
	defaultModel       = "gemini-1.5-flash"
	defaultAPIKeyEnv   = "GEMINI_API_KEY"
	defaultMaxAttempts = 3
)

const defaultProjectConfigYAML = `# ideaboard project configuration
version: 1

board:
  # Project scope used when subscribing to the idea store.
  project: default
  # Pipeline shown on launch. Overview is the triage board.
  default_pipeline: Overview

pipelines:
  # Optional YAML registry replacing the built-in stage lists.
  # file: pipelines.yaml

store:
  # memory, file or redis
  backend: file
  path: data/ideas.json
  redis:
    address: 127.0.0.1:6379
    db: 0
    key_prefix: ideaboard

suggest:
  model: gemini-1.5-flash
  api_key_env: GEMINI_API_KEY
  max_attempts: 3
`

// BoardConfig captures board preferences.
type BoardConfig struct {
	Project         string `yaml:"project"`
	DefaultPipeline string `yaml:"default_pipeline"`
}

// PipelinesConfig points at an optional registry override.
type PipelinesConfig struct {
	File string `yaml:"file,omitempty"`
}

// RedisConfig configures the redis store backend.
type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// StoreConfig selects and configures the idea store.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path,omitempty"`
	Redis   RedisConfig `yaml:"redis"`
}

// SuggestConfig configures the suggestion generator.
type SuggestConfig struct {
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// ProjectConfig models .ideaboard/config.yaml.
type ProjectConfig struct {
	Version   int             `yaml:"version"`
	Board     BoardConfig     `yaml:"board"`
	Pipelines PipelinesConfig `yaml:"pipelines"`
	Store     StoreConfig     `yaml:"store"`
	Suggest   SuggestConfig   `yaml:"suggest"`
}

// Config holds the runtime configuration for ideaboard.
type Config struct {
	// ProjectDir is the directory where the user ran `ideaboard` from
	ProjectDir string

	// BoardProjectDir is ProjectDir/.ideaboard
	BoardProjectDir string

	Project ProjectConfig
}

// InitDir creates the .ideaboard directory structure in the given project directory.
//
// Structure created:
// .ideaboard/
// ├── config.yaml
// ├── logs/         <- ideaboard.log and journal.log
// └── data/         <- file store contents
func InitDir(projectDir string) error {
	boardDir := filepath.Join(projectDir, BoardDir)
	dirs := []string{
		filepath.Join(boardDir, "logs"),
		filepath.Join(boardDir, "data"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(boardDir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings
// and environment overrides.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:      projectDir,
		BoardProjectDir: filepath.Join(projectDir, BoardDir),
		Project:         defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.Project.applyEnvOverrides()
	cfg.Project.normalize(cfg.BoardProjectDir)
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.BoardProjectDir, "logs")
}

// JournalPath returns the levelled journal file.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "journal.log")
}

// DataDir returns the path to the data directory
func (c *Config) DataDir() string {
	return filepath.Join(c.BoardProjectDir, "data")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.BoardProjectDir, "config.yaml")
}

// ProjectScope is the scope passed to store subscriptions.
func (c *Config) ProjectScope() string {
	return c.Project.Board.Project
}

// DefaultPipeline returns the pipeline key shown on launch.
func (c *Config) DefaultPipeline() string {
	return c.Project.Board.DefaultPipeline
}

// StorePath returns the absolute file store location.
func (c *Config) StorePath() string {
	return c.Project.Store.Path
}

// PipelinesFile returns the registry override path, or "" for the built-in registry.
func (c *Config) PipelinesFile() string {
	return c.Project.Pipelines.File
}

// SetDefaultPipeline updates the launch pipeline and persists the value back
// to .ideaboard/config.yaml. Unknown keys are accepted; the board falls back
// to Feature columns for them.
func (c *Config) SetDefaultPipeline(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("config: pipeline key is required")
	}
	c.Project.Board.DefaultPipeline = key
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Project.normalize(c.BoardProjectDir)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.BoardProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Board.Project == "" {
		pc.Board.Project = "default"
	}
	if pc.Board.DefaultPipeline == "" {
		pc.Board.DefaultPipeline = defaultPipeline
	}
	if pc.Store.Backend == "" {
		pc.Store.Backend = BackendFile
	}
	if pc.Store.Path == "" {
		pc.Store.Path = filepath.Join("data", defaultStorePath)
	}
	if pc.Store.Redis.Address == "" {
		pc.Store.Redis.Address = defaultRedisAddr
	}
	if pc.Store.Redis.KeyPrefix == "" {
		pc.Store.Redis.KeyPrefix = defaultRedisPrefix
	}
	if pc.Suggest.Model == "" {
		pc.Suggest.Model = defaultModel
	}
	if pc.Suggest.APIKeyEnv == "" {
		pc.Suggest.APIKeyEnv = defaultAPIKeyEnv
	}
	if pc.Suggest.MaxAttempts <= 0 {
		pc.Suggest.MaxAttempts = defaultMaxAttempts
	}
}

func (pc *ProjectConfig) applyEnvOverrides() {
	if backend := strings.TrimSpace(os.Getenv("IDEABOARD_STORE")); backend != "" {
		pc.Store.Backend = backend
	}
	if addr := strings.TrimSpace(os.Getenv("IDEABOARD_REDIS_ADDR")); addr != "" {
		pc.Store.Redis.Address = addr
	}
	if db := strings.TrimSpace(os.Getenv("IDEABOARD_REDIS_DB")); db != "" {
		if parsed, err := strconv.Atoi(db); err == nil && parsed >= 0 {
			pc.Store.Redis.DB = parsed
		}
	}
	if project := strings.TrimSpace(os.Getenv("IDEABOARD_PROJECT")); project != "" {
		pc.Board.Project = project
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Board.Project = strings.TrimSpace(pc.Board.Project)
	pc.Board.DefaultPipeline = strings.TrimSpace(pc.Board.DefaultPipeline)
	if pc.Board.DefaultPipeline == "" {
		pc.Board.DefaultPipeline = defaultPipeline
	}
	pc.Pipelines.File = resolvePath(base, pc.Pipelines.File)
	pc.Store.Backend = strings.ToLower(strings.TrimSpace(pc.Store.Backend))
	pc.Store.Path = resolvePath(base, pc.Store.Path)
	pc.Store.Redis.Address = strings.TrimSpace(pc.Store.Redis.Address)
	pc.Store.Redis.KeyPrefix = strings.Trim(strings.TrimSpace(pc.Store.Redis.KeyPrefix), ":")
	pc.Suggest.Model = strings.TrimSpace(pc.Suggest.Model)
	pc.Suggest.APIKeyEnv = strings.TrimSpace(pc.Suggest.APIKeyEnv)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Board.Project == "" {
		return fmt.Errorf("board.project is required")
	}
	switch pc.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if pc.Store.Path == "" {
			return fmt.Errorf("store.path is required for the file backend")
		}
	case BackendRedis:
		if pc.Store.Redis.Address == "" {
			return fmt.Errorf("store.redis.address is required for the redis backend")
		}
		if pc.Store.Redis.DB < 0 {
			return fmt.Errorf("store.redis.db must be >= 0")
		}
	default:
		return fmt.Errorf("store.backend must be 'memory', 'file' or 'redis'")
	}
	if pc.Suggest.MaxAttempts < 1 {
		return fmt.Errorf("suggest.max_attempts must be >= 1")
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize(c.BoardProjectDir)
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.BoardProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure board dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := atomic.WriteFile(c.ProjectConfigPath(), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
