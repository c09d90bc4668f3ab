// Package config provides configuration loading and structs for henkan.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Encoding   EncodingConfig   `yaml:"encoding"`
	Storage    StorageConfig    `yaml:"storage"`
	Model      ModelConfig      `yaml:"model"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings. Basic auth is enabled when Username is set.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	MaxRequestBytes int64  `yaml:"max_request_bytes"`
}

// CorpusConfig holds the corpus source and preparation limits.
type CorpusConfig struct {
	Path          string `yaml:"path"`
	MaxTokens     int    `yaml:"max_tokens"`
	QuestionLimit int    `yaml:"question_limit"`
}

// VocabularyConfig holds vocabulary artifact paths and trainer hyperparameters.
type VocabularyConfig struct {
	Path          string `yaml:"path"`
	ListingPath   string `yaml:"listing_path"`
	NeighborsPath string `yaml:"neighbors_path"`
	Neighbors     int    `yaml:"neighbors"`
	Trainer       string `yaml:"trainer"`
	VectorSize    int    `yaml:"vector_size"`
	Window        int    `yaml:"window"`
	Epochs        int    `yaml:"epochs"`
	MinCount      int    `yaml:"min_count"`
	Seed          int64  `yaml:"seed"`
}

// EncodingConfig holds corpus encode settings. Limit 0 encodes every pair.
type EncodingConfig struct {
	Filler  string `yaml:"filler"`
	Workers int    `yaml:"workers"`
	Limit   int    `yaml:"limit"`
}

// StorageConfig holds paths for the database, encoded arrays and the question index.
type StorageConfig struct {
	DatabasePath      string `yaml:"database_path"`
	EncodedBackend    string `yaml:"encoded_backend"`
	EncodedPath       string `yaml:"encoded_path"`
	QuestionIndexPath string `yaml:"question_index_path"`
}

// ModelConfig holds the sequence model settings. Kind is "none", "retrieval" or "onnx".
type ModelConfig struct {
	Kind       string `yaml:"kind"`
	Path       string `yaml:"path"`
	Library    string `yaml:"library"`
	InputName  string `yaml:"input_name"`
	OutputName string `yaml:"output_name"`
	CacheSize  int    `yaml:"cache_size"`
}

// WatchConfig holds corpus watch settings.
type WatchConfig struct {
	Enabled    *bool `yaml:"enabled"`
	DebounceMS int   `yaml:"debounce_ms"`
}

// EnabledOrDefault returns whether the server watches the corpus; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
}

// Debounce returns the debounce interval.
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// Addr returns host:port.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	for _, p := range []*string{
		&cfg.Corpus.Path,
		&cfg.Vocabulary.Path,
		&cfg.Vocabulary.ListingPath,
		&cfg.Vocabulary.NeighborsPath,
		&cfg.Storage.DatabasePath,
		&cfg.Storage.EncodedPath,
		&cfg.Storage.QuestionIndexPath,
		&cfg.Model.Path,
		&cfg.Model.Library,
	} {
		*p = expandPath(*p, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
