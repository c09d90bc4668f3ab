package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
corpus:
  path: "./corpus.txt"
  max_tokens: 20
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr = %s", cfg.Server.Addr())
	}
	if cfg.Corpus.MaxTokens != 20 {
		t.Errorf("max_tokens = %d, want 20", cfg.Corpus.MaxTokens)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
corpus:
  path: "./data/corpus.txt"
storage:
  database_path: "./data/db/corpora.db"
model:
  path: "/opt/models/seq.onnx"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "corpus.txt"); cfg.Corpus.Path != want {
		t.Errorf("corpus path = %s, want %s", cfg.Corpus.Path, want)
	}
	if want := filepath.Join(dir, "data", "db", "corpora.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if cfg.Model.Path != "/opt/models/seq.onnx" {
		t.Errorf("absolute path changed: %s", cfg.Model.Path)
	}
	if cfg.Model.Library != "" {
		t.Errorf("empty path should stay empty, got %q", cfg.Model.Library)
	}
}

func TestExpandPath_homeRelative(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("henkan/corpus.txt", "/etc"); got != filepath.Join(home, "henkan", "corpus.txt") {
		t.Errorf("expandPath = %s", got)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: %+v", cfg.Server)
	}
	if cfg.Server.MaxRequestBytes != 1024 {
		t.Errorf("default max_request_bytes: got %d", cfg.Server.MaxRequestBytes)
	}
	if cfg.Corpus.MaxTokens != 28 || cfg.Corpus.QuestionLimit != 2000 {
		t.Errorf("default corpus: %+v", cfg.Corpus)
	}
	v := cfg.Vocabulary
	if v.VectorSize != 500 || v.Window != 5 || v.Epochs != 5 || v.MinCount != 1 {
		t.Errorf("default trainer params: %+v", v)
	}
	if v.Neighbors != 4 || v.Trainer != "cooccurrence" {
		t.Errorf("default vocabulary: %+v", v)
	}
	if cfg.Encoding.Filler != "in-place" || cfg.Storage.EncodedBackend != "file" {
		t.Errorf("default enums: filler=%s backend=%s", cfg.Encoding.Filler, cfg.Storage.EncodedBackend)
	}
	if cfg.Model.Kind != "retrieval" {
		t.Errorf("default model kind: %s", cfg.Model.Kind)
	}
	if cfg.Watch.Debounce() != 400*time.Millisecond {
		t.Errorf("default debounce: %v", cfg.Watch.Debounce())
	}
}

func TestApplyDefaults_keepsValues(t *testing.T) {
	cfg := &Config{Encoding: EncodingConfig{Filler: "front", Workers: 2}}
	ApplyDefaults(cfg)
	if cfg.Encoding.Filler != "front" || cfg.Encoding.Workers != 2 {
		t.Errorf("explicit values overwritten: %+v", cfg.Encoding)
	}
}

func TestWatchConfig_EnabledOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.EnabledOrDefault(); !got {
			t.Errorf("EnabledOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Enabled: &f}
		if got := w.EnabledOrDefault(); got {
			t.Errorf("EnabledOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 9090},
		Corpus: CorpusConfig{Path: "/tmp/corpus.txt"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Corpus.Path != "/tmp/corpus.txt" {
		t.Errorf("loaded corpus path: got %s", loaded.Corpus.Path)
	}
}
