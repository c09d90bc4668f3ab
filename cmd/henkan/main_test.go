package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/cli"
	"github.com/hyperjump/henkan/internal/config"
)

const testCorpus = `Зачем нужен этот класс? %% Для подготовки данных
Привет! %% Привет, как дела?
Что ты умеешь? %% Отвечать на вопросы.
`

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after text are moved first",
			args:     []string{"как дела", "-output", "json"},
			expected: []string{"-output", "json", "как дела"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-output", "json", "как дела"},
			expected: []string{"-output", "json", "как дела"},
		},
		{
			name:     "text only returns unchanged",
			args:     []string{"как дела"},
			expected: []string{"как дела"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"как", "дела", "-k", "5"},
			expected: []string{"-k", "5", "как", "дела"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"привет"}, "привет"},
		{"multiple words", []string{"как", "дела"}, "как дела"},
		{"single quoted phrase", []string{"как дела"}, "как дела"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinArgs(tt.args); got != tt.expected {
				t.Errorf("joinArgs(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestConfigPathDefault(t *testing.T) {
	t.Setenv("HENKAN_CONFIG", "")
	if got := configPathDefault(); got != defaultConfigPath {
		t.Errorf("configPathDefault() = %q, want %q", got, defaultConfigPath)
	}
	t.Setenv("HENKAN_CONFIG", "/etc/henkan.yaml")
	if got := configPathDefault(); got != "/etc/henkan.yaml" {
		t.Errorf("configPathDefault() = %q, want /etc/henkan.yaml", got)
	}
}

func TestEnvDebug(t *testing.T) {
	for value, want := range map[string]bool{"": false, "0": false, "nope": false, "1": true, "true": true} {
		t.Setenv("HENKAN_DEBUG", value)
		if got := envDebug(); got != want {
			t.Errorf("envDebug() with %q = %v, want %v", value, got, want)
		}
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
corpus:
  path: "./corpus.txt"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Corpus.Path != filepath.Join(dir, "corpus.txt") {
		t.Errorf("corpus path = %s, want it next to the config", cfg.Corpus.Path)
	}
}

// testComponents builds components over a temp directory holding corpus as the corpus file.
func testComponents(t *testing.T, corpus string) *Components {
	t.Helper()
	dir := t.TempDir()
	corpusPath := filepath.Join(dir, "corpus.txt")
	if err := os.WriteFile(corpusPath, []byte(corpus), 0600); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Corpus.Path = corpusPath
	cfg.Vocabulary.Path = filepath.Join(dir, "vocabulary", "vectors.bin")
	cfg.Vocabulary.ListingPath = filepath.Join(dir, "vocabulary", "vocabulary.txt")
	cfg.Vocabulary.NeighborsPath = filepath.Join(dir, "vocabulary", "neighbors.txt")
	cfg.Vocabulary.VectorSize = 32
	cfg.Vocabulary.Epochs = 2
	cfg.Storage.DatabasePath = filepath.Join(dir, "db", "corpora.db")
	cfg.Storage.EncodedPath = filepath.Join(dir, "encoded", "corpus.hnke")
	cfg.Storage.QuestionIndexPath = ""

	components, err := initializeComponents(cfg, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	t.Cleanup(components.Close)
	return components
}

func TestRebuild(t *testing.T) {
	components := testComponents(t, testCorpus)
	ctx := context.Background()

	rt, err := components.rebuild(ctx)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rt.Corpus.Size() != 3 {
		t.Errorf("corpus size = %d, want 3", rt.Corpus.Size())
	}
	if len(rt.Questions) != 3 {
		t.Errorf("questions = %v, want 3", rt.Questions)
	}
	if !rt.Predictor.HasModel() {
		t.Fatal("retrieval model should be configured by default")
	}
	for _, path := range []string{
		components.Config.Vocabulary.Path,
		components.Config.Vocabulary.ListingPath,
		components.Config.Vocabulary.NeighborsPath,
		components.Config.Storage.EncodedPath,
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("artifact %s: %v", path, err)
		}
	}

	resp, err := rt.Predictor.Answer(ctx, "Зачем нужен этот класс?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(strings.ToLower(resp.Text), "подготовки данных") {
		t.Errorf("answer = %q, want the stored answer", resp.Text)
	}
	if len(resp.Lost) != 0 {
		t.Errorf("lost = %v, want none", resp.Lost)
	}

	hits, err := components.Questions.Search(ctx, "умеешь", 5, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Question != "Что ты умеешь?" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestLoadRuntime_preparesWhenEmpty(t *testing.T) {
	components := testComponents(t, testCorpus)
	ctx := context.Background()

	rt, err := components.loadRuntime(ctx)
	if err != nil {
		t.Fatalf("loadRuntime: %v", err)
	}
	if rt.Corpus.Size() != 3 {
		t.Errorf("corpus size = %d, want 3", rt.Corpus.Size())
	}
	n, err := components.Corpora.CountCorpora(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("stored corpora = %d, want 1", n)
	}

	// Unchanged file: the stored corpus is reused.
	again, err := components.loadRuntime(ctx)
	if err != nil {
		t.Fatalf("loadRuntime: %v", err)
	}
	if again.Corpus.ID != rt.Corpus.ID {
		t.Errorf("corpus id = %s, want %s", again.Corpus.ID, rt.Corpus.ID)
	}
}

func TestLoadRuntime_rebuildsChangedCorpus(t *testing.T) {
	components := testComponents(t, testCorpus)
	ctx := context.Background()

	first, err := components.loadRuntime(ctx)
	if err != nil {
		t.Fatalf("loadRuntime: %v", err)
	}
	if err := os.WriteFile(components.Config.Corpus.Path, []byte(testCorpus+"Ты кто? %% Я бот\n"), 0600); err != nil {
		t.Fatal(err)
	}
	second, err := components.loadRuntime(ctx)
	if err != nil {
		t.Fatalf("loadRuntime: %v", err)
	}
	if second.Corpus.ID == first.Corpus.ID {
		t.Error("changed corpus file should produce a new corpus")
	}
	if second.Corpus.Size() != 4 {
		t.Errorf("corpus size = %d, want 4", second.Corpus.Size())
	}
	if !second.Predictor.Vocabulary().Has("бот") {
		t.Error("vocabulary should be retrained on the new corpus")
	}
}

func TestNewModel_none(t *testing.T) {
	components := testComponents(t, testCorpus)
	components.Config.Model.Kind = "none"

	rt, err := components.rebuild(context.Background())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rt.Predictor.HasModel() {
		t.Error("model kind none should leave the predictor without a model")
	}
}

func TestTrainer_unknown(t *testing.T) {
	components := testComponents(t, testCorpus)
	components.Config.Vocabulary.Trainer = "glove"
	if _, err := components.trainer(); err == nil {
		t.Error("expected error for unknown trainer")
	}
	components.Config.Vocabulary.Trainer = "hash"
	if _, err := components.trainer(); err != nil {
		t.Errorf("hash trainer: %v", err)
	}
}

func TestLocalStatus(t *testing.T) {
	components := testComponents(t, testCorpus)
	ctx := context.Background()

	empty, err := localStatus(ctx, components)
	if err != nil {
		t.Fatalf("localStatus: %v", err)
	}
	if empty.StoredCorpora != 0 || empty.Corpus != nil || empty.Vocabulary != nil {
		t.Errorf("empty status = %+v", empty)
	}

	if _, err := components.rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	status, err := localStatus(ctx, components)
	if err != nil {
		t.Fatalf("localStatus: %v", err)
	}
	if status.StoredCorpora != 1 || status.Corpus == nil {
		t.Fatalf("status = %+v", status)
	}
	if status.FrameLength != status.Corpus.Length {
		t.Errorf("frame length = %d, want %d", status.FrameLength, status.Corpus.Length)
	}
	if status.Vocabulary == nil || status.Vocabulary.Dimensions != 32 {
		t.Errorf("vocabulary = %+v", status.Vocabulary)
	}
	if status.IndexedQuestions != 3 {
		t.Errorf("indexed questions = %d, want 3", status.IndexedQuestions)
	}
	if !status.Model {
		t.Error("retrieval model should be reported")
	}

	var buf bytes.Buffer
	if err := writeStatus(&buf, status, cli.OutputText); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"frame_length:", "vocabulary_dims:    32", "# configuration", "model_kind:"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("status text missing %q:\n%s", want, buf.String())
		}
	}
}

func TestReadDecodeRequest(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`{"vectors": [[0.1, 0.2], [0.3, 0.4]]}`), 0600); err != nil {
		t.Fatal(err)
	}
	req, err := readDecodeRequest(good)
	if err != nil {
		t.Fatalf("readDecodeRequest: %v", err)
	}
	if len(req.Vectors) != 2 || len(req.Vectors[1]) != 2 {
		t.Errorf("vectors = %v", req.Vectors)
	}

	ragged := filepath.Join(dir, "ragged.json")
	if err := os.WriteFile(ragged, []byte(`{"vectors": [[0.1, 0.2], [0.3]]}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := readDecodeRequest(ragged); err == nil {
		t.Error("expected error for ragged vectors")
	}
	if _, err := readDecodeRequest(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
