package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/cli"
	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/internal/seqmodel"
	"github.com/hyperjump/henkan/internal/storage"
	"github.com/hyperjump/henkan/internal/vocab"
)

// apiClient talks to a running henkan server.
type apiClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// newAPIClient returns a client for serverURL. Basic auth credentials are taken from
// the config at configPath when it loads.
func newAPIClient(serverURL, configPath string) *apiClient {
	c := &apiClient{
		baseURL: strings.TrimRight(serverURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	if cfg, _, err := loadConfig(configPath); err == nil {
		c.username = cfg.Server.Username
		c.password = cfg.Server.Password
	}
	return c
}

func (c *apiClient) do(method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) predict(text string) (*models.TextResponse, error) {
	var resp models.TextResponse
	if err := c.do(http.MethodPost, "/api/v1/predict", models.TextRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) status() (*statusResponse, error) {
	var s statusResponse
	if err := c.do(http.MethodGet, "/api/v1/status", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// statusVocabulary is the vocabulary block of a status response.
type statusVocabulary struct {
	Tokens     int `json:"tokens"`
	Dimensions int `json:"dimensions"`
}

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	CorpusPath        string `json:"corpus_path,omitempty"`
	VocabularyPath    string `json:"vocabulary_path,omitempty"`
	DatabasePath      string `json:"database_path,omitempty"`
	EncodedBackend    string `json:"encoded_backend,omitempty"`
	EncodedPath       string `json:"encoded_path,omitempty"`
	QuestionIndexPath string `json:"question_index_path,omitempty"`
	ModelKind         string `json:"model_kind,omitempty"`
	Filler            string `json:"filler,omitempty"`
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	FrameLength      int                    `json:"frame_length"`
	Vocabulary       *statusVocabulary      `json:"vocabulary,omitempty"`
	Questions        int                    `json:"questions"`
	Model            bool                   `json:"model"`
	Corpus           *models.PreparedCorpus `json:"corpus,omitempty"`
	StoredCorpora    int64                  `json:"stored_corpora"`
	IndexedQuestions uint64                 `json:"indexed_questions"`
	DiskUsageBytes   *int64                 `json:"disk_usage_bytes,omitempty"`
	DiskUsage        *storage.Usage         `json:"disk_usage,omitempty"`
	Config           *statusConfigResponse  `json:"config,omitempty"`
}

// writeStatus prints a status response in the requested format.
func writeStatus(w io.Writer, status statusResponse, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	fmt.Fprintf(w, "frame_length:       %d   # L, tokens per frame\n", status.FrameLength)
	if status.Vocabulary != nil {
		fmt.Fprintf(w, "vocabulary_tokens:  %d\n", status.Vocabulary.Tokens)
		fmt.Fprintf(w, "vocabulary_dims:    %d\n", status.Vocabulary.Dimensions)
	}
	fmt.Fprintf(w, "questions:          %d   # known questions\n", status.Questions)
	fmt.Fprintf(w, "indexed_questions:  %d   # questions in the full-text index\n", status.IndexedQuestions)
	fmt.Fprintf(w, "stored_corpora:     %d\n", status.StoredCorpora)
	fmt.Fprintf(w, "model:              %t\n", status.Model)
	if status.Corpus != nil {
		st := status.Corpus.Stats
		fmt.Fprintf(w, "corpus_id:          %s\n", status.Corpus.ID)
		fmt.Fprintf(w, "corpus_pairs:       %d of %d lines (%d dropped)\n", st.Kept, st.Lines, st.Dropped())
	}
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + vocabulary + encoded + index on disk\n", *status.DiskUsageBytes)
	}
	if u := status.DiskUsage; u != nil {
		fmt.Fprintf(w, "  database:         %d\n", u.Database)
		fmt.Fprintf(w, "  vocabulary:       %d\n", u.Vocabulary)
		fmt.Fprintf(w, "  encoded:          %d\n", u.Encoded)
		fmt.Fprintf(w, "  question_index:   %d\n", u.QuestionIndex)
	}
	if c := status.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fields := []struct{ name, value string }{
			{"corpus_path", c.CorpusPath},
			{"vocabulary_path", c.VocabularyPath},
			{"database_path", c.DatabasePath},
			{"encoded_backend", c.EncodedBackend},
			{"encoded_path", c.EncodedPath},
			{"question_index_path", c.QuestionIndexPath},
			{"model_kind", c.ModelKind},
			{"filler", c.Filler},
		}
		for _, f := range fields {
			if f.value != "" {
				fmt.Fprintf(w, "%-20s%s\n", f.name+":", f.value)
			}
		}
	}
	return nil
}

// localStatus collects status from the artifacts on disk without starting a server.
func localStatus(ctx context.Context, components *Components) (statusResponse, error) {
	cfg := components.Config
	st := cfg.Storage
	status := statusResponse{
		Config: &statusConfigResponse{
			CorpusPath:        cfg.Corpus.Path,
			VocabularyPath:    cfg.Vocabulary.Path,
			DatabasePath:      st.DatabasePath,
			EncodedBackend:    st.EncodedBackend,
			EncodedPath:       st.EncodedPath,
			QuestionIndexPath: st.QuestionIndexPath,
			ModelKind:         cfg.Model.Kind,
			Filler:            cfg.Encoding.Filler,
		},
	}
	n, err := components.Corpora.CountCorpora(ctx)
	if err != nil {
		return status, fmt.Errorf("count corpora: %w", err)
	}
	status.StoredCorpora = n
	if n > 0 {
		corpus, err := components.Corpora.LatestCorpus(ctx)
		if err != nil {
			return status, err
		}
		status.Corpus = corpus
		status.FrameLength = corpus.Length
	}
	if v, err := vocab.Load(cfg.Vocabulary.Path); err == nil {
		status.Vocabulary = &statusVocabulary{Tokens: v.Size(), Dimensions: v.Dimensions()}
	}
	if count, err := components.Questions.DocCount(); err == nil {
		status.IndexedQuestions = count
		status.Questions = int(count)
	}
	if kind, err := seqmodel.ParseKind(cfg.Model.Kind); err == nil {
		status.Model = kind != seqmodel.KindNone
	}
	if usage, err := storage.DiskUsage(storage.Artifacts{
		Database:      st.DatabasePath,
		Vocabulary:    cfg.Vocabulary.Path,
		Encoded:       st.EncodedPath,
		QuestionIndex: st.QuestionIndexPath,
	}); err == nil {
		total := usage.Total()
		status.DiskUsageBytes = &total
		status.DiskUsage = &usage
	}
	return status, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read local artifacts)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := outputFormat(*output)

	var status statusResponse
	if *serverURL != "" {
		res, err := newAPIClient(*serverURL, *configPath).status()
		if err != nil {
			fail("Status failed: %v", err)
		}
		status = *res
	} else {
		cfg, logger, _ := setup(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, nil)
		if err != nil {
			logger.Fatal("Failed to initialize components", zap.Error(err))
		}
		defer components.Close()
		status, err = localStatus(context.Background(), components)
		if err != nil {
			fail("Status failed: %v", err)
		}
	}
	if err := writeStatus(os.Stdout, status, format); err != nil {
		fail("Output failed: %v", err)
	}
}
