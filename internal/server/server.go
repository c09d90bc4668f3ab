// Package server provides the HTTP API for henkan.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/config"
	"github.com/hyperjump/henkan/internal/keyword"
	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/internal/predict"
	"github.com/hyperjump/henkan/internal/storage"
)

// maxDecodeBytes bounds decode bodies, which carry a whole [L][D] array.
const maxDecodeBytes = 16 << 20

// Runtime is the corpus-dependent state read by the handlers. A rebuild replaces it wholesale.
type Runtime struct {
	Corpus    *models.PreparedCorpus
	Predictor *predict.Predictor
	Questions []string
}

// Server is the HTTP server for the henkan API.
type Server struct {
	mu      sync.RWMutex
	runtime *Runtime

	index   *keyword.QuestionIndex
	speller *keyword.Speller
	store   storage.CorpusStore
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. index may be nil, which disables question search.
func NewServer(rt *Runtime, index *keyword.QuestionIndex, store storage.CorpusStore, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runtime: rt,
		index:   index,
		store:   store,
		config:  cfg,
		logger:  logger,
	}
	if index != nil {
		s.speller = keyword.NewSpeller(index)
	}
	return s
}

// SetRuntime swaps the corpus-dependent state after a rebuild.
func (s *Server) SetRuntime(rt *Runtime) {
	s.mu.Lock()
	s.runtime = rt
	s.mu.Unlock()
	if s.speller != nil {
		s.speller.Invalidate()
	}
	s.logger.Info("Runtime replaced", zap.Int("questions", len(rt.Questions)))
}

func (s *Server) current() *Runtime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runtime
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if s.config.Server.Username != "" {
			r.Use(middleware.BasicAuth("henkan", map[string]string{
				s.config.Server.Username: s.config.Server.Password,
			}))
		}
		r.Get("/status", s.handleStatus)
		r.Get("/questions", s.handleQuestions)
		r.Get("/questions/search", s.handleQuestionSearch)
		r.Get("/vocabulary/{token}/neighbors", s.handleNeighbors)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequestSize(s.config.Server.MaxRequestBytes))
			r.Post("/prepare", s.handlePrepare)
			r.Post("/encode", s.handleEncode)
			r.Post("/predict", s.handlePredict)
		})
		r.With(middleware.RequestSize(maxDecodeBytes)).Post("/decode", s.handleDecode)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
