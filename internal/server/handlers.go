package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/framer"
	"github.com/hyperjump/henkan/internal/keyword"
	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/internal/seqmodel"
	"github.com/hyperjump/henkan/internal/storage"
)

const defaultNeighbors = 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody decodes a JSON request body and writes the error response on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) readText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req models.TextRequest
	if !s.decodeBody(w, r, &req) {
		return "", false
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return req.Text, true
}

// respondFramingError maps question framing failures to a status code.
func (s *Server) respondFramingError(w http.ResponseWriter, err error) {
	if errors.Is(err, framer.ErrOversizeSequence) {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Error("question preparation failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	text, ok := s.readText(w, r)
	if !ok {
		return
	}
	framed, err := s.current().Predictor.Prepare(text)
	if err != nil {
		s.respondFramingError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, framed)
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	text, ok := s.readText(w, r)
	if !ok {
		return
	}
	enc, err := s.current().Predictor.Encode(text)
	if err != nil {
		s.respondFramingError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, enc)
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req models.DecodeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	text, lost := s.current().Predictor.TextFromVectors(req.Vectors)
	s.respondJSON(w, http.StatusOK, models.TextResponse{Text: text, Lost: lost})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	text, ok := s.readText(w, r)
	if !ok {
		return
	}
	s.logger.Debug("predict request", zap.String("text", text))
	resp, err := s.current().Predictor.Answer(r.Context(), text)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, resp)
	case errors.Is(err, seqmodel.ErrNoModel):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, framer.ErrOversizeSequence):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("prediction failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	questions := s.current().Questions
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n < len(questions) {
			questions = questions[:n]
		}
	}
	if questions == nil {
		questions = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"questions": questions, "count": len(questions)})
}

type questionSearchResponse struct {
	Query      string               `json:"query"`
	Hits       []models.QuestionHit `json:"hits"`
	Suggestion *keyword.Correction  `json:"suggestion,omitempty"`
}

func (s *Server) handleQuestionSearch(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.respondError(w, http.StatusNotImplemented, "question search not enabled")
		return
	}
	q := r.URL.Query()
	query := models.QuestionSearchQuery{Query: q.Get("q"), Fuzzy: q.Get("fuzzy") == "true"}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		query.Limit = n
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hits, err := s.index.Search(r.Context(), query.Query, query.Limit, query.Fuzzy)
	if err != nil {
		s.logger.Error("question search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := questionSearchResponse{Query: query.Query, Hits: hits}
	if resp.Hits == nil {
		resp.Hits = []models.QuestionHit{}
	}
	if len(hits) == 0 && s.speller != nil {
		if c, err := s.speller.Check(query.Query); err == nil && c.Changed() {
			resp.Suggestion = &c
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if unescaped, err := url.PathUnescape(token); err == nil {
		token = unescaped
	}
	k := defaultNeighbors
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid k")
			return
		}
		k = n
	}
	neighbors, ok := s.current().Predictor.Vocabulary().MostSimilar(token, k)
	if !ok {
		s.respondError(w, http.StatusNotFound, "token not in vocabulary")
		return
	}
	if neighbors == nil {
		neighbors = []models.Neighbor{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"token": token, "neighbors": neighbors})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rt := s.current()
	v := rt.Predictor.Vocabulary()
	resp := map[string]any{
		"frame_length": rt.Predictor.Length(),
		"vocabulary": map[string]any{
			"tokens":     v.Size(),
			"dimensions": v.Dimensions(),
		},
		"questions": len(rt.Questions),
		"model":     rt.Predictor.HasModel(),
	}
	if rt.Corpus != nil {
		resp["corpus"] = rt.Corpus
	}
	if s.store != nil {
		n, err := s.store.CountCorpora(r.Context())
		if err != nil {
			s.logger.Error("status: count corpora failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["stored_corpora"] = n
	}
	if s.index != nil {
		if n, err := s.index.DocCount(); err == nil {
			resp["indexed_questions"] = n
		}
	}

	st := s.config.Storage
	configInfo := map[string]any{
		"corpus_path":         s.config.Corpus.Path,
		"vocabulary_path":     s.config.Vocabulary.Path,
		"database_path":       st.DatabasePath,
		"encoded_backend":     st.EncodedBackend,
		"encoded_path":        st.EncodedPath,
		"question_index_path": st.QuestionIndexPath,
		"model_kind":          s.config.Model.Kind,
		"filler":              s.config.Encoding.Filler,
	}
	if usage, err := storage.DiskUsage(storage.Artifacts{
		Database:      st.DatabasePath,
		Vocabulary:    s.config.Vocabulary.Path,
		Encoded:       st.EncodedPath,
		QuestionIndex: st.QuestionIndexPath,
	}); err == nil {
		resp["disk_usage_bytes"] = usage.Total()
		resp["disk_usage"] = usage
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
