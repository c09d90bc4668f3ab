package keyword

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/models"
)

const questionField = "question"

type questionDoc struct {
	Question string `json:"question"`
}

// QuestionIndex implements Searcher using Bleve.
type QuestionIndex struct {
	index     bleve.Index
	logger    *zap.Logger
	fuzziness int

	mu    sync.Mutex
	count int
}

// Option configures a QuestionIndex.
type Option func(*QuestionIndex)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(q *QuestionIndex) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithFuzziness sets the edit distance used by fuzzy search.
func WithFuzziness(n int) Option {
	return func(q *QuestionIndex) {
		if n > 0 {
			q.fuzziness = n
		}
	}
}

func questionMapping() *bleve.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// No stemming: Russian and English questions are matched word for word.
	textFieldMapping.Analyzer = standard.Name
	textFieldMapping.Store = true
	docMapping.AddFieldMappingsAt(questionField, textFieldMapping)
	im.AddDocumentMapping("question", docMapping)
	im.DefaultType = "question"
	im.DefaultMapping = docMapping
	return im
}

// NewQuestionIndex creates or opens a Bleve index at path. An empty path keeps the index in memory.
func NewQuestionIndex(path string, opts ...Option) (*QuestionIndex, error) {
	q := &QuestionIndex{logger: zap.NewNop(), fuzziness: DefaultFuzziness}
	for _, opt := range opts {
		opt(q)
	}

	var (
		index bleve.Index
		err   error
	)
	switch {
	case path == "":
		index, err = bleve.NewMemOnly(questionMapping())
	default:
		if _, statErr := os.Stat(path); statErr == nil {
			index, err = bleve.Open(path)
			if err != nil {
				return nil, fmt.Errorf("failed to open question index: %w", err)
			}
		} else {
			if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr != nil {
				return nil, fmt.Errorf("failed to create question index directory: %w", mkErr)
			}
			index, err = bleve.New(path, questionMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create question index: %w", err)
	}
	q.index = index

	n, err := index.DocCount()
	if err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to count indexed questions: %w", err)
	}
	q.count = int(n)
	return q, nil
}

func docID(i int) string {
	return fmt.Sprintf("q%06d", i)
}

// Index replaces the indexed questions wholesale. Questions keep their list position as id.
func (q *QuestionIndex) Index(ctx context.Context, questions []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := q.index.NewBatch()
	for i, text := range questions {
		if err := batch.Index(docID(i), questionDoc{Question: text}); err != nil {
			return fmt.Errorf("failed to index question %d: %w", i, err)
		}
	}
	for i := len(questions); i < q.count; i++ {
		batch.Delete(docID(i))
	}
	if err := q.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to write question index: %w", err)
	}
	q.count = len(questions)
	q.logger.Debug("Indexed questions", zap.Int("count", q.count))
	return nil
}

// Search returns up to limit questions matching query, best first.
// With fuzzy set, every query term also matches terms within the configured edit distance.
func (q *QuestionIndex) Search(ctx context.Context, query string, limit int, fuzzy bool) ([]models.QuestionHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	var bq blevequery.Query
	if fuzzy {
		bq = q.buildFuzzyQuery(query)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(questionField)
		bq = mq
	}
	req := bleve.NewSearchRequest(bq)
	req.Size = limit
	req.Fields = []string{questionField}
	results, err := q.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("question search failed: %w", err)
	}
	out := make([]models.QuestionHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		text, _ := hit.Fields[questionField].(string)
		out = append(out, models.QuestionHit{Question: text, Score: hit.Score})
	}
	return out, nil
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per query term.
func (q *QuestionIndex) buildFuzzyQuery(query string) blevequery.Query {
	terms := queryTerms(query)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(questionField)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(q.fuzziness)
		fq.SetField(questionField)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// queryTerms splits query into lowercase letter/digit runs.
func queryTerms(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// DocCount returns the number of indexed questions.
func (q *QuestionIndex) DocCount() (uint64, error) {
	return q.index.DocCount()
}

// AllTerms returns every term in the question field dictionary.
func (q *QuestionIndex) AllTerms() ([]string, error) {
	dict, err := q.index.FieldDict(questionField)
	if err != nil {
		return nil, fmt.Errorf("failed to read term dictionary: %w", err)
	}
	defer dict.Close()

	var terms []string
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read term dictionary: %w", err)
		}
		if entry == nil {
			break
		}
		terms = append(terms, entry.Term)
	}
	return terms, nil
}

// TermFrequency returns the number of questions containing term.
func (q *QuestionIndex) TermFrequency(term string) (int, error) {
	tq := bleve.NewTermQuery(strings.ToLower(term))
	tq.SetField(questionField)
	req := bleve.NewSearchRequest(tq)
	req.Size = 0
	results, err := q.index.Search(req)
	if err != nil {
		return 0, fmt.Errorf("failed to count term: %w", err)
	}
	return int(results.Total), nil
}

// Close closes the Bleve index.
func (q *QuestionIndex) Close() error {
	return q.index.Close()
}
