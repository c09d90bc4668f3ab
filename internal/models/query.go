package models

import "fmt"

// TextRequest carries a single question or answer text.
type TextRequest struct {
	Text string `json:"text"`
}

// Validate ensures the text is present.
func (r *TextRequest) Validate() error {
	if r.Text == "" {
		return fmt.Errorf("text cannot be empty")
	}
	return nil
}

// DecodeRequest carries an [L][D] vector array to turn back into text.
type DecodeRequest struct {
	Vectors [][]float32 `json:"vectors"`
}

// Validate ensures the array is non-empty and rectangular.
func (r *DecodeRequest) Validate() error {
	if len(r.Vectors) == 0 {
		return fmt.Errorf("vectors cannot be empty")
	}
	dim := len(r.Vectors[0])
	for i, row := range r.Vectors {
		if len(row) != dim {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), dim)
		}
	}
	return nil
}

// QuestionSearchQuery is a full-text lookup over known questions.
type QuestionSearchQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	Fuzzy bool   `json:"fuzzy,omitempty"`
}

// Validate ensures the query is present and clamps limit.
func (q *QuestionSearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}
