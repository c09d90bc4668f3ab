package models

// FramedResponse is a framed question ready for encoding.
type FramedResponse struct {
	Tokens []string `json:"tokens"`
	Length int      `json:"length"`
}

// EncodeResponse is the vector form of a framed question plus the tokens that were not in the vocabulary.
type EncodeResponse struct {
	Tokens  []string    `json:"tokens"`
	Vectors [][]float32 `json:"vectors"`
	Lost    []string    `json:"lost"`
}

// TextResponse is a reconstructed answer with the lost-token warning channel.
type TextResponse struct {
	Text string   `json:"text"`
	Lost []string `json:"lost"`
}

// QuestionHit is a known question matched by full-text search.
type QuestionHit struct {
	Question string  `json:"question"`
	Score    float64 `json:"score"`
}

// Neighbor is a vocabulary token with its similarity to a query.
type Neighbor struct {
	Token      string  `json:"token"`
	Similarity float64 `json:"similarity"`
}
