package search

import "context"

// Chunk is one retrievable piece of instructional content.
type Chunk struct {
	ID      string  `json:"id"`
	Subject string  `json:"subject,omitempty"`
	Grade   string  `json:"grade,omitempty"`
	CType   string  `json:"ctype,omitempty"`
	Title   string  `json:"title,omitempty"`
	Body    string  `json:"text"`
	Score   float64 `json:"score"`
}

// Query carries the search string, result count and repeatable filters.
type Query struct {
	Q        string
	K        int
	Subjects []string
	Grades   []string
	CTypes   []string
}

type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type Facets struct {
	Subjects []FacetValue `json:"subjects"`
	Grades   []FacetValue `json:"grades"`
	CTypes   []FacetValue `json:"ctypes"`
}

type Service interface {
	Search(ctx context.Context, q Query) ([]Chunk, error)
	Facets(ctx context.Context) (Facets, error)
	PutChunk(ctx context.Context, c Chunk) error
}
