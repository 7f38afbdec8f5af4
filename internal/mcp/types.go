// Package mcp exposes the knowledge base to LLM clients over the Model
// Context Protocol: semantic search, document fetch, and index stats.
package mcp

import "time"

// SearchInput defines the input parameters for the search_knowledge tool.
type SearchInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=50,default=5,description=Maximum number of chunks to return"`
}

// SearchOutput contains the search results.
type SearchOutput struct {
	// Results is the list of matching chunks, closest first.
	Results []SearchHit `json:"results"`
	// Message provides informational context (e.g. "no matches").
	Message string `json:"message,omitempty"`
}

// SearchHit is one retrieved chunk.
type SearchHit struct {
	// Text is the chunk content.
	Text string `json:"text"`
	// DocumentID identifies the source document.
	DocumentID string `json:"document_id"`
	// Sequence is the chunk's position within its document.
	Sequence int `json:"sequence"`
	// Distance is the vector distance to the query (lower is closer).
	Distance float64 `json:"distance"`
}

// GetDocumentInput defines the input parameters for the get_document tool.
type GetDocumentInput struct {
	// ID is the document id to retrieve.
	ID string `json:"id" jsonschema:"required,description=The document id to retrieve"`
}

// GetDocumentOutput contains the retrieved document.
type GetDocumentOutput struct {
	// Content is the raw stored document text.
	Content string `json:"content"`
	// Filename is the original upload filename.
	Filename string `json:"filename"`
	// Title is the extracted document title, when known.
	Title string `json:"title,omitempty"`
	// StoredAt is when the document was ingested.
	StoredAt time.Time `json:"stored_at"`
	// Found indicates whether the document exists.
	Found bool `json:"found"`
}

// StatsInput defines the input for the get_stats tool. No parameters.
type StatsInput struct{}

// StatsOutput summarises the knowledge base.
type StatsOutput struct {
	DocumentCount int `json:"document_count"`
	ChunkCount    int `json:"chunk_count"`
	IndexSize     int `json:"index_size"`
}
