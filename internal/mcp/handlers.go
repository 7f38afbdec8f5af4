package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/rag-server/internal/docstore"
	"github.com/bull/rag-server/internal/retrieval"
)

// makeSearchHandler creates the search_knowledge tool handler. The query
// is embedded once and matched against the chunk index; results come
// back closest first.
func makeSearchHandler(service *retrieval.Service) func(
	context.Context, *mcp.CallToolRequest, SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, SearchOutput, error,
	) {
		results, err := service.Search(ctx, input.Query, input.MaxResults)
		if err != nil {
			if errors.Is(err, retrieval.ErrEmptyQuery) {
				return nil, SearchOutput{}, fmt.Errorf("query must not be empty")
			}
			return nil, SearchOutput{}, fmt.Errorf("search failed: %w", err)
		}

		hits := make([]SearchHit, len(results))
		for i, r := range results {
			hits[i] = SearchHit{
				Text:       r.Text,
				DocumentID: r.DocumentID,
				Sequence:   r.Sequence,
				Distance:   r.Distance,
			}
		}

		if len(hits) == 0 {
			return nil, SearchOutput{
				Results: []SearchHit{},
				Message: "No matching chunks found. Try broader search terms or ingest more documents.",
			}, nil
		}
		return nil, SearchOutput{Results: hits}, nil
	}
}

// makeGetDocumentHandler creates the get_document tool handler. Unknown
// ids are a clear miss, not a protocol error.
func makeGetDocumentHandler(service *retrieval.Service) func(
	context.Context, *mcp.CallToolRequest, GetDocumentInput,
) (*mcp.CallToolResult, GetDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetDocumentInput) (
		*mcp.CallToolResult, GetDocumentOutput, error,
	) {
		data, meta, err := service.Document(input.ID)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return nil, GetDocumentOutput{Found: false}, nil
			}
			return nil, GetDocumentOutput{}, fmt.Errorf("fetch document: %w", err)
		}

		return nil, GetDocumentOutput{
			Content:  string(data),
			Filename: meta.Filename,
			Title:    meta.Title,
			StoredAt: meta.StoredAt,
			Found:    true,
		}, nil
	}
}

// makeStatsHandler creates the get_stats tool handler.
func makeStatsHandler(service *retrieval.Service) func(
	context.Context, *mcp.CallToolRequest, StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (
		*mcp.CallToolResult, StatsOutput, error,
	) {
		stats, err := service.Stats(ctx)
		if err != nil {
			return nil, StatsOutput{}, fmt.Errorf("collect stats: %w", err)
		}
		return nil, StatsOutput{
			DocumentCount: stats.DocumentCount,
			ChunkCount:    stats.ChunkCount,
			IndexSize:     stats.IndexSize,
		}, nil
	}
}
