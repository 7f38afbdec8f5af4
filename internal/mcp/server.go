package mcp

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/rag-server/internal/retrieval"
)

// Server wraps the MCP server with its retrieval dependency.
type Server struct {
	server  *mcp.Server
	service *retrieval.Service
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(service *retrieval.Service) *Server {
	impl := &mcp.Implementation{
		Name:    "rag-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_knowledge",
		Description: "Search the ingested knowledge base semantically. Returns the closest chunks with their source document ids.",
	}, makeSearchHandler(service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_document",
		Description: "Retrieve a stored document by id. Returns the full raw content.",
	}, makeGetDocumentHandler(service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_stats",
		Description: "Get knowledge base statistics: document count, chunk count, and index size.",
	}, makeStatsHandler(service))

	return &Server{server: server, service: service}
}

// Run starts the server on stdio transport (blocks until the client
// disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns a Streamable HTTP handler for the MCP server,
// mountable on any mux path (e.g. "/mcp").
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{})
}
