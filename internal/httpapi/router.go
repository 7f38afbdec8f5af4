package httpapi

import "net/http"

// Router assembles the HTTP mux. The metrics and MCP handlers are
// optional; pass nil to skip mounting them.
func Router(h *Handler, metricsHandler, mcpHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/documents", h.Upload)
	mux.HandleFunc("GET /api/v1/documents", h.ListDocuments)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("DELETE /api/v1/documents", h.Clear)
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.JobStatus)
	mux.HandleFunc("POST /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /health", h.Health)

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	if mcpHandler != nil {
		mux.Handle("/mcp", mcpHandler)
	}

	return mux
}
