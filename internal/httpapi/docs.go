package httpapi

import "net/http"

// handleOpenAPISpec binds GET /openapi.json, exempt from bearer auth per
// spec.md §6. The document is a static literal describing the endpoint
// surface bound in Router; it is not generated from route reflection,
// matching spec.md §4.7's instruction that C7 never reaches into anything
// beyond its own binding responsibilities.
func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(openAPIDocument))
}

// handleDocs binds GET /docs: a minimal static HTML page pointing at
// /openapi.json, good enough for an operator to sanity-check the surface
// without standing up a separate documentation site.
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(docsHTML))
}

const openAPIDocument = `{
  "openapi": "3.0.0",
  "info": {"title": "Consensus Engine API", "version": "1.0.0"},
  "paths": {
    "/consensus": {"post": {"summary": "Run a single consensus query", "security": [{"bearerAuth": []}]}},
    "/consensus/batch": {"post": {"summary": "Run up to 50 consensus queries", "security": [{"bearerAuth": []}]}},
    "/models": {"get": {"summary": "List model descriptors and runtime status", "security": [{"bearerAuth": []}]}},
    "/analytics/performance": {"get": {"summary": "Aggregate query analytics", "security": [{"bearerAuth": []}]}},
    "/health": {"get": {"summary": "Liveness and dependency state"}},
    "/feedback": {"post": {"summary": "Submit a 1-5 rating tied to a consensus_id", "security": [{"bearerAuth": []}]}}
  },
  "components": {
    "securitySchemes": {
      "bearerAuth": {"type": "http", "scheme": "bearer"}
    }
  }
}`

const docsHTML = `<!DOCTYPE html>
<html>
<head><title>Consensus Engine API</title></head>
<body>
<h1>Consensus Engine API</h1>
<p>See <a href="/openapi.json">/openapi.json</a> for the machine-readable spec.</p>
</body>
</html>`
