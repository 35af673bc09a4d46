// Package api provides the HTTP API server answering retrieval queries over
// the corpus.
package api

import "net/http"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// MCPHandler, when set, is mounted at /mcp.
	MCPHandler http.Handler
}
