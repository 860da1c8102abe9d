package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /info", s.handleInfo)

	// File lifecycle.
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /list", s.handleList)
	mux.HandleFunc("DELETE /delete", s.handleDelete)
	mux.HandleFunc("POST /delete", s.handleDeleteOverride)

	// Stored content.
	mux.HandleFunc("GET /uploads/{key}", s.handleContent)

	// Maintenance.
	mux.HandleFunc("POST /admin/reconcile", s.handleReconcile)

	return mux
}
