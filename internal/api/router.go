package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Chat routes
		r.Post("/chat/query", apiHandler.ProcessQueryHandler)
		r.Get("/chat/history", apiHandler.GetChatHistoryHandler)
		r.Get("/chat/history/{chatID}", apiHandler.GetChatHandler)

		// Document routes, proxied to the embedding service
		r.Get("/documents", apiHandler.ListDocumentsHandler)
		r.Post("/documents/upload", apiHandler.UploadDocumentHandler)
		r.Post("/documents/search", apiHandler.SearchDocumentsHandler)
	})

	return r
}

// The API is consumed by browser frontends on other origins; the
// upstream deployment runs it fully open.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
