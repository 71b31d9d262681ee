package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/devcompanion/internal/chat"
	"github.com/garnizeh/devcompanion/internal/config"
)

// SetupRoutes wires every endpoint. CORS wraps the router so preflight
// requests are answered before route matching. reloader may be nil.
func SetupRoutes(cfg *config.Config, version, buildTime string, svc *chat.Service, reloader SchemaReloader) http.Handler {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	// Create handlers
	systemHandler := NewSystemHandler(cfg, svc)
	authHandler := NewAuthHandler(cfg.AdminPasswordHash, cfg.JWTSecret, cfg.TokenDuration)
	chatHandler := NewChatHandler(svc)
	convHandler := NewConversationsHandler(svc)
	adminHandler := NewAdminHandler(svc, reloader)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/diag", systemHandler.DiagHandler).Methods("GET")
	r.HandleFunc("/auth/token", authHandler.Token).Methods("POST")

	// Review endpoints
	r.HandleFunc("/chat", chatHandler.Chat).Methods("POST")
	r.HandleFunc("/chat/analyze", chatHandler.Analyze).Methods("POST")
	r.HandleFunc("/chat/submit", chatHandler.Submit).Methods("POST")
	r.HandleFunc("/chat/status/{job_id}", chatHandler.Status).Methods("GET")
	r.HandleFunc("/chat/result/{job_id}", chatHandler.Result).Methods("GET")

	r.HandleFunc("/conversations", convHandler.List).Methods("GET")
	r.HandleFunc("/conversations/{id}", convHandler.Get).Methods("GET")
	r.HandleFunc("/conversations/{id}", convHandler.Delete).Methods("DELETE")

	// Admin routes
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))
	admin.HandleFunc("/conversations", adminHandler.ClearConversations).Methods("DELETE")
	admin.HandleFunc("/jobs", adminHandler.CleanupJobs).Methods("DELETE")
	admin.HandleFunc("/ratelimit/reset", adminHandler.ResetRateLimits).Methods("POST")
	admin.HandleFunc("/schema/reload", adminHandler.ReloadSchema).Methods("POST")

	return CORSMiddleware(cfg.CORSOrigins)(r)
}
