package main

import (
	"net/http"

	"lyricsync-go/middleware"
	"lyricsync-go/stats"

	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes for the API
func setupRoutes(router *mux.Router) {
	// Pipeline endpoints
	router.HandleFunc("/identify", identifyHandler).Methods(http.MethodPost)
	router.HandleFunc("/lyrics", lyricsHandler).Methods(http.MethodGet)
	router.HandleFunc("/lrc/parse", parseLRCHandler).Methods(http.MethodPost)

	// Public health and metrics
	router.HandleFunc("/health", getHealthStatus).Methods(http.MethodGet)
	router.Handle("/metrics", stats.Get().Metrics().Handler()).Methods(http.MethodGet)

	// Admin endpoints, guarded by ADMIN_TOKEN
	admin := router.NewRoute().Subrouter()
	admin.Use(middleware.AdminTokenMiddleware(conf.Configuration.AdminToken))
	admin.HandleFunc("/stats", getStats).Methods(http.MethodGet)
	admin.HandleFunc("/cache", getCacheDump).Methods(http.MethodGet)
	admin.HandleFunc("/cache/clear", clearCache).Methods(http.MethodPost)
	admin.HandleFunc("/circuit-breaker", getCircuitBreakerStatus).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breaker/reset", resetCircuitBreaker).Methods(http.MethodPost)

	// Help endpoint
	router.HandleFunc("/", helpHandler).Methods(http.MethodGet)
}
