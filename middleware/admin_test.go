package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAdminTokenMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("admin"))
	})

	tests := []struct {
		name           string
		configured     string
		header         string
		expectedStatus int
		expectedBody   string
	}{
		{"Valid token", "secret", "secret", http.StatusOK, "admin"},
		{"Valid bearer token", "secret", "Bearer secret", http.StatusOK, "admin"},
		{"Missing token", "secret", "", http.StatusUnauthorized, "Authorization header"},
		{"Wrong token", "secret", "nope", http.StatusUnauthorized, "not valid"},
		{"Prefix of token", "secret", "secre", http.StatusUnauthorized, "not valid"},
		{"Not configured", "", "anything", http.StatusUnauthorized, "disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AdminTokenMiddleware(tt.configured)(ok)
			req := httptest.NewRequest("GET", "/stats", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.expectedBody) {
				t.Errorf("Expected body to contain %q, got %q", tt.expectedBody, rec.Body.String())
			}
			if tt.expectedStatus == http.StatusUnauthorized && rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Expected JSON content type, got %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}
