package middleware

import (
	"net/http"
	"time"

	"lyricsync-go/logcolors"
	"lyricsync-go/stats"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RequestIDHeader carries the per-request id back to the client
const RequestIDHeader = "X-Request-ID"

// knownRoutes keeps metric labels bounded; anything else is "other"
var knownRoutes = map[string]bool{
	"/":                      true,
	"/identify":              true,
	"/lyrics":                true,
	"/lrc/parse":             true,
	"/health":                true,
	"/stats":                 true,
	"/cache":                 true,
	"/cache/clear":           true,
	"/circuit-breaker":       true,
	"/circuit-breaker/reset": true,
	"/metrics":               true,
}

// ResponseRecorder wraps http.ResponseWriter to capture status and size
type ResponseRecorder struct {
	http.ResponseWriter
	StatusCode int
	BodySize   int
}

// NewResponseRecorder creates a recorder defaulting to 200 OK
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (rec *ResponseRecorder) WriteHeader(statusCode int) {
	rec.StatusCode = statusCode
	rec.ResponseWriter.WriteHeader(statusCode)
}

func (rec *ResponseRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.BodySize += n
	return n, err
}

func getStatusColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return logcolors.Green
	case statusCode >= 300 && statusCode < 400:
		return logcolors.Cyan
	case statusCode >= 400 && statusCode < 500:
		return logcolors.Yellow
	case statusCode >= 500:
		return logcolors.Red
	default:
		return logcolors.Reset
	}
}

func routeLabel(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// LoggingMiddleware logs every request and feeds the stats counters.
// A client-supplied X-Request-ID is kept; otherwise a new one is generated.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		rec := NewResponseRecorder(w)
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		s := stats.Get()
		s.RecordRequest(r.URL.Path)
		s.RecordStatusCode(rec.StatusCode)
		s.RecordResponseTime(duration, routeLabel(r.URL.Path), rec.StatusCode)

		color := getStatusColor(rec.StatusCode)
		log.WithFields(log.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.StatusCode,
			"size":       rec.BodySize,
			"duration":   duration.String(),
			"remote":     r.RemoteAddr,
		}).Infof("%s %s%d%s %s %s", logcolors.LogHTTP, color, rec.StatusCode, logcolors.Reset, r.Method, r.URL.Path)
	})
}
