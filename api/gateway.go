package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"AgriDataHub/api/constants"
	"AgriDataHub/internal/logger"
)

// maxLoggedBody caps how much of an error response goes into the audit line.
const maxLoggedBody = 512

func auditLine(msg string) {
	logger.Audit("%s", msg)
}

// AuditRequests logs every request and its outcome as [Gateway] audit lines
// and attaches the X-User-Id header as the acting user.
func AuditRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		actor := strings.TrimSpace(r.Header.Get(constants.HeaderActor))
		if actor != "" {
			r = r.WithContext(WithActor(r.Context(), actor))
		}
		auditLine(fmt.Sprintf("[Gateway] Incoming request: %s %s from %s userId=%s", r.Method, r.URL.Path, clientIP, actor))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		elapsed := time.Since(start).Round(time.Millisecond)
		if rw.statusCode >= 400 {
			body := rw.body.String()
			if len(body) > maxLoggedBody {
				body = body[:maxLoggedBody]
			}
			auditLine(fmt.Sprintf("[Gateway][ERROR] %s %s status %d in %s, error: %s", r.Method, r.URL.Path, rw.statusCode, elapsed, strings.TrimSpace(body)))
			return
		}
		auditLine(fmt.Sprintf("[Gateway] %s %s status %d in %s", r.Method, r.URL.Path, rw.statusCode, elapsed))
	})
}

// NotFound answers unmatched routes with the error envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	RespondWithError(w, http.StatusNotFound, constants.KindNotFound, constants.ErrRouteNotFound+": "+r.URL.Path)
}

// MethodNotAllowed answers a known path hit with the wrong verb.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	RespondWithError(w, http.StatusMethodNotAllowed, constants.KindBadRequest, constants.ErrMethodNotAllowed)
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	RespondWithPayload(w, http.StatusOK, map[string]interface{}{constants.KeyMessage: "API Gateway is healthy"})
}

// responseWriter wraps http.ResponseWriter to capture status code and error bodies
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode >= 400 && rw.body.Len() < maxLoggedBody {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}
