package rpc

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"margincore/native/common"
	"margincore/observability/metrics"
)

const requestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withTelemetry tags every request with an id, logs it, and records the
// latency histogram.
func (s *Server) withTelemetry(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		elapsed := time.Since(start)

		metrics.Margin().ObserveRequest(route, http.StatusText(recorder.status), elapsed.Seconds())
		if s.log != nil {
			s.log.Info("rpc request",
				"route", route,
				"method", r.Method,
				"status", recorder.status,
				"request_id", requestID,
				"duration_ms", elapsed.Milliseconds(),
			)
		}
	}
}

// withQuota enforces the per-client request quota keyed by remote IP.
func (s *Server) withQuota(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.quota.MaxRequestsPerWindow == 0 {
			next(w, r)
			return
		}
		client := clientKey(r)
		window := uint64(time.Now().Unix())
		if s.quota.WindowSeconds > 1 {
			window /= uint64(s.quota.WindowSeconds)
		}
		s.quotaMu.Lock()
		usage, err := common.CheckQuota(s.quota, window, s.usage[client])
		if err == nil {
			s.usage[client] = usage
		}
		s.quotaMu.Unlock()
		if err != nil {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
