package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/devrank/pkg/metrics"
)

// errorCoder is implemented by the instrumented writer so writeError can
// report the API error code the response carries.
type errorCoder interface {
	setErrorCode(code string)
}

// MetricsMiddleware records request count, latency and, for 4xx/5xx
// responses, the error code under endpoint. endpoint is a fixed route name,
// never the raw path, so developer ids do not become label values.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		ms := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, ms)

		if rec.status < http.StatusBadRequest {
			return
		}
		code := rec.code
		if code == "" {
			code = statusClass(rec.status)
		}
		metrics.RecordErrorByEndpoint(endpoint, r.Method, code)
		metrics.RecordErrorByType(code, severity(rec.status))
		metrics.RecordErrorLatency("http", code, ms)
	}
}

// statusClass names errors that did not go through writeError, such as
// the mux's own 404 or 405.
func statusClass(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusTooManyRequests:
		return "backpressure"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "client_error"
	}
}

// severity is high for failures the caller cannot fix by changing the request.
func severity(status int) string {
	switch status {
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return "high"
	case http.StatusTooManyRequests:
		return "medium"
	default:
		return "low"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	code   string
	wrote  bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wrote {
		r.status = status
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) setErrorCode(code string) { r.code = code }
