package main

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	htMetrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
)

// handleHTTPMetrics records request metrics labelled by route template
// so entry ids do not blow up label cardinality.
func handleHTTPMetrics(reg prometheus.Registerer) mux.MiddlewareFunc {
	metricsMw := middleware.New(middleware.Config{
		Recorder: htMetrics.NewRecorder(htMetrics.Config{Registry: reg}),
	})

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wi := &responseWriterInterceptor{
				statusCode:     http.StatusOK,
				ResponseWriter: w,
			}
			reporter := &muxReporter{w: wi, r: r}
			metricsMw.Measure("", reporter, func() {
				h.ServeHTTP(wi, r)
			})
		})
	}
}

type muxReporter struct {
	w *responseWriterInterceptor
	r *http.Request
}

func (m *muxReporter) Method() string { return m.r.Method }

func (m *muxReporter) Context() context.Context { return m.r.Context() }

func (m *muxReporter) URLPath() string {
	route := mux.CurrentRoute(m.r)
	if route == nil {
		return m.r.URL.Path
	}
	path, err := route.GetPathTemplate()
	if err != nil {
		return m.r.URL.Path
	}
	return path
}

func (m *muxReporter) StatusCode() int { return m.w.statusCode }

func (m *muxReporter) BytesWritten() int64 { return int64(m.w.bytesWritten) }

type responseWriterInterceptor struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *responseWriterInterceptor) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterInterceptor) Write(p []byte) (int, error) {
	w.bytesWritten += len(p)
	return w.ResponseWriter.Write(p)
}
