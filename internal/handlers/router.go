package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/milestones/internal/app"
	"github.com/shrimpsizemoose/milestones/internal/metrics"
)

func NewRouter(service *app.Service) http.Handler {
	mux := http.NewServeMux()

	students := NewStudentsHandler(service)
	rosterHandler := NewRosterHandler(service)
	sessionHandler := NewSessionHandler(service)

	mux.Handle("/api/students", students)

	mux.HandleFunc("POST /api/roster", rosterHandler.HandleAdd)
	mux.HandleFunc("POST /api/roster/save", rosterHandler.HandleSave)
	mux.HandleFunc("PUT /api/roster/{id}", rosterHandler.HandleUpdateInfo)
	mux.HandleFunc("DELETE /api/roster/{id}", rosterHandler.HandleRemove)
	mux.HandleFunc("GET /api/roster/{id}/summary", rosterHandler.HandleSummary)
	mux.HandleFunc("GET /api/categories", rosterHandler.HandleCategories)

	mux.HandleFunc("GET /api/session", sessionHandler.HandleState)
	mux.HandleFunc("POST /api/session/select/{id}", sessionHandler.HandleSelect)
	mux.HandleFunc("POST /api/session/rate", sessionHandler.HandleRate)
	mux.HandleFunc("POST /api/session/annotate", sessionHandler.HandleAnnotate)
	mux.HandleFunc("POST /api/session/image", sessionHandler.HandleImage)
	mux.HandleFunc("GET /api/session/summary", sessionHandler.HandleSummary)
	mux.HandleFunc("POST /api/session/save", sessionHandler.HandleSave)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := service.Store.Ping(ctx); err != nil {
			logger.Error.Printf("Health check failed: %v", err)
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("/metrics", promhttp.Handler())

	return instrument(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request durations labelled by route pattern so ids
// in the path do not blow up label cardinality.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		metrics.APIRequestDuration.WithLabelValues(
			path,
			r.Method,
			strconv.Itoa(rec.status),
		).Observe(time.Since(start).Seconds())
		logger.Debug.Printf("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
