// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package api

import (
	"log/slog"
	"net/http"

	"github.com/cartertinney/envmonitor/internal/log"
	"github.com/cartertinney/envmonitor/internal/wallclock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestIDHeader = "X-Request-Id"

// NewRouter wires the handler into a chi router. A nil gatherer disables
// /metrics.
func NewRouter(
	h *Handler,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(log.Wrap(logger)))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/ws", h.WebSocket)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/readings", h.Readings)
		r.Get("/summary", h.Summary)
		r.Get("/state", h.State)
		r.Get("/export.csv", h.Export)

		r.Post("/pause", h.Pause)
		r.Post("/resume", h.Resume)
		r.Post("/clear", h.Clear)
		r.Post("/reconnect", h.Reconnect)
		r.Post("/stop", h.Stop)
		r.Put("/alerts", h.Alerts)
	})
	return r
}

// requestID tags each request with a UUID unless the caller supplied one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func requestLogger(l log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := wallclock.Instance.Now()
			next.ServeHTTP(ww, r)
			l.Debug(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("elapsed", wallclock.Instance.Now().Sub(start)),
				slog.String("request_id", r.Header.Get(requestIDHeader)),
			)
		})
	}
}

