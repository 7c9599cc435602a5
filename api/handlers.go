// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package api exposes pipeline snapshots and operator commands over HTTP and
// streams applied readings over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cartertinney/envmonitor/alert"
	"github.com/cartertinney/envmonitor/ingest"
	"github.com/cartertinney/envmonitor/internal/log"
	"github.com/cartertinney/envmonitor/internal/wallclock"
	"github.com/cartertinney/envmonitor/snapshot"
	"github.com/gorilla/websocket"
	"github.com/relvacode/iso8601"
)

type (
	// Controller accepts operator commands. It is implemented by
	// *ingest.Loop.
	Controller interface {
		Pause()
		Resume()
		Clear()
		SetAlertsEnabled(enabled bool)
		Reconnect(ctx context.Context) error
		Stop()
		State() ingest.ConnState
		Position() (cursor, total int, ok bool)
	}

	// Handler serves the HTTP API.
	Handler struct {
		reader   *snapshot.Reader
		control  Controller
		hub      *Hub
		upgrader websocket.Upgrader
		log      log.Logger
	}

	// StateResponse is the body of GET /api/state and of every command.
	StateResponse struct {
		Alerts     alert.State      `json:"alerts"`
		Connection ingest.ConnState `json:"connection"`
		Buffer     BufferState      `json:"buffer"`
		Replay     *ReplayState     `json:"replay,omitempty"`
	}

	BufferState struct {
		Length   int `json:"length"`
		Capacity int `json:"capacity"`
	}

	ReplayState struct {
		Cursor int `json:"cursor"`
		Total  int `json:"total"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}

	alertsRequest struct {
		Enabled *bool `json:"enabled"`
	}
)

func NewHandler(
	reader *snapshot.Reader,
	control Controller,
	hub *Hub,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		reader:  reader,
		control: control,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.Wrap(logger),
	}
}

// Readings serves GET /api/readings. The since, anomalies and tail filters
// are applied in that order to a single snapshot.
func (h *Handler) Readings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	readings := h.reader.Full()

	if v := q.Get("since"); v != "" {
		since, err := iso8601.ParseString(v)
		if err != nil {
			h.error(w, r, http.StatusBadRequest,
				fmt.Errorf("invalid since: %w", err))
			return
		}
		readings = snapshot.Since(readings, since)
	}

	if v := q.Get("anomalies"); v != "" {
		only, err := strconv.ParseBool(v)
		if err != nil {
			h.error(w, r, http.StatusBadRequest,
				fmt.Errorf("invalid anomalies: %w", err))
			return
		}
		if only {
			readings = snapshot.Anomalies(readings)
		}
	}

	if v := q.Get("tail"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k < 0 {
			h.error(w, r, http.StatusBadRequest,
				errors.New("tail must be a non-negative integer"))
			return
		}
		readings = snapshot.Tail(readings, k)
	}

	h.json(w, r, http.StatusOK, readings)
}

// Summary serves GET /api/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	h.json(w, r, http.StatusOK, h.reader.Describe())
}

// State serves GET /api/state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	h.json(w, r, http.StatusOK, h.state())
}

// Export serves GET /api/export.csv.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	name := snapshot.ExportFilename(wallclock.Instance.Now())
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", name))
	if err := snapshot.WriteCSV(w, h.reader.Full()); err != nil {
		h.log.Err(r.Context(), err)
	}
}

func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.control.Pause()
	h.State(w, r)
}

func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.control.Resume()
	h.State(w, r)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.control.Clear()
	h.State(w, r)
}

func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	h.control.Stop()
	h.State(w, r)
}

// Reconnect serves POST /api/reconnect. A failed attempt is reported as
// 502 and leaves the loop disconnected.
func (h *Handler) Reconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Reconnect(r.Context()); err != nil {
		h.error(w, r, http.StatusBadGateway, err)
		return
	}
	h.State(w, r)
}

// Alerts serves PUT /api/alerts with body {"enabled": bool}.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	var req alertsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, r, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if req.Enabled == nil {
		h.error(w, r, http.StatusBadRequest, errors.New("enabled is required"))
		return
	}
	h.control.SetAlertsEnabled(*req.Enabled)
	h.State(w, r)
}

// WebSocket serves GET /ws.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		h.log.Warn(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	c := &client{hub: h.hub, conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.hub.attach(r.Context(), c) {
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (h *Handler) state() StateResponse {
	v := h.reader.View()
	resp := StateResponse{
		Alerts:     v.State,
		Connection: h.control.State(),
		Buffer:     BufferState{Length: len(v.Readings), Capacity: v.Capacity},
	}
	if cursor, total, ok := h.control.Position(); ok {
		resp.Replay = &ReplayState{Cursor: cursor, Total: total}
	}
	return resp
}

// json replies with v. The body is encoded before any header is written, so
// an unencodable value turns into a 500 rather than a truncated 200.
func (h *Handler) json(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.log.Err(r.Context(), err, slog.String("path", r.URL.Path))
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "response encoding failed"})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		h.log.Warn(r.Context(), "response write failed",
			slog.String("error", err.Error()))
	}
}

func (h *Handler) error(w http.ResponseWriter, r *http.Request, status int, err error) {
	h.log.Warn(r.Context(), "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	h.json(w, r, status, errorResponse{Error: err.Error()})
}
