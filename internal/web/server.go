// Package web provides the HTTP API and status page for the ir-remote daemon.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sweeney/ir-remote/internal/engine"
	"github.com/sweeney/ir-remote/internal/ir"
	"github.com/sweeney/ir-remote/internal/status"
	"github.com/sweeney/ir-remote/internal/tx"
)

// DefaultHorizon is the event window used when GET /events has no horizon.
const DefaultHorizon = 60 * time.Second

const maxBodyBytes = 1 << 20

// Engine is the capture engine as seen by the HTTP API.
type Engine interface {
	StartCapture(ctx context.Context) error
	StopCapture(ctx context.Context) error
	RecentEvents(horizon time.Duration) []ir.Event
	ClearEvents(ctx context.Context) error
	Status() engine.Status
	Transmit(ctx context.Context, req tx.Request) (string, error)
	Troubleshoot(ctx context.Context, req tx.Request) ([]tx.Result, error)
}

// Server serves the HTTP API and status page.
type Server struct {
	httpServer *http.Server
	engine     Engine
	tracker    *status.Tracker
	logger     *slog.Logger
}

// New creates a Server for the engine. Status output combines the tracker
// snapshot with the engine's live status.
func New(addr string, eng Engine, tracker *status.Tracker, logger *slog.Logger) *Server {
	s := &Server{engine: eng, tracker: tracker, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("POST /capture/start", s.handleStart)
	mux.HandleFunc("POST /capture/stop", s.handleStop)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("DELETE /events", s.handleClear)
	mux.HandleFunc("POST /transmit", s.handleTransmit)
	mux.HandleFunc("POST /transmit/troubleshoot", s.handleTroubleshoot)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's request handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) snapshot() status.Snapshot {
	snap := s.tracker.Snapshot()
	snap.Engine = s.engine.Status()
	return snap
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.snapshot(), s.engine.RecentEvents(5*time.Minute))
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.snapshot()))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.engine.Status().Listening {
		writeJSON(w, http.StatusOK, MessageJSON{Success: true, Message: "IR listener is already running."})
		return
	}
	if err := s.engine.StartCapture(r.Context()); err != nil {
		s.writeError(w, "start capture", err)
		return
	}
	st := s.engine.Status()
	writeJSON(w, http.StatusOK, MessageJSON{
		Success: true,
		Message: fmt.Sprintf("IR listener started on GPIO%d.", st.Pin),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Status().Listening {
		writeJSON(w, http.StatusOK, MessageJSON{Success: true, Message: "IR listener is not running."})
		return
	}
	if err := s.engine.StopCapture(r.Context()); err != nil {
		s.writeError(w, "stop capture", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageJSON{Success: true, Message: "IR listener stopped."})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	horizon := DefaultHorizon
	if v := r.URL.Query().Get("horizon"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			writeJSON(w, http.StatusBadRequest, MessageJSON{Error: fmt.Sprintf("invalid horizon %q: want positive seconds", v)})
			return
		}
		horizon = time.Duration(secs) * time.Second
	}

	events := s.engine.RecentEvents(horizon)
	out := EventsJSON{
		HorizonSeconds: int(horizon / time.Second),
		Count:          len(events),
		Events:         make([]EventJSON, 0, len(events)),
	}
	for _, ev := range events {
		out.Events = append(out.Events, eventJSON(ev))
	}
	if len(events) == 0 {
		out.Message = fmt.Sprintf("No IR events in the last %d seconds.", out.HorizonSeconds)
	} else {
		out.Message = fmt.Sprintf("%d IR event(s) in the last %d seconds.", len(events), out.HorizonSeconds)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearEvents(r.Context()); err != nil {
		s.writeError(w, "clear events", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageJSON{Success: true, Message: "Event history cleared."})
}

func (s *Server) handleTransmit(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTransmit(w, r)
	if !ok {
		return
	}
	msg, err := s.engine.Transmit(r.Context(), req.Request())
	if err != nil {
		s.writeError(w, "transmit", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageJSON{Success: true, Message: msg})
}

func (s *Server) handleTroubleshoot(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTransmit(w, r)
	if !ok {
		return
	}
	results, err := s.engine.Troubleshoot(r.Context(), req.Request())
	if err != nil {
		s.writeError(w, "troubleshoot", err)
		return
	}

	out := TroubleshootJSON{Results: make([]ResultJSON, 0, len(results))}
	succeeded := 0
	for _, res := range results {
		out.Results = append(out.Results, resultJSON(res))
		if res.Success {
			succeeded++
		}
	}
	out.Success = succeeded > 0
	out.Message = fmt.Sprintf("Sent with %d of %d settings. Note which one the device responded to.", succeeded, len(results))
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) decodeTransmit(w http.ResponseWriter, r *http.Request) (TransmitRequest, bool) {
	var req TransmitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageJSON{Error: fmt.Sprintf("invalid request body: %v", err)})
		return req, false
	}
	return req, true
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "op", op, "err", err)
	} else {
		s.logger.Warn("request rejected", "op", op, "err", err)
	}
	writeJSON(w, code, MessageJSON{Error: err.Error()})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, ir.ErrInvalidCode), errors.Is(err, ir.ErrUnsupportedProtocol):
		return http.StatusBadRequest
	case errors.Is(err, ir.ErrHardwareUnavailable), errors.Is(err, ir.ErrDaemonUnreachable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
