package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"logtap/internal/config"
	"logtap/internal/correlation"
	"logtap/internal/event"
	"logtap/internal/pipeline"
)

const maxIngestBody = 1 << 20 // 1 MiB per request

// Server is the ingest daemon wrapped around a pipeline.
type Server struct {
	bind     string
	header   string
	pipe     *pipeline.Pipeline
	logger   *slog.Logger
	listener net.Listener
	server   *http.Server
}

// ingestEvent is the inbound JSON shape. Properties arrive unordered; the
// pipeline re-establishes ordering per event.
type ingestEvent struct {
	Level      string         `json:"level"`
	Source     string         `json:"source"`
	Message    string         `json:"message"`
	Properties map[string]any `json:"properties"`
}

// New builds a Server over the pipeline. logger carries the daemon's own
// operational logs, which deliberately do not route through the pipeline.
func New(cfg *config.Config, pipe *pipeline.Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		bind:   cfg.Relay.Bind,
		header: cfg.Relay.CorrelationHeader,
		pipe:   pipe,
		logger: logger.With(slog.String("component", "relay")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)

	s.server = &http.Server{
		Handler:           correlation.Middleware(s.header, mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start begins serving until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("relay listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("relay server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("relay listening", slog.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP server down. The pipeline is flushed separately by
// the caller, which owns its lifetime.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	events, err := decodeIngest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for _, in := range events {
		source := strings.TrimSpace(in.Source)
		if source == "" {
			source = "ingest"
		}
		props := make([]event.Property, 0, len(in.Properties))
		for name, value := range in.Properties {
			props = append(props, event.Property{Name: name, Value: value})
		}
		s.pipe.Emit(r.Context(), event.ParseLevel(in.Level), source, in.Message, props...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]int{"accepted": len(events)})
}

func decodeIngest(body []byte) ([]ingestEvent, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, errors.New("empty body")
	}
	if strings.HasPrefix(trimmed, "[") {
		var events []ingestEvent
		if err := json.Unmarshal(body, &events); err != nil {
			return nil, fmt.Errorf("decode event array: %w", err)
		}
		return events, nil
	}
	var single ingestEvent
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return []ingestEvent{single}, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats := s.pipe.Diagnostics().Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
