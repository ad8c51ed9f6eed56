package frontend

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tuannvm/mcp-creative-agent/internal/agent"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
	"github.com/tuannvm/mcp-creative-agent/internal/monitoring"
)

//go:embed static/index.html
var indexPage []byte

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20

	defaultRequestTimeout  = 5 * time.Minute
	defaultShutdownTimeout = 10 * time.Second
)

type chatRequest struct {
	Input    string `json:"input"`
	ThreadID string `json:"thread_id,omitempty"`
}

type clearRequest struct {
	ThreadID string `json:"thread_id,omitempty"`
}

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Server      string `json:"server"`
}

type requestIDKey struct{}

// HTTPOptions configures the web frontend
type HTTPOptions struct {
	ThreadID        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// Servers, when set, lists the connected tool servers on /healthz
	Servers func() []string
}

// HTTPServer serves the chat API and the browser page
type HTTPServer struct {
	agent  Agent
	opts   HTTPOptions
	logger *logging.Logger
	mux    *http.ServeMux
}

// NewHTTPServer registers the routes for a
func NewHTTPServer(a Agent, opts HTTPOptions, logger *logging.Logger) *HTTPServer {
	if opts.ThreadID == "" {
		opts.ThreadID = config.DefaultWebThreadID
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &HTTPServer{
		agent:  a,
		opts:   opts,
		logger: logger.WithName("http-frontend"),
		mux:    http.NewServeMux(),
	}
	s.route("POST /chat", "/chat", s.handleChat)
	s.route("POST /clear", "/clear", s.handleClear)
	s.route("GET /tools", "/tools", s.handleTools)
	s.route("GET /healthz", "/healthz", s.handleHealth)
	s.route("GET /{$}", "/", s.handleIndex)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

// Handler returns the root handler, for tests and custom servers
func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

// Run serves on addr until ctx is cancelled
func (s *HTTPServer) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting web server on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("failed to start web server: %w", err)
			return
		}
		errChan <- nil
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Context cancelled. Shutting down web server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("web server shutdown failed: %w", err)
		}
		return <-errChan
	case err := <-errChan:
		return err
	}
}

// route wraps h with request ids and request metrics labelled by path
func (s *HTTPServer) route(pattern, path string, h http.HandlerFunc) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		h(rec, r)

		monitoring.HTTPRequests.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
		s.logger.DebugKV("HTTP request", "request_id", id, "method", r.Method, "path", path,
			"status", rec.status, "duration", time.Since(start))
	}))
}

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil || strings.TrimSpace(req.Input) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No input provided"})
		return
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = s.opts.ThreadID
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	result, err := s.agent.Run(ctx, threadID, req.Input)
	if result.State == agent.StateError {
		s.logger.ErrorKV("Chat request failed", "request_id", requestID(r.Context()), "thread_id", threadID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": result.Answer})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": result.Answer})
}

func (s *HTTPServer) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if r.ContentLength != 0 {
		// an unreadable body clears the default thread
		_ = decodeBody(w, r, &req)
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = s.opts.ThreadID
	}

	if err := s.agent.Clear(r.Context(), threadID); err != nil {
		s.logger.ErrorKV("Clear request failed", "request_id", requestID(r.Context()), "thread_id", threadID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error clearing history: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation history cleared"})
}

func (s *HTTPServer) handleTools(w http.ResponseWriter, _ *http.Request) {
	descriptors := s.agent.ListTools()
	tools := make([]toolInfo, len(descriptors))
	for i, d := range descriptors {
		tools[i] = toolInfo{Name: d.Name, Description: d.Description, Server: d.ServerName}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": tools})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]interface{}{"status": "ok", "tools": len(s.agent.ListTools())}
	if s.opts.Servers != nil {
		servers := s.opts.Servers()
		if servers == nil {
			servers = []string{}
		}
		body["servers"] = servers
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *HTTPServer) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
