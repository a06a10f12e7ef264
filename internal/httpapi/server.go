// Package httpapi exposes the coordinator over HTTP. Sessions stream as
// NDJSON event lines; non-streaming requests answer with one JSON object.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/runner"
	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ProcessChat(ctx context.Context, sessionID string, req types.ChatRequest) <-chan types.ChatEvent
	ProcessTTS(ctx context.Context, sessionID string, req types.TTSRequest) <-chan types.AudioEvent
	ProcessASR(ctx context.Context, sessionID string, req types.ASRRequest) <-chan types.TranscriptEvent
	Cancel(sessionID string) bool
	ListRunners() []types.RunnerInfo
	Status() types.StatusResponse
	Ready() bool
}

// SessionHeader carries a caller-chosen session id in and the effective one out.
const SessionHeader = "X-Session-ID"

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{SessionHeader},
		}))
	}

	h := &handlers{svc: svc}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", h.chat)
		r.Post("/tts", h.tts)
		r.Post("/asr", h.asr)
		r.Delete("/sessions/{id}", h.cancel)
	})
	r.Get("/runners", h.runners)
	r.Get("/status", h.status)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no runner available"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

// chat godoc
// @Summary  Chat completion
// @Tags     sessions
// @Accept   json
// @Produce  json,application/x-ndjson
// @Param    request  body      types.ChatRequest  true  "chat request"
// @Success  200      {object}  types.ChatEvent
// @Failure  400      {object}  types.ErrorResponse
// @Router   /v1/chat [post]
func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := sessionContext(r.Context())
	defer cancel()
	serveEvents(w, r, req.Stream, h.svc.ProcessChat(ctx, sessionID(r), req), chatEventMeta)
}

// tts godoc
// @Summary  Text to speech
// @Tags     sessions
// @Accept   json
// @Produce  json,application/x-ndjson
// @Param    request  body      types.TTSRequest  true   "speech request"
// @Param    stream   query     bool              false  "stream audio chunks"
// @Success  200      {object}  types.AudioEvent
// @Failure  400      {object}  types.ErrorResponse
// @Router   /v1/tts [post]
func (h *handlers) tts(w http.ResponseWriter, r *http.Request) {
	var req types.TTSRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := sessionContext(r.Context())
	defer cancel()
	serveEvents(w, r, queryBool(r, "stream"), h.svc.ProcessTTS(ctx, sessionID(r), req), audioEventMeta)
}

// asr godoc
// @Summary  Speech to text
// @Tags     sessions
// @Accept   json
// @Produce  json,application/x-ndjson
// @Param    request  body      types.ASRRequest  true  "transcription request"
// @Success  200      {object}  types.TranscriptEvent
// @Failure  400      {object}  types.ErrorResponse
// @Router   /v1/asr [post]
func (h *handlers) asr(w http.ResponseWriter, r *http.Request) {
	var req types.ASRRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := sessionContext(r.Context())
	defer cancel()
	serveEvents(w, r, req.Stream, h.svc.ProcessASR(ctx, sessionID(r), req), transcriptEventMeta)
}

// cancel godoc
// @Summary  Cancel an in-flight session
// @Tags     sessions
// @Param    id   path  string  true  "session id"
// @Success  204
// @Failure  404  {object}  types.ErrorResponse
// @Router   /v1/sessions/{id} [delete]
func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.svc.Cancel(id) {
		writeJSONError(w, http.StatusNotFound, "no such session", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// runners godoc
// @Summary  List registered runners
// @Tags     engine
// @Produce  json
// @Success  200  {object}  types.RunnersResponse
// @Router   /runners [get]
func (h *handlers) runners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.RunnersResponse{Runners: h.svc.ListRunners()})
}

// status godoc
// @Summary  Engine status
// @Tags     engine
// @Produce  json
// @Success  200  {object}  types.StatusResponse
// @Router   /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", runner.CodeInvalidInput)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body", runner.CodeInvalidInput)
		return false
	}
	return true
}

func sessionID(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	return r.URL.Query().Get("session_id")
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// eventMeta exposes what the transport needs from an event.
type eventMeta[E any] func(E) (session string, terminal bool, err *types.ErrorBody)

func chatEventMeta(e types.ChatEvent) (string, bool, *types.ErrorBody) {
	return e.SessionID, e.Terminal(), e.Error
}

func audioEventMeta(e types.AudioEvent) (string, bool, *types.ErrorBody) {
	return e.SessionID, e.Terminal(), e.Error
}

func transcriptEventMeta(e types.TranscriptEvent) (string, bool, *types.ErrorBody) {
	return e.SessionID, e.Terminal(), e.Error
}

// serveEvents writes a session's events. The first event decides the
// status: an immediate error answers with a mapped status and a JSON error.
// Otherwise streaming writes one NDJSON line per event and non-streaming
// writes only the terminal event. The channel is always drained.
func serveEvents[E any](w http.ResponseWriter, r *http.Request, stream bool, events <-chan E, meta eventMeta[E]) {
	log := requestLogger(r)
	lvl := requestLogLevel(r)
	start := time.Now()
	status := http.StatusOK
	defer func() {
		for range events {
		}
		if lvl >= LevelInfo || (lvl >= LevelError && status >= 500) {
			log.Info().Int("status", status).Dur("dur", time.Since(start)).Msg("session end")
		}
	}()

	first, ok := <-events
	if !ok {
		// Cancelled before anything was produced.
		status = 499
		writeJSONError(w, status, "session cancelled", runner.CodeCancelled)
		return
	}
	id, terminal, errBody := meta(first)
	if id != "" {
		w.Header().Set(SessionHeader, id)
	}
	if lvl >= LevelInfo {
		log.Info().Str("session", id).Bool("stream", stream).Msg("session start")
	}
	if terminal && errBody != nil {
		status = writeEventError(w, errBody)
		return
	}

	if !stream {
		last := first
		for ev := range events {
			last = ev
		}
		if _, terminal, errBody := meta(last); !terminal {
			status = 499
			writeJSONError(w, status, "session cancelled", runner.CodeCancelled)
			return
		} else if errBody != nil {
			status = writeEventError(w, errBody)
			return
		}
		writeJSON(w, http.StatusOK, last)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	var out io.Writer = w
	if lvl >= LevelDebug {
		out = io.MultiWriter(w, &eventLineWriter{log: log})
	}
	enc := json.NewEncoder(out)
	flusher, _ := w.(http.Flusher)
	write := func(ev E) bool {
		if err := enc.Encode(ev); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}
	if !write(first) {
		return
	}
	for ev := range events {
		if !write(ev) {
			return
		}
	}
}
