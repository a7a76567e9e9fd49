package runtime

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/loqalabs/loqa-asr/internal/capability"
	"github.com/loqalabs/loqa-asr/internal/protocol"
)

const maxRecognizeBody = 64 << 20

type recognitionView struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	AudioPath string    `json:"audio_path,omitempty"`
	Text      string    `json:"text,omitempty"`
	OK        bool      `json:"ok"`
	CreatedAt time.Time `json:"created_at"`
}

// Handler exposes health probes and the recognition API.
func (r *Runtime) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", r.handleHealth)
	router.Get("/readyz", r.handleReady)
	router.Route("/v1", func(v1 chi.Router) {
		v1.Post("/recognize", r.handleRecognize)
		v1.Get("/recognitions", r.handleRecognitions)
		v1.Get("/nodes", r.handleNodes)
	})
	return router
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

// handleRecognize treats the raw request body as a single PCM frame.
func (r *Runtime) handleRecognize(w http.ResponseWriter, req *http.Request) {
	if r.service == nil {
		http.Error(w, "asr disabled", http.StatusServiceUnavailable)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.maxBody))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, "read body: "+err.Error(), status)
		return
	}

	sessionID := req.Header.Get("X-Session-ID")
	if sessionID == "" {
		sessionID = middleware.GetReqID(req.Context())
	}
	var frames [][]byte
	if len(body) > 0 {
		frames = [][]byte{body}
	}

	reply := r.service.Handle(req.Context(), protocol.RecognizeRequest{SessionID: sessionID, Frames: frames})
	status := http.StatusOK
	if !reply.OK {
		status = http.StatusUnprocessableEntity
	}
	r.writeJSON(w, status, reply)
}

func (r *Runtime) handleRecognitions(w http.ResponseWriter, req *http.Request) {
	limit := 50
	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	records, err := r.store.List(req.Context(), limit)
	if err != nil {
		r.logger.Error("list recognitions failed", slog.String("error", err.Error()))
		http.Error(w, "list recognitions failed", http.StatusInternalServerError)
		return
	}
	views := make([]recognitionView, 0, len(records))
	for _, rec := range records {
		views = append(views, recognitionView(rec))
	}
	r.writeJSON(w, http.StatusOK, views)
}

// handleNodes lists recognizer nodes seen on the bus. ?capability= and
// ?tier= narrow the result.
func (r *Runtime) handleNodes(w http.ResponseWriter, req *http.Request) {
	if r.registry == nil {
		r.writeJSON(w, http.StatusOK, []capability.NodeInfo{})
		return
	}
	q := req.URL.Query()
	var filters []func(capability.NodeInfo) bool
	if name := q.Get("capability"); name != "" {
		filters = append(filters, capability.WithCapabilityFilter(name))
	}
	if tier := q.Get("tier"); tier != "" {
		filters = append(filters, capability.WithTierFilter(tier))
	}
	r.writeJSON(w, http.StatusOK, r.registry.Nodes(filters...))
}

func (r *Runtime) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		r.logger.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}
