package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"evaluation-service/internal/app"
	"evaluation-service/internal/domain"
	"evaluation-service/internal/engine"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const defaultResultLimit = 50

// RouterConfig wires the handlers mounted by NewRouter.
type RouterConfig struct {
	Service *app.EvaluationService
	// Metrics is served on /metrics when set.
	Metrics        http.Handler
	AllowedOrigins []string
}

// NewRouter mounts health, metrics, the websocket endpoint and the REST API.
func NewRouter(cfg RouterConfig) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	r.Get("/ws", NewWSHandler(cfg.Service).ServeWS)

	api := &apiHandler{service: cfg.Service}
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/evaluations/{evaluationID}", api.getEvaluation)
		r.Get("/evaluations/{evaluationID}/results", api.listResults)
		r.Post("/evaluations/{evaluationID}/refresh", api.refreshEvaluation)
		r.Get("/sessions/{sessionID}", api.getSession)
		r.Delete("/sessions/{sessionID}", api.closeSession)
	})
	return r
}

type apiHandler struct {
	service *app.EvaluationService
}

func (h *apiHandler) getEvaluation(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), chi.URLParam(r, "evaluationID"))
	if err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *apiHandler) listResults(w http.ResponseWriter, r *http.Request) {
	limit := defaultResultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	records, err := h.service.Results(r.Context(), chi.URLParam(r, "evaluationID"), limit)
	if err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	if records == nil {
		records = []domain.ResultRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// refreshEvaluation drops the cached copy after a bank was re-imported.
func (h *apiHandler) refreshEvaluation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Refresh(r.Context(), chi.URLParam(r, "evaluationID")); err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionResponse struct {
	ID           string             `json:"id"`
	EvaluationID string             `json:"evaluationId"`
	Participant  domain.Participant `json:"participant"`
	Reporting    bool               `json:"reporting"`
	StartedAt    time.Time          `json:"startedAt"`
	State        engine.Snapshot    `json:"state"`
}

func (h *apiHandler) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		ID:           session.ID,
		EvaluationID: session.EvaluationID,
		Participant:  session.Participant,
		Reporting:    session.Reporting,
		StartedAt:    session.StartedAt,
		State:        session.Engine.Snapshot(),
	})
}

// closeSession unmounts a session for hosts that lost their connection to it.
func (h *apiHandler) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Close(chi.URLParam(r, "sessionID")); err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEvaluationNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errResp struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}
