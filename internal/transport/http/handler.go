package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/metrics"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// UserHeader carries the authenticated user id set by the upstream gateway.
const UserHeader = "X-User-ID"

// Handler serves the REST surface of the submission use cases.
type Handler struct {
	service  *app.SubmissionService
	validate *validator.Validate
	limiter  *RateLimiter
	log      *zap.Logger
}

func NewHandler(service *app.SubmissionService, limiter *RateLimiter, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		service:  service,
		validate: validator.New(),
		limiter:  limiter,
		log:      log,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type attemptsResponse struct {
	NextAttempt int `json:"nextAttempt"`
	MaxAttempts int `json:"maxAttempts"`
}

// Register mounts every route on mux, each wrapped with request metrics.
func (h *Handler) Register(mux *http.ServeMux) {
	submit := http.Handler(http.HandlerFunc(h.submit))
	if h.limiter != nil {
		submit = h.limiter.Middleware(submit)
	}
	h.handle(mux, "POST /assessments/{id}/submissions", submit)
	h.handle(mux, "GET /assessments/{id}/submissions", http.HandlerFunc(h.listSubmissions))
	h.handle(mux, "GET /assessments/{id}/history", http.HandlerFunc(h.history))
	h.handle(mux, "GET /assessments/{id}/attempts", http.HandlerFunc(h.attempts))
	h.handle(mux, "GET /assessments/{id}/stats", http.HandlerFunc(h.stats))
	h.handle(mux, "GET /submissions/{id}", http.HandlerFunc(h.getSubmission))
	h.handle(mux, "PUT /submissions/{id}/grade", http.HandlerFunc(h.grade))
}

func (h *Handler) handle(mux *http.ServeMux, pattern string, next http.Handler) {
	mux.Handle(pattern, metrics.Instrument(pattern, next))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req app.SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, err := h.service.Submit(r.Context(), userID, r.PathValue("id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	page := domain.Page{
		Number: queryInt(r, "page"),
		Size:   queryInt(r, "size"),
	}
	result, err := h.service.ListByAssessment(r.Context(), userID, r.PathValue("id"), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	subs, err := h.service.History(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) attempts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	next, maxAttempts, err := h.service.NextAttempt(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attemptsResponse{NextAttempt: next, MaxAttempts: maxAttempts})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) getSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	sub, err := h.service.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) grade(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req app.GradeRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, err := h.service.Grade(r.Context(), userID, r.PathValue("id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid " + UserHeader})
		return 0, false
	}
	return userID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsForbidden(err):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAttemptsExhausted), errors.Is(err, domain.ErrSubmissionGraded):
		return http.StatusConflict
	case domain.IsBadRequest(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func userIDFrom(r *http.Request) (int64, error) {
	raw := r.Header.Get(UserHeader)
	if raw == "" {
		raw = r.URL.Query().Get("userId")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
