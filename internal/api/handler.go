package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/djlord-it/easy-meetings/internal/domain"
	"github.com/djlord-it/easy-meetings/internal/generator"
	"github.com/djlord-it/easy-meetings/internal/holiday"
	"github.com/djlord-it/easy-meetings/internal/ical"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Service is the administrative surface of the generator.
type Service interface {
	Upcoming(ctx context.Context, limit int) ([]domain.Occurrence, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Occurrence, error)
	CreateSingle(ctx context.Context, req generator.SingleRequest) (domain.Occurrence, error)
	Reschedule(ctx context.Context, id uuid.UUID, date time.Time, start domain.TimeOfDay) (domain.Occurrence, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GenerateNow(ctx context.Context) (generator.Report, error)
	Location() *time.Location
}

type HolidayCalendar interface {
	Holidays(year int) []holiday.Holiday
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	svc      Service
	holidays HolidayCalendar
	db       HealthChecker
	feedName string
	logger   *zap.Logger
	clock    func() time.Time
}

func NewHandler(svc Service, holidays HolidayCalendar, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:      svc,
		holidays: holidays,
		feedName: "Meetings",
		logger:   logger,
		clock:    time.Now,
	}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithFeedName sets the calendar name advertised by the ICS feed.
func (h *Handler) WithFeedName(name string) *Handler {
	h.feedName = name
	return h
}

func (h *Handler) WithClock(clock func() time.Time) *Handler {
	h.clock = clock
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/occurrences" && r.Method == http.MethodGet:
		h.listOccurrences(w, r)

	case path == "/occurrences" && r.Method == http.MethodPost:
		h.createOccurrence(w, r)

	case path == "/occurrences.ics" && r.Method == http.MethodGet:
		h.feed(w, r)

	case strings.HasPrefix(path, "/occurrences/"):
		h.occurrence(w, r)

	case path == "/generate" && r.Method == http.MethodPost:
		h.generate(w, r)

	case path == "/holidays" && r.Method == http.MethodGet:
		h.listHolidays(w, r)

	default:
		h.writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, resp)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (h *Handler) listOccurrences(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occs, err := h.svc.Upcoming(r.Context(), limit)
	if err != nil {
		h.fail(w, "list occurrences", err)
		return
	}

	loc := h.svc.Location()
	resp := ListOccurrencesResponse{Occurrences: make([]OccurrenceResponse, len(occs))}
	for i, occ := range occs {
		resp.Occurrences[i] = toOccurrenceResponse(occ, loc)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	occs, err := h.svc.Upcoming(r.Context(), MaxLimit)
	if err != nil {
		h.fail(w, "occurrence feed", err)
		return
	}

	body := ical.Feed{Name: h.feedName, Location: h.svc.Location()}.Encode(occs, h.clock())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		h.logger.Debug("feed write failed", zap.Error(err))
	}
}

func (h *Handler) createOccurrence(w http.ResponseWriter, r *http.Request) {
	var req CreateOccurrenceRequest
	if !h.decode(w, r, &req) {
		return
	}

	single, err := parseCreateOccurrence(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occ, err := h.svc.CreateSingle(r.Context(), single)
	if err != nil {
		h.fail(w, "create occurrence", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toOccurrenceResponse(occ, h.svc.Location()))
}

// occurrence serves /occurrences/{id}.
func (h *Handler) occurrence(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "occurrences" {
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid occurrence id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		occ, err := h.svc.Get(r.Context(), id)
		if err != nil {
			h.fail(w, "get occurrence", err)
			return
		}
		h.writeJSON(w, http.StatusOK, toOccurrenceResponse(occ, h.svc.Location()))

	case http.MethodPatch:
		h.reschedule(w, r, id)

	case http.MethodDelete:
		if err := h.svc.Delete(r.Context(), id); err != nil {
			h.fail(w, "delete occurrence", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req RescheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	current, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "reschedule occurrence", err)
		return
	}

	date, start, err := parseReschedule(req, current.StartTime)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occ, err := h.svc.Reschedule(r.Context(), id, date, start)
	if err != nil {
		h.fail(w, "reschedule occurrence", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOccurrenceResponse(occ, h.svc.Location()))
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GenerateNow(r.Context())
	if err != nil {
		h.fail(w, "generate", err)
		return
	}

	status := http.StatusOK
	if report.Failed() > 0 {
		status = http.StatusMultiStatus
	}
	h.writeJSON(w, status, toGenerateResponse(report, h.svc.Location()))
}

func (h *Handler) listHolidays(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.URL.Query().Get("year"), h.clock().In(h.svc.Location()))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hs := h.holidays.Holidays(year)
	resp := ListHolidaysResponse{Year: year, Holidays: make([]HolidayResponse, len(hs))}
	for i, hol := range hs {
		resp.Holidays[i] = toHolidayResponse(hol)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// fail maps service errors to status codes. Unexpected errors are logged
// and reported without detail.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrOccurrenceNotFound):
		h.writeError(w, http.StatusNotFound, "occurrence not found")
	case errors.Is(err, generator.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, generator.ErrRunInProgress):
		h.writeError(w, http.StatusConflict, "generation run already in progress")
	case errors.Is(err, domain.ErrDuplicateOccurrence):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrProviderFailure):
		h.logger.Warn("provider call failed", zap.String("op", op), zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "meeting provider failed")
	case errors.Is(err, domain.ErrStoreUnavailable):
		h.logger.Error("store unavailable", zap.String("op", op), zap.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		h.logger.Error("request failed", zap.String("op", op), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("json encode failed", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}

// parseLimit extracts and validates the limit query parameter.
// Returns DefaultLimit if limit is not specified or zero.
func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return DefaultLimit, nil
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, err
	}
	if limit < 0 {
		return 0, strconv.ErrRange
	}
	if limit > MaxLimit {
		return 0, &limitExceededError{max: MaxLimit}
	}
	if limit == 0 {
		return DefaultLimit, nil
	}
	return limit, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
