package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/orchestrator"
	"github.com/utafrali/marketsearch/pkg/httputil"
	"github.com/utafrali/marketsearch/pkg/logger"
	"github.com/utafrali/marketsearch/pkg/validator"
)

const (
	maxBodyBytes = 64 << 10

	// DefaultHeartbeat is the interval of SSE keep-alive comments.
	DefaultHeartbeat = 15 * time.Second
)

// SessionHandler handles the stateful search session endpoints.
type SessionHandler struct {
	registry  *orchestrator.Registry
	heartbeat time.Duration
	logger    *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler. A non-positive
// heartbeat uses DefaultHeartbeat.
func NewSessionHandler(registry *orchestrator.Registry, heartbeat time.Duration, logger *slog.Logger) *SessionHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &SessionHandler{
		registry:  registry,
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// --- Request DTOs ---

// CreateSessionRequest is the JSON request body for opening a session. The
// query, mode and facet fields mirror the landing page URL.
type CreateSessionRequest struct {
	Surface  string   `json:"surface" validate:"required,oneof=quick modal full"`
	ClientID string   `json:"client_id" validate:"max=128"`
	Query    string   `json:"q" validate:"max=256"`
	Mode     string   `json:"mode" validate:"omitempty,oneof=products suppliers"`
	Category []string `json:"category" validate:"max=50,dive,max=128"`
	Country  []string `json:"country" validate:"max=50,dive,max=128"`
	Source   []string `json:"source" validate:"max=50,dive,max=128"`
}

// QueryRequest updates the live query text.
type QueryRequest struct {
	Query string `json:"q" validate:"max=256"`
}

// FilterRequest toggles one facet option.
type FilterRequest struct {
	Key    string `json:"key" validate:"required,notblank,max=64"`
	Option string `json:"option" validate:"required,notblank,max=128"`
}

// ModeRequest switches the search mode.
type ModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=products suppliers"`
}

// SortRequest sets the sort order.
type SortRequest struct {
	Sort string `json:"sort" validate:"required,max=32"`
}

// PageRequest moves to a result page.
type PageRequest struct {
	Page int `json:"page" validate:"required,gte=1"`
}

// SelectRequest picks a result.
type SelectRequest struct {
	ResultID string `json:"result_id" validate:"required,notblank,max=128"`
}

// SelectResponse carries the deep link of a selected result.
type SelectResponse struct {
	URL string `json:"url"`
}

// params rebuilds the landing URL parameters of the request.
func (req CreateSessionRequest) params() url.Values {
	v := url.Values{}
	if req.Query != "" {
		v.Set(orchestrator.ParamQuery, req.Query)
	}
	if req.Mode != "" {
		v.Set(orchestrator.ParamMode, req.Mode)
	}
	for param, values := range map[string][]string{
		domain.ParamCategory: req.Category,
		domain.ParamCountry:  req.Country,
		domain.ParamSource:   req.Source,
	} {
		for _, value := range values {
			v.Add(param, value)
		}
	}
	return v
}

// --- Handlers ---

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ClientID == "" {
		req.ClientID = logger.ClientID(r.Context())
	}

	o, err := h.registry.Create(r.Context(), orchestrator.CreateRequest{
		Surface:  req.Surface,
		ClientID: req.ClientID,
		Params:   req.params(),
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: o.State()})
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: o.State()})
}

// Delete handles DELETE /api/v1/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	id := uid.String()
	if err := h.registry.Close(id); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "closed"}})
}

// SetQuery handles PUT /api/v1/sessions/{id}/query
func (h *SessionHandler) SetQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	h.mutate(w, r, &req, func(o *orchestrator.Orchestrator) error {
		return o.SetQuery(req.Query)
	})
}

// ToggleFilter handles POST /api/v1/sessions/{id}/filters
func (h *SessionHandler) ToggleFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	h.mutate(w, r, &req, func(o *orchestrator.Orchestrator) error {
		return o.ToggleFilter(req.Key, req.Option)
	})
}

// ClearFilters handles DELETE /api/v1/sessions/{id}/filters
func (h *SessionHandler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(o *orchestrator.Orchestrator) error {
		return o.ClearFilters()
	})
}

// SetMode handles PUT /api/v1/sessions/{id}/mode
func (h *SessionHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	h.mutate(w, r, &req, func(o *orchestrator.Orchestrator) error {
		mode, err := domain.ParseMode(req.Mode)
		if err != nil {
			return err
		}
		return o.SetMode(r.Context(), mode)
	})
}

// SetSort handles PUT /api/v1/sessions/{id}/sort
func (h *SessionHandler) SetSort(w http.ResponseWriter, r *http.Request) {
	var req SortRequest
	h.mutate(w, r, &req, func(o *orchestrator.Orchestrator) error {
		return o.SetSort(req.Sort)
	})
}

// SetPage handles PUT /api/v1/sessions/{id}/page
func (h *SessionHandler) SetPage(w http.ResponseWriter, r *http.Request) {
	var req PageRequest
	h.mutate(w, r, &req, func(o *orchestrator.Orchestrator) error {
		return o.SetPage(req.Page)
	})
}

// Select handles POST /api/v1/sessions/{id}/select
func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	o, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SelectRequest
	if !decode(w, r, &req) {
		return
	}

	link, err := o.Select(req.ResultID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: SelectResponse{URL: link}})
}

// Events handles GET /api/v1/sessions/{id}/events. It streams every state
// snapshot as a server-sent "state" event until the client disconnects or
// the session closes.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	o, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	l := logger.FromContext(ctx)
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	states, cancel := o.Subscribe()
	defer cancel()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			l.DebugContext(ctx, "session event stream closed by client",
				slog.String("session_id", o.ID()),
			)
			return

		case st, open := <-states:
			if !open {
				_, _ = fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}
			data, err := json.Marshal(st)
			if err != nil {
				l.ErrorContext(ctx, "failed to encode session state", slog.String("error", err.Error()))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				l.WarnContext(ctx, "event stream cannot flush", slog.String("error", err.Error()))
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		}
	}
}

// session resolves the {id} URL parameter, writing 400 when it is not a
// session id and 404 when it is unknown.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*orchestrator.Orchestrator, bool) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return nil, false
	}
	o, err := h.registry.Get(id.String())
	if err != nil {
		writeError(w, r, err, h.logger)
		return nil, false
	}
	return o, true
}

// mutate decodes dst (when non-nil), applies fn to the session and answers
// with the resulting state.
func (h *SessionHandler) mutate(w http.ResponseWriter, r *http.Request, dst any, fn func(*orchestrator.Orchestrator) error) {
	o, ok := h.session(w, r)
	if !ok {
		return
	}
	if dst != nil && !decode(w, r, dst) {
		return
	}
	if err := fn(o); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: o.State()})
}

// decode reads and validates a JSON body, writing 400 on failure. Malformed
// JSON is INVALID_INPUT; failed constraints are VALIDATION_ERROR.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}
