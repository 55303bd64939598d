package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/NERVsystems/osmxray/pkg/core"
	"github.com/NERVsystems/osmxray/pkg/monitoring"
	"github.com/NERVsystems/osmxray/pkg/session"
	"github.com/NERVsystems/osmxray/pkg/settings"
)

// API serves the JSON endpoints used by the map page.
type API struct {
	logger   *slog.Logger
	sessions *session.Manager
}

// NewAPI creates the viewer API over a session manager.
func NewAPI(sessions *session.Manager, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		logger:   logger.With("component", "api"),
		sessions: sessions,
	}
}

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, wrap(h))
	}
	route("POST /api/sessions", a.handleCreate)
	route("GET /api/sessions/{id}", a.handleState)
	route("DELETE /api/sessions/{id}", a.handleClose)
	route("POST /api/sessions/{id}/events", a.handleEvent)
	route("GET /api/hash/decode", a.handleDecode)
	route("POST /api/hash/encode", a.handleEncode)
}

type createRequest struct {
	Hash string   `json:"hash"`
	Zoom *float64 `json:"zoom,omitempty"`
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req, true); err != nil {
		a.writeError(w, r, err)
		return
	}
	_, u, err := a.sessions.Create(r.Context(), req.Hash, req.Zoom)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+u.Session)
	a.writeJSON(w, http.StatusCreated, u)
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	s, err := a.sessions.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, s.State())
}

func (a *API) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Close(r.PathValue("id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev session.Event
	if err := decodeBody(r, &ev, false); err != nil {
		a.writeError(w, r, err)
		return
	}
	u, err := a.sessions.Dispatch(r.Context(), r.PathValue("id"), ev)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, u)
}

func (a *API) handleDecode(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, settings.Summarize(r.URL.Query().Get("hash")))
}

type encodeRequest struct {
	Settings json.RawMessage `json:"settings"`
	Hash     string          `json:"hash,omitempty"`
}

func (a *API) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if err := decodeBody(r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}
	hash, err := settings.EncodeJSON(req.Settings, req.Hash)
	if err != nil {
		a.writeError(w, r, core.NewValidationError(core.ErrInvalidParameter, err.Error()))
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"hash": hash})
}

// decodeBody reads a JSON body into v. An empty body is accepted when
// optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && optional:
		return nil
	case errors.Is(err, io.EOF):
		return core.NewValidationError(core.ErrInvalidInput, "request body is empty")
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return core.NewError(core.ErrInvalidInput, "request body too large")
	}
	return core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf("invalid JSON body: %v", err))
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	monitoring.RecordError("api", string(core.CodeOf(err)))
	mcpErr, ok := core.AsMCPError(err)
	if !ok {
		a.logger.Error("unexpected error", "request_id", RequestID(r.Context()), "error", err)
		mcpErr = core.NewError(core.ErrInternalError, "internal error")
	}
	status := mcpErr.HTTPStatus()
	a.logger.Debug("request failed", "request_id", RequestID(r.Context()), "status", status, "code", mcpErr.Code)
	a.writeJSON(w, status, mcpErr)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}
