package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/sessiontrack/internal/domain/ingest"
	"github.com/okian/sessiontrack/internal/domain/model"
)

// SessionsHandler serves the session lifecycle and event ingestion.
type SessionsHandler struct {
	responder
	deps SessionOperations
}

type startRequest struct {
	ClientID json.Number `json:"client_id"`
}

type eventsRequest struct {
	Events []any `json:"events"`
}

type endRequest struct {
	Events      []any `json:"events"`
	SkillEvents []any `json:"skill_events"`
}

// eventsResponse reports one ingested batch. Created mirrors Accepted.
type eventsResponse struct {
	OK       bool               `json:"ok"`
	Created  int                `json:"created"`
	Accepted int                `json:"accepted"`
	Rejected []ingest.Rejection `json:"rejected"`
}

func newEventsResponse(rep ingest.Report) eventsResponse {
	return eventsResponse{OK: true, Created: rep.Accepted, Accepted: rep.Accepted, Rejected: rep.Rejected}
}

// endResponse is the closed session followed by the reports of the final
// batches.
type endResponse struct {
	model.Session
	Events      ingest.Report `json:"events"`
	SkillEvents ingest.Report `json:"skill_events"`
}

// HandleStartSession handles POST /api/sessions/start.
func (h *SessionsHandler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_session"

	var req startRequest
	if err := h.decodeBody(op, r, startSchema, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	clientID, err := req.ClientID.Int64()
	if err != nil {
		h.fail(w, r, WrapKind(op, ErrBadRequest, errors.New(startSchema.Message)))
		return
	}
	sess, err := h.deps.StartSession(r.Context(), clientID)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// HandleGetSession handles GET /api/sessions/{id}.
func (h *SessionsHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"

	id, err := pathID(op, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sess, err := h.deps.GetSession(r.Context(), id)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleRecordEvents handles POST /api/sessions/{id}/events.
func (h *SessionsHandler) HandleRecordEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_events"

	id, err := pathID(op, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req eventsRequest
	if err := h.decodeBody(op, r, eventsSchema, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	rep, err := h.deps.RecordEvents(r.Context(), id, req.Events)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newEventsResponse(rep))
}

// HandleRecordSkillEvents handles POST /api/sessions/{id}/skill-events.
func (h *SessionsHandler) HandleRecordSkillEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_skill_events"

	id, err := pathID(op, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req eventsRequest
	if err := h.decodeBody(op, r, eventsSchema, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	rep, err := h.deps.RecordSkillEvents(r.Context(), id, req.Events)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newEventsResponse(rep))
}

// HandleEndSession handles POST /api/sessions/{id}/end.
func (h *SessionsHandler) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.end_session"

	id, err := pathID(op, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req endRequest
	if err := h.decodeBody(op, r, endSchema, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.deps.EndSession(r.Context(), id, req.Events, req.SkillEvents)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, endResponse{Session: res.Session, Events: res.Events, SkillEvents: res.SkillEvents})
}
