package api

import "net/http"

// AnalysisHandler serves per-date chart series.
type AnalysisHandler struct {
	responder
	deps AnalysisOperations
}

// HandleBehaviorPoints handles GET /api/analysis/behavior/{id}/session-points.
func (h *AnalysisHandler) HandleBehaviorPoints(w http.ResponseWriter, r *http.Request) {
	const op = "api.behavior_points"

	id, err := pathID(op, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	points, err := h.deps.BehaviorSessionPoints(r.Context(), id)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// HandleSkillPoints handles GET /api/analysis/skill/{id}/session-points.
func (h *AnalysisHandler) HandleSkillPoints(w http.ResponseWriter, r *http.Request) {
	const op = "api.skill_points"

	id, err := pathID(op, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	points, err := h.deps.SkillSessionPoints(r.Context(), id)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, points)
}
