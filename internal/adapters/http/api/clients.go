package api

import (
	"net/http"

	service "github.com/okian/sessiontrack/internal/app"
	"github.com/okian/sessiontrack/internal/domain/taxonomy"
	"github.com/okian/sessiontrack/internal/domain/types"
)

// ClientsHandler serves clients and their behavior and skill catalogs.
type ClientsHandler struct {
	responder
	deps ClientOperations
}

type clientRequest struct {
	Name      string  `json:"name"`
	Birthdate string  `json:"birthdate"`
	Info      *string `json:"info"`
}

type behaviorRequest struct {
	Name        string         `json:"name"`
	Method      string         `json:"method"`
	Description *string        `json:"description"`
	Settings    types.Settings `json:"settings"`
}

type skillRequest struct {
	Name        string  `json:"name"`
	Method      string  `json:"method"`
	SkillType   string  `json:"skill_type"`
	Description *string `json:"description"`
}

// HandleCreateClient handles POST /api/clients.
func (h *ClientsHandler) HandleCreateClient(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_client"

	var req clientRequest
	if err := h.decodeBody(op, r, clientSchema, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.deps.CreateClient(r.Context(), service.ClientInput{
		Name:      req.Name,
		Birthdate: req.Birthdate,
		Info:      req.Info,
	})
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleListClients handles GET /api/clients and GET /api/collect/clients.
func (h *ClientsHandler) HandleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.deps.ListClients(r.Context())
	if err != nil {
		h.fail(w, r, Wrap("api.list_clients", err))
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

// HandleGetClient handles GET /api/clients/{id}.
func (h *ClientsHandler) HandleGetClient(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_client"

	id, err := pathID(op, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.deps.GetClient(r.Context(), id)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleCreateBehavior handles POST /api/clients/{id}/behaviors.
func (h *ClientsHandler) HandleCreateBehavior(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_behavior"

	clientID, err := pathID(op, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req behaviorRequest
	if err := h.decodeBody(op, r, behaviorSchema, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.deps.CreateBehavior(r.Context(), clientID, taxonomy.BehaviorInput{
		Name:        req.Name,
		Method:      req.Method,
		Description: req.Description,
		Settings:    req.Settings,
	})
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// HandleListBehaviors handles GET /api/clients/{id}/behaviors and its
// collection twin.
func (h *ClientsHandler) HandleListBehaviors(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_behaviors"

	clientID, err := pathID(op, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	behaviors, err := h.deps.ListBehaviors(r.Context(), clientID)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, behaviors)
}

// HandleCreateSkill handles POST /api/clients/{id}/skills.
func (h *ClientsHandler) HandleCreateSkill(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_skill"

	clientID, err := pathID(op, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req skillRequest
	if err := h.decodeBody(op, r, skillSchema, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sk, err := h.deps.CreateSkill(r.Context(), clientID, taxonomy.SkillInput{
		Name:        req.Name,
		Method:      req.Method,
		SkillType:   req.SkillType,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, sk)
}

// HandleListSkills handles GET /api/clients/{id}/skills and its collection
// twin.
func (h *ClientsHandler) HandleListSkills(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_skills"

	clientID, err := pathID(op, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	skills, err := h.deps.ListSkills(r.Context(), clientID)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, skills)
}
