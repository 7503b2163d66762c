// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/okian/sessiontrack/internal/app"
	"github.com/okian/sessiontrack/internal/domain/ingest"
	"github.com/okian/sessiontrack/internal/domain/model"
	"github.com/okian/sessiontrack/internal/domain/taxonomy"
	"github.com/okian/sessiontrack/internal/domain/types"
	"github.com/okian/sessiontrack/pkg/logger"
	"github.com/okian/sessiontrack/pkg/metrics"
)

// ClientOperations manage clients and their behavior and skill catalogs.
type ClientOperations interface {
	CreateClient(ctx context.Context, in service.ClientInput) (model.Client, error)
	GetClient(ctx context.Context, id int64) (model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	CreateBehavior(ctx context.Context, clientID int64, in taxonomy.BehaviorInput) (model.Behavior, error)
	ListBehaviors(ctx context.Context, clientID int64) ([]model.Behavior, error)
	CreateSkill(ctx context.Context, clientID int64, in taxonomy.SkillInput) (model.Skill, error)
	ListSkills(ctx context.Context, clientID int64) ([]model.Skill, error)
}

// SessionOperations drive the session lifecycle and event ingestion.
type SessionOperations interface {
	StartSession(ctx context.Context, clientID int64) (model.Session, error)
	GetSession(ctx context.Context, id int64) (model.Session, error)
	RecordEvents(ctx context.Context, sessionID int64, batch []any) (ingest.Report, error)
	RecordSkillEvents(ctx context.Context, sessionID int64, batch []any) (ingest.Report, error)
	EndSession(ctx context.Context, sessionID int64, events, skillEvents []any) (service.EndResult, error)
}

// AnalysisOperations compute per-date chart series.
type AnalysisOperations interface {
	BehaviorSessionPoints(ctx context.Context, behaviorID int64) (model.BehaviorPoints, error)
	SkillSessionPoints(ctx context.Context, skillID int64) (model.SkillPoints, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	ClientOperations
	SessionOperations
	AnalysisOperations
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	clientsHandler  *ClientsHandler
	sessionsHandler *SessionsHandler
	analysisHandler *AnalysisHandler

	authEnabled   bool
	corsOrigins   []string
	serveMetrics  bool
	version       string
	logger        logger.Logger
	maxBodyLength int64
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		authEnabled:   true,
		serveMetrics:  true,
		version:       "dev",
		maxBodyLength: defaultMaxBodyLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}

	out := responder{logger: s.logger, maxBodyLength: s.maxBodyLength}
	s.healthHandler = NewHealthHandler(s.version)
	s.statsHandler = NewStatsHandler(statsProvider)
	s.clientsHandler = &ClientsHandler{deps: deps, responder: out}
	s.sessionsHandler = &SessionsHandler{deps: deps, responder: out}
	s.analysisHandler = &AnalysisHandler{deps: deps, responder: out}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	bcba := []types.Role{types.RoleBCBA}

	mux.HandleFunc("GET /api/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("GET /api/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	if s.serveMetrics {
		mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	// BCBA management
	s.route(mux, "POST /api/clients", "clients.create", s.clientsHandler.HandleCreateClient, bcba...)
	s.route(mux, "GET /api/clients", "clients.list", s.clientsHandler.HandleListClients, bcba...)
	s.route(mux, "GET /api/clients/{id}", "clients.get", s.clientsHandler.HandleGetClient, bcba...)
	s.route(mux, "POST /api/clients/{id}/behaviors", "behaviors.create", s.clientsHandler.HandleCreateBehavior, bcba...)
	s.route(mux, "GET /api/clients/{id}/behaviors", "behaviors.list", s.clientsHandler.HandleListBehaviors, bcba...)
	s.route(mux, "POST /api/clients/{id}/skills", "skills.create", s.clientsHandler.HandleCreateSkill, bcba...)
	s.route(mux, "GET /api/clients/{id}/skills", "skills.list", s.clientsHandler.HandleListSkills, bcba...)

	// Collection, open to both roles
	s.route(mux, "GET /api/collect/clients", "collect.clients", s.clientsHandler.HandleListClients)
	s.route(mux, "GET /api/collect/clients/{id}/behaviors", "collect.behaviors", s.clientsHandler.HandleListBehaviors)
	s.route(mux, "GET /api/collect/clients/{id}/skills", "collect.skills", s.clientsHandler.HandleListSkills)
	s.route(mux, "POST /api/sessions/start", "sessions.start", s.sessionsHandler.HandleStartSession)
	s.route(mux, "GET /api/sessions/{id}", "sessions.get", s.sessionsHandler.HandleGetSession)
	s.route(mux, "POST /api/sessions/{id}/events", "sessions.events", s.sessionsHandler.HandleRecordEvents)
	s.route(mux, "POST /api/sessions/{id}/skill-events", "sessions.skill_events", s.sessionsHandler.HandleRecordSkillEvents)
	s.route(mux, "POST /api/sessions/{id}/end", "sessions.end", s.sessionsHandler.HandleEndSession)

	// Analysis
	s.route(mux, "GET /api/analysis/behavior/{id}/session-points", "analysis.behavior", s.analysisHandler.HandleBehaviorPoints, bcba...)
	s.route(mux, "GET /api/analysis/skill/{id}/session-points", "analysis.skill", s.analysisHandler.HandleSkillPoints, bcba...)
}

// Handler wraps the routed mux with request ids and CORS.
func (s *Server) Handler(mux http.Handler) http.Handler {
	return RequestID(CORS(s.corsOrigins)(mux))
}

func (s *Server) route(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc, roles ...types.Role) {
	mux.HandleFunc(pattern, MetricsMiddleware(s.authorize(h, roles...), endpoint))
}

const defaultMaxBodyLength = 4 << 20

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// responder carries what handlers need to decode requests and report errors.
type responder struct {
	logger        logger.Logger
	maxBodyLength int64
}

// fail classifies err and writes the error body. Server errors are logged
// and hidden from the caller.
func (o responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		o.logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
		metrics.RecordErrorByComponent("api", code)
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, err)
}

// pathID parses the {id} wildcard of the matched route.
func pathID(op string, r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, WrapKind(op, ErrBadRequest, errInvalidID)
	}
	return id, nil
}
