package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dcm-project/cloud-instance-manager/internal/logging"
	"github.com/dcm-project/cloud-instance-manager/internal/reconcile"
	"github.com/dcm-project/cloud-instance-manager/internal/service"
	"github.com/dcm-project/cloud-instance-manager/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the instance manager HTTP API.
type Handler struct {
	store      store.Store
	providers  *service.ProviderService
	plans      *service.PlanService
	instances  *service.InstanceService
	members    *service.MemberService
	tokens     *service.TokenService
	reconciler *reconcile.Job
}

func NewHandler(
	store store.Store,
	providers *service.ProviderService,
	plans *service.PlanService,
	instances *service.InstanceService,
	members *service.MemberService,
	tokens *service.TokenService,
	reconciler *reconcile.Job,
) *Handler {
	return &Handler{
		store:      store,
		providers:  providers,
		plans:      plans,
		instances:  instances,
		members:    members,
		tokens:     tokens,
		reconciler: reconciler,
	}
}

// Routes mounts every endpoint on r. The caller chooses the base path.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.GetHealth)

	r.Route("/providers", func(r chi.Router) {
		r.Get("/", h.ListProviders)
		r.Post("/", h.CreateProvider)
		r.Route("/{providerId}", func(r chi.Router) {
			r.Get("/", h.GetProvider)
			r.Put("/", h.UpdateProvider)
			r.Delete("/", h.DeleteProvider)
			r.Get("/images", h.ListImages)
			r.Get("/flavours", h.ListFlavours)
		})
	})

	r.Route("/plans", func(r chi.Router) {
		r.Get("/", h.ListPlans)
		r.Post("/", h.CreatePlan)
		r.Route("/{planId}", func(r chi.Router) {
			r.Get("/", h.GetPlan)
			r.Put("/", h.UpdatePlan)
			r.Delete("/", h.DeletePlan)
		})
	})

	r.Route("/instances", func(r chi.Router) {
		r.Get("/", h.ListInstances)
		r.Post("/", h.CreateInstance)
		r.Route("/{instanceId}", func(r chi.Router) {
			r.Get("/", h.GetInstance)
			r.Put("/", h.UpdateInstance)
			r.Delete("/", h.DeleteInstance)
			r.Get("/state", h.GetInstanceState)
			r.Post("/actions", h.ExecuteAction)
			r.Post("/token/{token}/validate", h.ValidateToken)
		})
	})

	r.Route("/users/{userId}/instances", func(r chi.Router) {
		r.Get("/", h.ListUserInstances)
		r.Post("/", h.CreateUserInstance)
		r.Route("/{instanceId}", func(r chi.Router) {
			r.Get("/", h.GetUserInstance)
			r.Put("/", h.UpdateUserInstance)
			r.Delete("/", h.DeleteUserInstance)
			r.Post("/actions", h.ExecuteUserAction)
			r.Post("/token", h.IssueToken)
			r.Route("/members", func(r chi.Router) {
				r.Get("/", h.ListMembers)
				r.Post("/", h.CreateMember)
				r.Put("/{memberId}", h.UpdateMember)
				r.Delete("/{memberId}", h.DeleteMember)
			})
		})
	})

	r.Route("/reconciliations", func(r chi.Router) {
		r.Get("/", h.ListReconciliations)
		r.Post("/", h.RunReconciliation)
	})
}

type HealthResponse struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

// GetHealth reports unavailable when the database cannot be reached.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Path: "health"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Path: "health"})
}

// pathID parses a numeric path parameter.
func pathID(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s '%s'", name, raw)
	}
	return uint(id), nil
}

// pathIDs parses several numeric path parameters and reports the first bad one.
func pathIDs(w http.ResponseWriter, r *http.Request, names ...string) ([]uint, bool) {
	ids := make([]uint, len(names))
	for i, name := range names {
		id, err := pathID(r, name)
		if err != nil {
			badRequest(w, r, err.Error())
			return nil, false
		}
		ids[i] = id
	}
	return ids, true
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s'", name, raw)
	}
	return v, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		badRequest(w, r, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}
