package handlers

import (
	"net/http"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/service"
	"github.com/go-chi/chi/v5"
)

// ListInstances fails as a whole when any provider is unreachable.
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := h.instances.ListInstances(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instances)
}

func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req service.InstanceCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.instances.CreateInstance(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "instanceId")
	if !ok {
		return
	}
	instance, err := h.instances.GetInstance(r.Context(), ids[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instance)
}

func (h *Handler) UpdateInstance(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "instanceId")
	if !ok {
		return
	}
	var req service.InstanceUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := h.instances.UpdateInstance(r.Context(), ids[0], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "instanceId")
	if !ok {
		return
	}
	if err := h.instances.DeleteInstance(r.Context(), ids[0]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetInstanceState(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "instanceId")
	if !ok {
		return
	}
	state, err := h.instances.GetInstanceState(r.Context(), ids[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "instanceId")
	if !ok {
		return
	}
	var command cloud.Command
	if !decodeBody(w, r, &command) {
		return
	}
	instance, err := h.instances.ExecuteAction(r.Context(), ids[0], command)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instance)
}

func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "instanceId")
	if !ok {
		return
	}
	auth, err := h.tokens.Validate(r.Context(), ids[0], chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auth)
}
