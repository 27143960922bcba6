package handlers

import (
	"net/http"

	"github.com/dcm-project/cloud-instance-manager/internal/service"
	"github.com/dcm-project/cloud-instance-manager/internal/store"
)

// ListPlans accepts optional providerId and imageId query filters.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	providerID, err := queryInt(r, "providerId")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	imageID, err := queryInt(r, "imageId")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	filter := &store.PlanFilter{}
	if providerID > 0 {
		id := uint(providerID)
		filter.ProviderID = &id
	}
	if r.URL.Query().Has("imageId") {
		filter.ImageID = &imageID
	}

	plans, err := h.plans.ListPlans(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req service.PlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.plans.CreatePlan(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "planId")
	if !ok {
		return
	}
	plan, err := h.plans.GetPlan(r.Context(), ids[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "planId")
	if !ok {
		return
	}
	var req service.PlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := h.plans.UpdatePlan(r.Context(), ids[0], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "planId")
	if !ok {
		return
	}
	if err := h.plans.DeletePlan(r.Context(), ids[0]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
