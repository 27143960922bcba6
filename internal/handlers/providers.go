package handlers

import (
	"net/http"

	"github.com/dcm-project/cloud-instance-manager/internal/service"
)

type ProviderList struct {
	Providers     []service.ProviderView `json:"providers"`
	NextPageToken string                 `json:"nextPageToken,omitempty"`
}

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	pageSize, err := queryInt(r, "max_page_size")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	query := r.URL.Query()
	result, err := h.providers.ListProviders(r.Context(), query.Get("name"), pageSize, query.Get("page_token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProviderList{Providers: result.Providers, NextPageToken: result.NextPageToken})
}

func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req service.ProviderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.providers.CreateProvider(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "providerId")
	if !ok {
		return
	}
	provider, err := h.providers.GetProvider(r.Context(), ids[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, provider)
}

func (h *Handler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "providerId")
	if !ok {
		return
	}
	var req service.ProviderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := h.providers.UpdateProvider(r.Context(), ids[0], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "providerId")
	if !ok {
		return
	}
	if err := h.providers.DeleteProvider(r.Context(), ids[0]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "providerId")
	if !ok {
		return
	}
	images, err := h.providers.ListImages(r.Context(), ids[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, images)
}

func (h *Handler) ListFlavours(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "providerId")
	if !ok {
		return
	}
	flavours, err := h.providers.ListFlavours(r.Context(), ids[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flavours)
}
