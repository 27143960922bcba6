package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/service"
)

const defaultRunLimit = 20

func (h *Handler) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.RunOnce(r.Context())
	if err != nil {
		var remoteErr *cloud.RemoteError
		if errors.As(err, &remoteErr) {
			writeError(w, r, service.NewProviderError(fmt.Sprintf("reconciliation failed: %v", err), err))
			return
		}
		writeError(w, r, service.NewInternalError("reconciliation failed", err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListReconciliations returns recent runs, newest first. limit defaults to 20.
func (h *Handler) ListReconciliations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		badRequest(w, r, "limit must be a non-negative integer")
		return
	}
	if limit == 0 {
		limit = defaultRunLimit
	}

	runs, err := h.reconciler.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, r, service.NewInternalError("failed to list reconciliation runs", err))
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
