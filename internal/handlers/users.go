package handlers

import (
	"net/http"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/service"
)

// User-scoped endpoints act through the caller's membership. The caller is
// the {userId} path parameter; authenticating it is left to the gateway in
// front of this service.

func (h *Handler) ListUserInstances(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "userId")
	if !ok {
		return
	}
	instances, err := h.instances.ListInstancesForUser(r.Context(), ids[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instances)
}

func (h *Handler) CreateUserInstance(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "userId")
	if !ok {
		return
	}
	var req service.InstanceCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.instances.CreateInstanceForUser(r.Context(), ids[0], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetUserInstance(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "userId", "instanceId")
	if !ok {
		return
	}
	instance, err := h.instances.GetInstanceForUser(r.Context(), ids[1], ids[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instance)
}

func (h *Handler) UpdateUserInstance(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "userId", "instanceId")
	if !ok {
		return
	}
	var req service.InstanceUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := h.instances.UpdateInstanceForUser(r.Context(), ids[1], ids[0], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteUserInstance(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "userId", "instanceId")
	if !ok {
		return
	}
	if err := h.instances.DeleteInstanceForUser(r.Context(), ids[1], ids[0]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ExecuteUserAction(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "userId", "instanceId")
	if !ok {
		return
	}
	var command cloud.Command
	if !decodeBody(w, r, &command) {
		return
	}
	instance, err := h.instances.ExecuteActionForUser(r.Context(), ids[1], ids[0], command)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instance)
}

func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "userId", "instanceId")
	if !ok {
		return
	}
	token, err := h.tokens.Issue(r.Context(), ids[1], ids[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "userId", "instanceId")
	if !ok {
		return
	}
	members, err := h.members.ListMembers(r.Context(), ids[1], ids[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "userId", "instanceId")
	if !ok {
		return
	}
	var req service.MemberCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	member, err := h.members.CreateMember(r.Context(), ids[1], ids[0], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "userId", "instanceId", "memberId")
	if !ok {
		return
	}
	var req service.MemberUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	member, err := h.members.UpdateMemberRole(r.Context(), ids[1], ids[0], ids[2], &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "userId", "instanceId", "memberId")
	if !ok {
		return
	}
	if err := h.members.RemoveMember(r.Context(), ids[1], ids[0], ids[2]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
