package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/matchup/apiserver/internal/services"
	"github.com/matchup/apiserver/types"
)

// CatalogHandler serves CRUD over groups and permissions.
type CatalogHandler struct {
	catalog *services.CatalogService
}

func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// GroupRouter registers group routes on the given router.
func GroupRouter(r chi.Router, handler *CatalogHandler) {
	r.Get("/", handler.ListGroups)
	r.Post("/", handler.CreateGroup)
	r.Route("/{groupID}", func(r chi.Router) {
		r.Get("/", handler.GetGroup)
		r.Put("/", handler.ReplaceGroup)
		r.Patch("/", handler.PatchGroup)
		r.Delete("/", handler.DeleteGroup)
	})
}

// PermissionRouter registers permission routes on the given router.
func PermissionRouter(r chi.Router, handler *CatalogHandler) {
	r.Get("/", handler.ListPermissions)
	r.Post("/", handler.CreatePermission)
	r.Route("/{permissionID}", func(r chi.Router) {
		r.Get("/", handler.GetPermission)
		r.Put("/", handler.ReplacePermission)
		r.Patch("/", handler.PatchPermission)
		r.Delete("/", handler.DeletePermission)
	})
}

type GroupRequest struct {
	Name        *string `json:"name"`
	Permissions *[]int  `json:"permissions"`
}

type PermissionRequest struct {
	Name        *string `json:"name"`
	Codename    *string `json:"codename"`
	ContentType *string `json:"content_type"`
}

func (h *CatalogHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.catalog.ListGroups(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[types.Group]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *CatalogHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "groupID", "group")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := h.catalog.GetGroup(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "group not found", "failed to fetch group")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *CatalogHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	group := req.apply(types.Group{})
	created, err := h.catalog.CreateGroup(r.Context(), group)
	if err != nil {
		writeServiceError(w, err, "permission not found", "failed to create group")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ReplaceGroup overwrites the name and permission set. A missing
// permissions field clears the set.
func (h *CatalogHandler) ReplaceGroup(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "groupID", "group")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req GroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	group := req.apply(types.Group{ID: id})
	if group.Permissions == nil {
		group.Permissions = []int{}
	}
	h.updateGroup(w, r, group)
}

// PatchGroup changes only the fields present in the body.
func (h *CatalogHandler) PatchGroup(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "groupID", "group")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req GroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	current, err := h.catalog.GetGroup(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "group not found", "failed to fetch group")
		return
	}
	// nil keeps the stored permission set.
	current.Permissions = nil
	h.updateGroup(w, r, req.apply(current))
}

func (h *CatalogHandler) updateGroup(w http.ResponseWriter, r *http.Request, group types.Group) {
	updated, err := h.catalog.UpdateGroup(r.Context(), group)
	if err != nil {
		writeServiceError(w, err, "group not found", "failed to update group")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *CatalogHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "groupID", "group")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.catalog.DeleteGroup(r.Context(), id); err != nil {
		writeServiceError(w, err, "group not found", "failed to delete group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.catalog.ListPermissions(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list permissions")
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[types.Permission]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *CatalogHandler) GetPermission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "permissionID", "permission")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.catalog.GetPermission(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "permission not found", "failed to fetch permission")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var req PermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	created, err := h.catalog.CreatePermission(r.Context(), req.apply(types.Permission{}))
	if err != nil {
		writeServiceError(w, err, "permission not found", "failed to create permission")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandler) ReplacePermission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "permissionID", "permission")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req PermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	h.updatePermission(w, r, req.apply(types.Permission{ID: id}))
}

func (h *CatalogHandler) PatchPermission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "permissionID", "permission")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req PermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	current, err := h.catalog.GetPermission(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "permission not found", "failed to fetch permission")
		return
	}
	h.updatePermission(w, r, req.apply(current))
}

func (h *CatalogHandler) updatePermission(w http.ResponseWriter, r *http.Request, p types.Permission) {
	updated, err := h.catalog.UpdatePermission(r.Context(), p)
	if err != nil {
		writeServiceError(w, err, "permission not found", "failed to update permission")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *CatalogHandler) DeletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "permissionID", "permission")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.catalog.DeletePermission(r.Context(), id); err != nil {
		writeServiceError(w, err, "permission not found", "failed to delete permission")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req GroupRequest) apply(group types.Group) types.Group {
	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.Permissions != nil {
		group.Permissions = append([]int{}, *req.Permissions...)
	}
	return group
}

func (req PermissionRequest) apply(p types.Permission) types.Permission {
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Codename != nil {
		p.Codename = *req.Codename
	}
	if req.ContentType != nil {
		p.ContentType = *req.ContentType
	}
	return p
}
