package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/matchup/apiserver/internal/services"
	"github.com/matchup/apiserver/types"
)

// MemberHandler serves one role-scoped user collection.
type MemberHandler struct {
	role    types.Role
	members *services.MemberService
	users   userPresenter
}

func NewMemberHandler(role types.Role, members *services.MemberService, names *services.NameResolver) *MemberHandler {
	return &MemberHandler{
		role:    role,
		members: members,
		users:   userPresenter{names: names},
	}
}

// MemberRouter registers the collection routes for handler's role. Callers
// mount it behind the access gate.
func MemberRouter(r chi.Router, handler *MemberHandler) {
	r.Get("/", handler.List)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.Put("/", handler.Update)
		r.Patch("/", handler.Assign)
	})
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, total, err := h.members.List(r.Context(), h.role, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	items, err := h.users.views(r.Context(), users)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[UserView]{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.members.Get(r.Context(), h.role, id)
	if err != nil {
		writeServiceError(w, err, "user not found", "failed to fetch user")
		return
	}
	h.writeUser(w, r, user)
}

// Update replaces the user's email and own names.
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req MemberUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.members.UpdateDetails(r.Context(), h.role, id, services.MemberDetails{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeServiceError(w, err, "user not found", "failed to update user")
		return
	}
	h.writeUser(w, r, user)
}

// Assign adds permissions and groups to the user. Existing grants are kept.
func (h *MemberHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req AssignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.ID != nil && *req.ID != id {
		writeError(w, http.StatusBadRequest, "id: does not match the user in the path")
		return
	}

	user, err := h.members.Assign(r.Context(), h.role, services.Assignment{
		UserID:        id,
		PermissionIDs: req.Permissions,
		GroupIDs:      req.Groups,
	})
	if err != nil {
		writeServiceError(w, err, "user not found", "failed to assign access")
		return
	}
	h.writeUser(w, r, user)
}

func (h *MemberHandler) writeUser(w http.ResponseWriter, r *http.Request, user types.User) {
	view, err := h.users.view(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type MemberUpdateRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type AssignRequest struct {
	ID          *int  `json:"id"`
	Permissions []int `json:"user_permissions"`
	Groups      []int `json:"groups"`
}
