package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/matchup/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberListIsScopedAndResolvesNames(t *testing.T) {
	api := newTestAPI(t, AccessStaff)
	token := api.staffToken()

	mm := api.store.SeedUser(t, types.User{Email: "mm@example.com", Role: types.RoleMatchmaker, FirstName: "ignored"})
	profile := api.store.SeedProfile(t, types.ProfileMatchmaker, mm.ID, "Yenta", "Shapiro")
	api.store.SeedUser(t, types.User{Email: "single@example.com", Role: types.RoleSingle})
	api.store.SeedUser(t, types.User{Email: "admin@example.com", Role: types.RoleAdmin})

	rec := api.do(http.MethodGet, "/matchmakers?page=1&limit=10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[ListResponse[UserView]](t, rec)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Items, 1)

	got := list.Items[0]
	assert.Equal(t, mm.ID, got.ID)
	assert.Equal(t, "Yenta", got.FirstName)
	assert.Equal(t, "Shapiro", got.LastName)
	assert.Equal(t, "Yenta Shapiro", got.FullName)
	assert.True(t, got.IsMatchmaker)
	assert.False(t, got.IsAdmin)
	require.NotNil(t, got.MatchmakerProfileID)
	assert.Equal(t, profile.ID, *got.MatchmakerProfileID)
	assert.Nil(t, got.SingleProfileID)
	assert.Equal(t, []int{}, got.Groups)
}

func TestMemberListRejectsBadPagination(t *testing.T) {
	api := newTestAPI(t, AccessStaff)
	rec := api.do(http.MethodGet, "/admins?page=0", api.staffToken(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemberGetOutsideScope(t *testing.T) {
	api := newTestAPI(t, AccessStaff)
	token := api.staffToken()
	admin := api.store.SeedUser(t, types.User{Email: "admin@example.com", Role: types.RoleAdmin, FirstName: "Ada"})

	rec := api.do(http.MethodGet, fmt.Sprintf("/matchmakers/%d", admin.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, fmt.Sprintf("/admins/%d", admin.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[UserView](t, rec)
	assert.Equal(t, "Ada", view.FullName)

	rec = api.do(http.MethodGet, "/admins/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemberAssign(t *testing.T) {
	api := newTestAPI(t, AccessStaff)
	token := api.staffToken()

	user := api.store.SeedUser(t, types.User{ID: 7, Email: "mm@example.com", Role: types.RoleMatchmaker})
	perm := api.store.SeedPermission(t, "view_profile")
	group := api.store.SeedGroup(t, "moderators")

	path := fmt.Sprintf("/matchmakers/%d", user.ID)
	rec := api.do(http.MethodPatch, path, token, map[string]any{
		"id":               7,
		"user_permissions": []int{perm.ID},
		"groups":           []int{},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[UserView](t, rec)
	assert.Equal(t, 7, view.ID)
	assert.Equal(t, []int{perm.ID}, view.Permissions)
	assert.Equal(t, []int{}, view.Groups)

	// Repeating the grant and adding a group keeps the permission.
	rec = api.do(http.MethodPatch, path, token, map[string]any{
		"user_permissions": []int{perm.ID},
		"groups":           []int{group.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[UserView](t, rec)
	assert.Equal(t, []int{perm.ID}, view.Permissions)
	assert.Equal(t, []int{group.ID}, view.Groups)

	assigned := 0
	for _, msg := range api.pub.Messages() {
		if msg.Channel == "assign" {
			assigned++
		}
	}
	assert.Equal(t, 2, assigned)
}

func TestMemberAssignErrors(t *testing.T) {
	api := newTestAPI(t, AccessStaff)
	token := api.staffToken()

	admin := api.store.SeedUser(t, types.User{Email: "admin@example.com", Role: types.RoleAdmin})
	perm := api.store.SeedPermission(t, "view_profile")
	path := fmt.Sprintf("/admins/%d", admin.ID)

	rec := api.do(http.MethodPatch, path, token, map[string]any{"id": admin.ID + 1, "groups": []int{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPatch, path, token, map[string]any{"user_permissions": []int{perm.ID, 404}, "groups": []int{405}})
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, []int{404}, body.MissingPermissions)
	assert.Equal(t, []int{405}, body.MissingGroups)

	stored, err := api.store.Users().GetByID(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Permissions)

	rec = api.do(http.MethodPatch, fmt.Sprintf("/matchmakers/%d", admin.ID), token, map[string]any{"user_permissions": []int{perm.ID}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodPatch, path, token, `{"user_permissions": "all"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPatch, path, token, map[string]any{"user_permissions": []int{-1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemberUpdate(t *testing.T) {
	api := newTestAPI(t, AccessStaff)
	token := api.staffToken()

	admin := api.store.SeedUser(t, types.User{Email: "admin@example.com", Role: types.RoleAdmin})
	group := api.store.SeedGroup(t, "editors")
	require.NoError(t, api.store.Users().AddAccess(context.Background(), admin.ID, types.RoleAdmin, nil, []int{group.ID}))

	path := fmt.Sprintf("/admins/%d", admin.ID)
	rec := api.do(http.MethodPut, path, token, MemberUpdateRequest{Email: "ada@Example.com", FirstName: "Ada", LastName: "Lovelace"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view := decode[UserView](t, rec)
	assert.Equal(t, "ada@example.com", view.Email)
	assert.Equal(t, "Ada Lovelace", view.FullName)
	assert.Equal(t, []int{group.ID}, view.Groups)

	rec = api.do(http.MethodPut, path, token, MemberUpdateRequest{Email: "staff@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
