package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/matchup/apiserver/internal/services"
	"github.com/matchup/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCreatesInactiveAccountWithProfile(t *testing.T) {
	api := newTestAPI(t, AccessStaff)

	rec := api.do(http.MethodPost, "/auth/register", "", map[string]any{
		"email":         "mm@Example.com",
		"password":      "secret",
		"first_name":    "Yenta",
		"last_name":     "Shapiro",
		"is_matchmaker": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[RegisterResponse](t, rec)
	assert.Equal(t, "mm@example.com", resp.User.Email)
	assert.False(t, resp.User.IsActive)
	assert.True(t, resp.User.IsMatchmaker)
	assert.Equal(t, "Yenta Shapiro", resp.User.FullName)
	require.NotNil(t, resp.ProfileID)
	assert.Equal(t, resp.ProfileID, resp.User.MatchmakerProfileID)

	msgs := api.pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "verify", msgs[0].Channel)
	var event types.AccountEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &event))
	assert.Equal(t, resp.User.ID, event.UserID)

	// Inactive accounts cannot log in.
	rec = api.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "mm@example.com", Password: "secret"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterRoleValidation(t *testing.T) {
	api := newTestAPI(t, AccessStaff)

	cases := map[string]map[string]any{
		"two flags":     {"email": "a@example.com", "is_single": true, "is_admin": true},
		"unknown role":  {"email": "b@example.com", "role": "wizard"},
		"disagreement":  {"email": "c@example.com", "role": "admin", "is_single": true},
		"missing email": {"email": " ", "role": "single"},
		"unknown field": {"email": "d@example.com", "nickname": "dee"},
		"long mobile":   {"email": "f@example.com", "mobile": "+1-555-123-4567"},
		"long name":     {"email": "g@example.com", "role": "matchmaker", "first_name": strings.Repeat("y", 60)},
	}
	for name, body := range cases {
		rec := api.do(http.MethodPost, "/auth/register", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}

	for _, email := range []string{"f@example.com", "g@example.com"} {
		_, err := api.store.Users().GetByEmail(context.Background(), email)
		assert.Error(t, err, email)
	}

	rec := api.do(http.MethodPost, "/auth/register", "", map[string]any{"email": "e@example.com", "role": "single", "is_single": true})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = api.do(http.MethodPost, "/auth/register", "", map[string]any{"email": "e@EXAMPLE.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginAndMe(t *testing.T) {
	api := newTestAPI(t, AccessStaff)
	user, err := api.accounts.CreateUser(context.Background(), "staff@example.com", "secret", services.UserFields{FirstName: "Sam"})
	require.NoError(t, err)

	rec := api.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "staff@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "staff@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: " staff@EXAMPLE.com", Password: "secret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[AuthResponse](t, rec)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, user.ID, login.User.ID)

	rec = api.do(http.MethodGet, "/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[UserView](t, rec)
	assert.Equal(t, "Sam", me.FullName)

	rec = api.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestParseTokenSubject(t *testing.T) {
	token, err := issueToken(42, []byte(testSecret), time.Minute)
	require.NoError(t, err)

	subject, err := parseTokenSubject(token, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, "42", subject)

	_, err = parseTokenSubject(token, []byte("other-secret"))
	assert.Error(t, err)
}
