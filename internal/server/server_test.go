package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/matchup/apiserver/config"
	"github.com/matchup/apiserver/internal/handlers"
	"github.com/matchup/apiserver/internal/services"
	"github.com/matchup/apiserver/internal/testutil"
	"github.com/matchup/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const secret = "router-secret"

func newTestRouter(t *testing.T, st *testutil.Store, pub *testutil.Publisher) (http.Handler, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	deps := Deps{
		Users:       st.Users(),
		Profiles:    st.Profiles(),
		Groups:      st.Groups(),
		Permissions: st.Permissions(),
		Channels:    services.EventChannels{Verification: "account.verification", Assignment: "access.assigned"},
		JWT:         config.JWTConfig{Secret: secret, TokenTTL: time.Hour},
		GateLevel:   handlers.AccessStaff,
		Log:         zap.New(core),
	}
	if pub != nil {
		deps.Publisher = pub
	}
	return NewRouter(deps), logs
}

func bearer(t *testing.T, userID int) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   fmt.Sprint(userID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestRouterTrailingSlashesAndGate(t *testing.T) {
	st := testutil.NewStore()
	router, logs := newTestRouter(t, st, nil)

	staff := st.SeedUser(t, testutil.StaffUser("staff@example.com"))
	mm := st.SeedUser(t, types.User{Email: "mm@example.com", Role: types.RoleMatchmaker})

	for _, path := range []string{"/matchmakers", "/matchmakers/", fmt.Sprintf("/matchmakers/%d/", mm.ID)} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", bearer(t, staff.ID))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admins/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.NotZero(t, logs.FilterMessage("request").Len())
	assert.Equal(t, 1, logs.FilterMessage("request").FilterField(zap.Int("status", http.StatusForbidden)).Len())
}

func TestRouterAssignmentPublishesEvent(t *testing.T) {
	st := testutil.NewStore()
	pub := &testutil.Publisher{}
	router, _ := newTestRouter(t, st, pub)

	staff := st.SeedUser(t, testutil.StaffUser("staff@example.com"))
	admin := st.SeedUser(t, types.User{Email: "admin@example.com", Role: types.RoleAdmin})
	group := st.SeedGroup(t, "editors")

	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/admins/%d/", admin.ID),
		strings.NewReader(fmt.Sprintf(`{"id": %d, "groups": [%d], "user_permissions": []}`, admin.ID, group.ID)))
	req.Header.Set("Authorization", bearer(t, staff.ID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "access.assigned", msgs[0].Channel)
}
