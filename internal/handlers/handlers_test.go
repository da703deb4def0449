package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matchup/apiserver/internal/services"
	"github.com/matchup/apiserver/internal/testutil"
	"github.com/matchup/apiserver/types"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testAPI struct {
	t        *testing.T
	store    *testutil.Store
	pub      *testutil.Publisher
	accounts *services.AccountService
	router   chi.Router
}

func newTestAPI(t *testing.T, level AccessLevel) *testAPI {
	t.Helper()
	st := testutil.NewStore()
	pub := &testutil.Publisher{}
	events := services.NewEvents(pub, services.EventChannels{Verification: "verify", Assignment: "assign"}, nil)
	names := services.NewNameResolver(st.Profiles())
	accounts := services.NewAccountService(st.Users(), st.Profiles(), events, nil)
	members := services.NewMemberService(st.Users(), events, nil)
	catalog := NewCatalogHandler(services.NewCatalogService(st.Groups(), st.Permissions(), nil))
	gate := NewGate(st.Users(), testSecret, level, nil)

	r := chi.NewRouter()
	r.Get("/healthz", Healthz)
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, NewAuthHandler(accounts, names, testSecret, time.Hour))
	})
	r.Group(func(r chi.Router) {
		r.Use(gate.Require)
		r.Route("/admins", func(r chi.Router) {
			MemberRouter(r, NewMemberHandler(types.RoleAdmin, members, names))
		})
		r.Route("/matchmakers", func(r chi.Router) {
			MemberRouter(r, NewMemberHandler(types.RoleMatchmaker, members, names))
		})
		r.Route("/groups", func(r chi.Router) { GroupRouter(r, catalog) })
		r.Route("/permissions", func(r chi.Router) { PermissionRouter(r, catalog) })
	})

	return &testAPI{t: t, store: st, pub: pub, accounts: accounts, router: r}
}

// staffToken seeds an active staff user and returns a bearer token for it.
func (a *testAPI) staffToken() string {
	a.t.Helper()
	staff := a.store.SeedUser(a.t, testutil.StaffUser("staff@example.com"))
	return a.token(staff.ID)
}

func (a *testAPI) token(userID int) string {
	a.t.Helper()
	token, err := issueToken(userID, []byte(testSecret), time.Hour)
	require.NoError(a.t, err)
	return token
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, AccessStaff)
	rec := api.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
