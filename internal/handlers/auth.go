package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/matchup/apiserver/internal/services"
	"github.com/matchup/apiserver/internal/store"
	"github.com/matchup/apiserver/types"
)

const defaultTokenTTL = 24 * time.Hour

// AuthHandler provides JWT authentication and self-registration endpoints.
type AuthHandler struct {
	accounts *services.AccountService
	users    userPresenter
	secret   []byte
	tokenTTL time.Duration
}

// NewAuthHandler constructs an AuthHandler. A zero ttl uses one day.
func NewAuthHandler(accounts *services.AccountService, names *services.NameResolver, jwtSecret string, ttl time.Duration) *AuthHandler {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthHandler{
		accounts: accounts,
		users:    userPresenter{names: names},
		secret:   []byte(jwtSecret),
		tokenTTL: ttl,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth enforces JWT authentication and injects the subject into context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := authenticate(r, h.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextSubjectKey, subject)))
	})
}

// Register creates an inactive account and the profile for its role. The
// account cannot log in until it is activated.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	role, err := req.role()
	if err != nil {
		writeServiceError(w, err, "", "failed to create user")
		return
	}

	account, err := h.accounts.CreateUserProfile(r.Context(), services.Registration{
		Email:    req.Email,
		Password: req.Password,
		UserFields: services.UserFields{
			Username:  req.Username,
			Mobile:    req.Mobile,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Role:      role,
		},
	}, false)
	if err != nil {
		writeServiceError(w, err, "", "failed to create user")
		return
	}

	view, err := h.users.view(r.Context(), account.User)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	resp := RegisterResponse{User: view}
	if account.Profile != nil {
		resp.ProfileID = &account.Profile.ID
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Login verifies credentials and returns a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	view, err := h.users.view(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: view})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.accounts.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	view, err := h.users.view(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// RegisterRequest accepts either role or one of the legacy role flags.
type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Username     string `json:"username"`
	Mobile       string `json:"mobile"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Role         string `json:"role"`
	IsSingle     bool   `json:"is_single"`
	IsMatchmaker bool   `json:"is_matchmaker"`
	IsAdmin      bool   `json:"is_admin"`
}

func (req RegisterRequest) role() (types.Role, error) {
	fromFlags, ok := types.RoleFromFlags(req.IsSingle, req.IsMatchmaker, req.IsAdmin)
	if !ok {
		return "", &services.ValidationError{Field: "role", Message: "at most one of is_single, is_matchmaker, is_admin may be set"}
	}
	if strings.TrimSpace(req.Role) == "" {
		return fromFlags, nil
	}
	role, ok := types.ParseRole(req.Role)
	if !ok {
		return "", &services.ValidationError{Field: "role", Message: "unknown role " + strconv.Quote(req.Role)}
	}
	if fromFlags != types.RoleNone && fromFlags != role {
		return "", &services.ValidationError{Field: "role", Message: "role disagrees with role flags"}
	}
	return role, nil
}

type RegisterResponse struct {
	User      UserView `json:"user"`
	ProfileID *int     `json:"profile_id"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

func issueToken(userID int, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// authenticate returns the token subject carried by the request.
func authenticate(r *http.Request, secret []byte) (string, error) {
	tokenString, err := bearerToken(r)
	if err != nil {
		return "", err
	}
	return parseTokenSubject(tokenString, secret)
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
