package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/matchup/apiserver/internal/store"
	"github.com/matchup/apiserver/types"
	"go.uber.org/zap"
)

// AccessLevel is the minimum account status accepted by a Gate.
type AccessLevel int

const (
	AccessStaff AccessLevel = iota
	AccessSuperuser
)

func (l AccessLevel) String() string {
	if l == AccessSuperuser {
		return "superuser"
	}
	return "staff"
}

// ParseAccessLevel accepts "staff" (the default for "") and "superuser".
func ParseAccessLevel(value string) (AccessLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "staff":
		return AccessStaff, nil
	case "superuser":
		return AccessSuperuser, nil
	default:
		return AccessStaff, fmt.Errorf("unknown access level %q", value)
	}
}

func (l AccessLevel) allows(user types.User) bool {
	if !user.IsActive {
		return false
	}
	if l == AccessSuperuser {
		return user.IsSuperuser
	}
	return user.IsStaff
}

// UserLookup loads the authenticated user.
type UserLookup interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// Gate guards the management endpoints. Every denial, including missing or
// invalid credentials, is answered with 403.
type Gate struct {
	users  UserLookup
	secret []byte
	level  AccessLevel
	log    *zap.Logger
}

func NewGate(users UserLookup, jwtSecret string, level AccessLevel, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{users: users, secret: []byte(jwtSecret), level: level, log: log}
}

// Require is chi middleware enforcing the gate's access level.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := authenticate(r, g.secret)
		if err != nil {
			g.deny(w, r, 0, "unauthenticated")
			return
		}
		ctx := context.WithValue(r.Context(), contextSubjectKey, subject)

		userID, err := userIDFromContext(ctx)
		if err != nil {
			g.deny(w, r, 0, "invalid subject")
			return
		}
		user, err := g.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				g.deny(w, r, userID, "unknown user")
				return
			}
			g.log.Error("gate user lookup", zap.Int("user_id", userID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load user")
			return
		}
		if !g.level.allows(user) {
			g.deny(w, r, userID, "insufficient access")
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Gate) deny(w http.ResponseWriter, r *http.Request, userID int, reason string) {
	g.log.Debug("access denied",
		zap.String("path", r.URL.Path),
		zap.Int("user_id", userID),
		zap.String("level", g.level.String()),
		zap.String("reason", reason))
	writeError(w, http.StatusForbidden, "permission denied")
}
