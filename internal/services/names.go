package services

import (
	"context"
	"errors"
	"strings"

	"github.com/matchup/apiserver/internal/store"
	"github.com/matchup/apiserver/types"
)

// ProfileRepository defines lookups over the per-role profile collections.
type ProfileRepository interface {
	FirstByUser(ctx context.Context, kind types.ProfileKind, userID int) (types.Profile, error)
	GetOrCreate(ctx context.Context, kind types.ProfileKind, profile types.Profile) (types.Profile, error)
}

// DisplayName is a resolved first/last name pair.
type DisplayName struct {
	First string
	Last  string
}

// Full joins the names with a single space. Empty names yield "".
func (d DisplayName) Full() string {
	return strings.TrimSpace(d.First + " " + d.Last)
}

// NameResolver resolves display names and profile ids through the profile
// collection selected by the user's role. Every call reads the profile
// again; nothing is cached.
type NameResolver struct {
	profiles ProfileRepository
}

func NewNameResolver(profiles ProfileRepository) *NameResolver {
	return &NameResolver{profiles: profiles}
}

// linkedProfile returns the first profile backing user. ok is false when the
// role has no profile collection or the profile does not exist yet.
func (n *NameResolver) linkedProfile(ctx context.Context, user types.User) (profile types.Profile, hasKind, ok bool, err error) {
	kind, hasKind := user.Role.ProfileKind()
	if !hasKind {
		return types.Profile{}, false, false, nil
	}
	profile, err = n.profiles.FirstByUser(ctx, kind, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Profile{}, true, false, nil
		}
		return types.Profile{}, true, false, err
	}
	return profile, true, true, nil
}

// Resolve returns the user's display name. Profile-backed roles read the
// profile (empty names when it is missing); other users fall back to their
// own fields.
func (n *NameResolver) Resolve(ctx context.Context, user types.User) (DisplayName, error) {
	profile, hasKind, ok, err := n.linkedProfile(ctx, user)
	if err != nil {
		return DisplayName{}, err
	}
	switch {
	case ok:
		return DisplayName{First: profile.FirstName, Last: profile.LastName}, nil
	case hasKind:
		return DisplayName{}, nil
	default:
		return DisplayName{First: user.FirstName, Last: user.LastName}, nil
	}
}

func (n *NameResolver) FirstName(ctx context.Context, user types.User) (string, error) {
	name, err := n.Resolve(ctx, user)
	return name.First, err
}

func (n *NameResolver) LastName(ctx context.Context, user types.User) (string, error) {
	name, err := n.Resolve(ctx, user)
	return name.Last, err
}

func (n *NameResolver) FullName(ctx context.Context, user types.User) (string, error) {
	name, err := n.Resolve(ctx, user)
	return name.Full(), err
}

// SingleProfileID returns the id of the user's single profile, or nil when
// the user is not single or has no profile yet.
func (n *NameResolver) SingleProfileID(ctx context.Context, user types.User) (*int, error) {
	return n.profileID(ctx, user, types.RoleSingle)
}

// MatchmakerProfileID returns the id of the user's matchmaker profile, or nil
// when the user is not a matchmaker or has no profile yet.
func (n *NameResolver) MatchmakerProfileID(ctx context.Context, user types.User) (*int, error) {
	return n.profileID(ctx, user, types.RoleMatchmaker)
}

func (n *NameResolver) profileID(ctx context.Context, user types.User, role types.Role) (*int, error) {
	if user.Role != role {
		return nil, nil
	}
	profile, _, ok, err := n.linkedProfile(ctx, user)
	if err != nil || !ok {
		return nil, err
	}
	id := profile.ID
	return &id, nil
}
