package handlers

import (
	"context"
	"time"

	"github.com/matchup/apiserver/internal/services"
	"github.com/matchup/apiserver/types"
)

// UserView is the serialized form of a user. Names are resolved through the
// profile linked to the user's role.
type UserView struct {
	ID                  int        `json:"id"`
	Email               string     `json:"email"`
	Username            string     `json:"username,omitempty"`
	Mobile              string     `json:"mobile,omitempty"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	FullName            string     `json:"full_name"`
	Role                types.Role `json:"role"`
	IsSingle            bool       `json:"is_single"`
	IsMatchmaker        bool       `json:"is_matchmaker"`
	IsAdmin             bool       `json:"is_admin"`
	IsStaff             bool       `json:"is_staff"`
	IsActive            bool       `json:"is_active"`
	IsSuperuser         bool       `json:"is_superuser"`
	Groups              []int      `json:"groups"`
	Permissions         []int      `json:"user_permissions"`
	SingleProfileID     *int       `json:"single_profile_id"`
	MatchmakerProfileID *int       `json:"matchmaker_profile_id"`
	DateJoined          time.Time  `json:"date_joined"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
}

type userPresenter struct {
	names *services.NameResolver
}

func (p userPresenter) view(ctx context.Context, user types.User) (UserView, error) {
	name, err := p.names.Resolve(ctx, user)
	if err != nil {
		return UserView{}, err
	}
	singleID, err := p.names.SingleProfileID(ctx, user)
	if err != nil {
		return UserView{}, err
	}
	matchmakerID, err := p.names.MatchmakerProfileID(ctx, user)
	if err != nil {
		return UserView{}, err
	}

	groups, perms := user.Groups, user.Permissions
	if groups == nil {
		groups = []int{}
	}
	if perms == nil {
		perms = []int{}
	}

	return UserView{
		ID:                  user.ID,
		Email:               user.Email,
		Username:            user.Username,
		Mobile:              user.Mobile,
		FirstName:           name.First,
		LastName:            name.Last,
		FullName:            name.Full(),
		Role:                user.Role,
		IsSingle:            user.IsSingle(),
		IsMatchmaker:        user.IsMatchmaker(),
		IsAdmin:             user.IsAdmin(),
		IsStaff:             user.IsStaff,
		IsActive:            user.IsActive,
		IsSuperuser:         user.IsSuperuser,
		Groups:              groups,
		Permissions:         perms,
		SingleProfileID:     singleID,
		MatchmakerProfileID: matchmakerID,
		DateJoined:          user.DateJoined,
		LastLogin:           user.LastLogin,
	}, nil
}

func (p userPresenter) views(ctx context.Context, users []types.User) ([]UserView, error) {
	out := make([]UserView, 0, len(users))
	for _, user := range users {
		v, err := p.view(ctx, user)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
