package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/matchup/apiserver/types"
	"go.uber.org/zap"
)

// Assignment is a bulk grant of existing permissions and groups to one user.
type Assignment struct {
	UserID        int
	PermissionIDs []int
	GroupIDs      []int
}

// MemberDetails are the user attributes editable through the role-scoped
// collections.
type MemberDetails struct {
	Email     string
	FirstName string
	LastName  string
}

// MemberService serves the role-scoped user collections (matchmakers,
// admins). A user outside the requested role is reported as not found.
type MemberService struct {
	users  UserRepository
	events *Events
	log    *zap.Logger
}

func NewMemberService(users UserRepository, events *Events, log *zap.Logger) *MemberService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MemberService{users: users, events: events, log: log}
}

func (s *MemberService) List(ctx context.Context, role types.Role, offset, limit int) ([]types.User, int, error) {
	return s.users.ListByRole(ctx, role, offset, limit)
}

func (s *MemberService) Get(ctx context.Context, role types.Role, id int) (types.User, error) {
	return s.users.GetByIDInRole(ctx, id, role)
}

// UpdateDetails replaces the user's email and own names. Group and
// permission grants are untouched.
func (s *MemberService) UpdateDetails(ctx context.Context, role types.Role, id int, details MemberDetails) (types.User, error) {
	email := NormalizeEmail(details.Email)
	if email == "" {
		return types.User{}, invalid("email", "this field is required")
	}

	first := strings.TrimSpace(details.FirstName)
	last := strings.TrimSpace(details.LastName)
	if err := checkLengths(nameChecks(first, last)...); err != nil {
		return types.User{}, err
	}

	user, err := s.users.GetByIDInRole(ctx, id, role)
	if err != nil {
		return types.User{}, err
	}
	user.Email = email
	user.FirstName = first
	user.LastName = last

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, conflictAsValidation(err, "email", "a user with this email already exists")
	}
	return updated, nil
}

// Assign adds the permissions and groups in a to the scoped user. Grants are
// additive and idempotent; unknown ids abort the whole assignment with a
// *store.MissingReferencesError.
func (s *MemberService) Assign(ctx context.Context, role types.Role, a Assignment) (types.User, error) {
	if a.UserID < 1 {
		return types.User{}, invalid("id", "invalid user id")
	}
	if err := positiveIDs("user_permissions", a.PermissionIDs); err != nil {
		return types.User{}, err
	}
	if err := positiveIDs("groups", a.GroupIDs); err != nil {
		return types.User{}, err
	}

	if err := s.users.AddAccess(ctx, a.UserID, role, a.PermissionIDs, a.GroupIDs); err != nil {
		return types.User{}, fmt.Errorf("assign access to user %d: %w", a.UserID, err)
	}

	user, err := s.users.GetByID(ctx, a.UserID)
	if err != nil {
		return types.User{}, err
	}

	s.events.AccessAssigned(ctx, user, a.PermissionIDs, a.GroupIDs)
	s.log.Info("access assigned",
		zap.String("scope", role.String()),
		zap.Int("user_id", user.ID),
		zap.Ints("user_permissions", a.PermissionIDs),
		zap.Ints("groups", a.GroupIDs))
	return user, nil
}

func positiveIDs(field string, ids []int) error {
	for _, id := range ids {
		if id < 1 {
			return invalid(field, fmt.Sprintf("invalid id %d", id))
		}
	}
	return nil
}
