package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matchup/apiserver/internal/store"
	"github.com/matchup/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// unusablePasswordPrefix marks hashes that never verify.
const unusablePasswordPrefix = "!"

const cleanupTimeout = 5 * time.Second

// passwordCost is the bcrypt cost for new password hashes.
var passwordCost = bcrypt.DefaultCost

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByIDInRole(ctx context.Context, id int, role types.Role) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	ListByRole(ctx context.Context, role types.Role, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	TouchLastLogin(ctx context.Context, id int, at time.Time) error
	AddAccess(ctx context.Context, userID int, role types.Role, permissionIDs, groupIDs []int) error
	Delete(ctx context.Context, id int) error
}

// UserFields are the optional attributes accepted by the account factory.
type UserFields struct {
	Username  string
	Mobile    string
	FirstName string
	LastName  string
	Role      types.Role
}

// Registration is the payload of CreateUserProfile.
type Registration struct {
	Email    string
	Password string
	UserFields
}

// Account pairs a created user with the profile linked to its role. Profile
// is nil for roles without a profile collection.
type Account struct {
	User    types.User
	Profile *types.Profile
}

// AccountService creates and authenticates users.
type AccountService struct {
	users    UserRepository
	profiles ProfileRepository
	events   *Events
	log      *zap.Logger
	now      func() time.Time
}

func NewAccountService(users UserRepository, profiles ProfileRepository, events *Events, log *zap.Logger) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{
		users:    users,
		profiles: profiles,
		events:   events,
		log:      log,
		now:      time.Now,
	}
}

func (s *AccountService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.users.GetByID(ctx, id)
}

// CreateUser creates an active, non-staff user.
func (s *AccountService) CreateUser(ctx context.Context, email, password string, extra UserFields) (types.User, error) {
	return s.createUser(ctx, email, password, false, false, true, extra)
}

// CreateSuperuser creates an active user with staff and superuser status.
func (s *AccountService) CreateSuperuser(ctx context.Context, email, password string, extra UserFields) (types.User, error) {
	return s.createUser(ctx, email, password, true, true, true, extra)
}

// CreateUserProfile creates a user (inactive unless isActive) and the profile
// matching its role, then requests account verification. The user is removed
// again when the profile cannot be linked.
func (s *AccountService) CreateUserProfile(ctx context.Context, data Registration, isActive bool) (Account, error) {
	fields := data.UserFields
	name := DisplayName{First: strings.TrimSpace(data.FirstName), Last: strings.TrimSpace(data.LastName)}
	if err := checkLengths(nameChecks(name.First, name.Last)...); err != nil {
		return Account{}, err
	}
	role, _ := types.ParseRole(string(fields.Role))
	if _, profileBacked := role.ProfileKind(); profileBacked {
		// Profile-backed users keep their names on the profile.
		fields.FirstName, fields.LastName = "", ""
	}

	user, err := s.createUser(ctx, data.Email, data.Password, false, false, isActive, fields)
	if err != nil {
		return Account{}, err
	}

	profile, err := s.LinkProfile(ctx, user, name)
	if err != nil {
		s.discardUser(ctx, user.ID)
		return Account{}, fmt.Errorf("create profile for user %d: %w", user.ID, err)
	}

	s.events.AccountCreated(ctx, user)
	s.log.Info("account registered",
		zap.Int("user_id", user.ID),
		zap.String("role", user.Role.String()),
		zap.Bool("active", user.IsActive))

	return Account{User: user, Profile: profile}, nil
}

// discardUser deletes a user whose registration did not complete. It runs
// even when ctx is already cancelled.
func (s *AccountService) discardUser(ctx context.Context, id int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.users.Delete(ctx, id); err != nil {
		s.log.Error("remove unlinked user", zap.Int("user_id", id), zap.Error(err))
	}
}

// LinkProfile returns the profile for the user's role, creating it with name
// when missing. It returns nil for roles without a profile collection.
func (s *AccountService) LinkProfile(ctx context.Context, user types.User, name DisplayName) (*types.Profile, error) {
	kind, ok := user.Role.ProfileKind()
	if !ok {
		return nil, nil
	}
	if err := checkLengths(nameChecks(name.First, name.Last)...); err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetOrCreate(ctx, kind, types.Profile{
		UserID:    user.ID,
		Kind:      kind,
		FirstName: name.First,
		LastName:  name.Last,
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Authenticate verifies credentials and records the login time.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return types.User{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if !user.IsActive || !CheckPassword(user.PasswordHash, password) {
		return types.User{}, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("record last login", zap.Int("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}
	return user, nil
}

func (s *AccountService) createUser(ctx context.Context, email, password string, isStaff, isSuperuser, isActive bool, extra UserFields) (types.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return types.User{}, invalid("email", "the given email must be set")
	}
	role, ok := types.ParseRole(string(extra.Role))
	if !ok {
		return types.User{}, invalid("role", fmt.Sprintf("unknown role %q", extra.Role))
	}
	username := strings.TrimSpace(extra.Username)
	mobile := strings.TrimSpace(extra.Mobile)
	first := strings.TrimSpace(extra.FirstName)
	last := strings.TrimSpace(extra.LastName)
	checks := append(nameChecks(first, last), lengthCheck{field: "mobile", value: mobile, limit: maxMobileLength})
	if err := checkLengths(checks...); err != nil {
		return types.User{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return types.User{}, invalid("password", "password must be at most 72 bytes")
		}
		return types.User{}, err
	}

	now := s.now()
	user, err := s.users.Create(ctx, types.User{
		Email:        email,
		Username:     username,
		Mobile:       mobile,
		FirstName:    first,
		LastName:     last,
		Role:         role,
		IsStaff:      isStaff,
		IsActive:     isActive,
		IsSuperuser:  isSuperuser,
		PasswordHash: hash,
		DateJoined:   now,
		LastLogin:    &now,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, invalid("email", "a user with this email already exists")
		}
		return types.User{}, err
	}
	return user, nil
}

// NormalizeEmail trims the address and lower-cases its domain part.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// HashPassword returns a bcrypt hash of password. An empty password yields
// an unusable hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		var buf [30]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", err
		}
		return unusablePasswordPrefix + base64.RawURLEncoding.EncodeToString(buf[:]), nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	if hash == "" || strings.HasPrefix(hash, unusablePasswordPrefix) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
