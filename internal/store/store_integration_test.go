//go:build integration

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/matchup/apiserver/types"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type StoreIntegrationSuite struct {
	suite.Suite
	container   *postgres.PostgresContainer
	db          *sql.DB
	users       *UserRepository
	profiles    *ProfileRepository
	groups      *GroupRepository
	permissions *PermissionRepository
}

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StoreIntegrationSuite))
}

func (s *StoreIntegrationSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("matchup_test"),
		postgres.WithUsername("matchup"),
		postgres.WithPassword("matchup"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(time.Minute),
		),
	)
	s.Require().NoError(err, "start postgres container")
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	migrator, err := migrate.New("file://../db/migrations", dsn)
	s.Require().NoError(err)
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		s.T().Fatalf("run migrations: %v", err)
	}
	_, _ = migrator.Close()

	s.db, err = sql.Open("postgres", dsn)
	s.Require().NoError(err)

	s.users = NewUserRepository(s.db)
	s.profiles = NewProfileRepository(s.db)
	s.groups = NewGroupRepository(s.db)
	s.permissions = NewPermissionRepository(s.db)
}

func (s *StoreIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.container != nil {
		if err := s.container.Terminate(context.Background()); err != nil {
			s.T().Fatalf("terminate postgres container: %v", err)
		}
	}
}

func (s *StoreIntegrationSuite) SetupTest() {
	_, err := s.db.Exec(`TRUNCATE users, permissions, groups RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)
}

func (s *StoreIntegrationSuite) createUser(email string, role types.Role) types.User {
	user, err := s.users.Create(context.Background(), types.User{Email: email, Role: role, PasswordHash: "!unusable"})
	s.Require().NoError(err)
	return user
}

func (s *StoreIntegrationSuite) createPermission(codename string) types.Permission {
	p, err := s.permissions.Create(context.Background(), types.Permission{Name: codename, Codename: codename, ContentType: "profiles.profile"})
	s.Require().NoError(err)
	return p
}

func (s *StoreIntegrationSuite) TestUserConstraints() {
	ctx := context.Background()
	s.createUser("ada@example.com", types.RoleAdmin)

	_, err := s.users.Create(ctx, types.User{Email: "ada@example.com", PasswordHash: "x"})
	s.ErrorIs(err, ErrConflict)

	_, err = s.users.Create(ctx, types.User{Email: "long@example.com", Mobile: "+1-555-123-4567", PasswordHash: "x"})
	s.ErrorIs(err, ErrValueTooLong)

	_, err = s.users.Create(ctx, types.User{Email: "wide@example.com", FirstName: strings.Repeat("ł", 50), PasswordHash: "x"})
	s.NoError(err)
}

func (s *StoreIntegrationSuite) TestListByRolePages() {
	ctx := context.Background()
	first := s.createUser("mm1@example.com", types.RoleMatchmaker)
	s.createUser("admin@example.com", types.RoleAdmin)
	second := s.createUser("mm2@example.com", types.RoleMatchmaker)

	users, total, err := s.users.ListByRole(ctx, types.RoleMatchmaker, 0, 1)
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(users, 1)
	s.Equal(first.ID, users[0].ID)

	users, _, err = s.users.ListByRole(ctx, types.RoleMatchmaker, 1, 10)
	s.Require().NoError(err)
	s.Require().Len(users, 1)
	s.Equal(second.ID, users[0].ID)
}

func (s *StoreIntegrationSuite) TestAddAccessIsAdditiveAndScoped() {
	ctx := context.Background()
	user := s.createUser("mm@example.com", types.RoleMatchmaker)
	p1 := s.createPermission("view_profile")
	p2 := s.createPermission("change_profile")
	group, err := s.groups.Create(ctx, types.Group{Name: "moderators", Permissions: []int{}})
	s.Require().NoError(err)

	s.Require().NoError(s.users.AddAccess(ctx, user.ID, types.RoleMatchmaker, []int{p1.ID}, []int{group.ID}))
	s.Require().NoError(s.users.AddAccess(ctx, user.ID, types.RoleMatchmaker, []int{p1.ID, p2.ID}, []int{group.ID}))

	stored, err := s.users.GetByID(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal([]int{p1.ID, p2.ID}, stored.Permissions)
	s.Equal([]int{group.ID}, stored.Groups)

	err = s.users.AddAccess(ctx, user.ID, types.RoleAdmin, []int{p1.ID}, nil)
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreIntegrationSuite) TestAddAccessRollsBackOnMissingReferences() {
	ctx := context.Background()
	user := s.createUser("admin@example.com", types.RoleAdmin)
	p1 := s.createPermission("view_profile")

	err := s.users.AddAccess(ctx, user.ID, types.RoleAdmin, []int{p1.ID, 999, 999}, []int{998})
	var missing *MissingReferencesError
	s.Require().True(errors.As(err, &missing))
	s.Equal([]int{999}, missing.Permissions)
	s.Equal([]int{998}, missing.Groups)

	stored, err := s.users.GetByID(ctx, user.ID)
	s.Require().NoError(err)
	s.Empty(stored.Permissions)
	s.Empty(stored.Groups)
}

func (s *StoreIntegrationSuite) TestGroupPermissions() {
	ctx := context.Background()
	p1 := s.createPermission("view_profile")
	p2 := s.createPermission("change_profile")

	group, err := s.groups.Create(ctx, types.Group{Name: "editors", Permissions: []int{p1.ID}})
	s.Require().NoError(err)
	s.Equal([]int{p1.ID}, group.Permissions)

	renamed, err := s.groups.Update(ctx, types.Group{ID: group.ID, Name: "writers"})
	s.Require().NoError(err)
	s.Equal([]int{p1.ID}, renamed.Permissions)

	replaced, err := s.groups.Update(ctx, types.Group{ID: group.ID, Name: "writers", Permissions: []int{p2.ID}})
	s.Require().NoError(err)
	s.Equal([]int{p2.ID}, replaced.Permissions)

	_, err = s.groups.Update(ctx, types.Group{ID: group.ID, Name: "ghosts", Permissions: []int{999}})
	s.ErrorIs(err, ErrNotFound)
	current, err := s.groups.Get(ctx, group.ID)
	s.Require().NoError(err)
	s.Equal("writers", current.Name)
	s.Equal([]int{p2.ID}, current.Permissions)

	_, err = s.groups.Create(ctx, types.Group{Name: "writers"})
	s.ErrorIs(err, ErrConflict)

	s.Require().NoError(s.permissions.Delete(ctx, p2.ID))
	current, err = s.groups.Get(ctx, group.ID)
	s.Require().NoError(err)
	s.Empty(current.Permissions)
}

func (s *StoreIntegrationSuite) TestProfilesFollowTheirUser() {
	ctx := context.Background()
	user := s.createUser("single@example.com", types.RoleSingle)

	created, err := s.profiles.GetOrCreate(ctx, types.ProfileSingle, types.Profile{UserID: user.ID, FirstName: "Yenta"})
	s.Require().NoError(err)
	again, err := s.profiles.GetOrCreate(ctx, types.ProfileSingle, types.Profile{UserID: user.ID, FirstName: "Other"})
	s.Require().NoError(err)
	s.Equal(created.ID, again.ID)
	s.Equal("Yenta", again.FirstName)

	_, err = s.profiles.GetOrCreate(ctx, types.ProfileMatchmaker, types.Profile{UserID: user.ID, LastName: strings.Repeat("y", 51)})
	s.ErrorIs(err, ErrValueTooLong)

	_, err = s.profiles.GetOrCreate(ctx, types.ProfileSingle, types.Profile{UserID: 424242})
	s.ErrorIs(err, ErrNotFound)

	s.Require().NoError(s.users.Delete(ctx, user.ID))
	_, err = s.profiles.FirstByUser(ctx, types.ProfileSingle, user.ID)
	s.ErrorIs(err, ErrNotFound)
	s.ErrorIs(s.users.Delete(ctx, user.ID), ErrNotFound)
}
