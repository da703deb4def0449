package services

import (
	"context"
	"errors"
	"testing"

	"github.com/matchup/apiserver/internal/testutil"
	"github.com/matchup/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameResolverSingleUsesProfile(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore()
	user := st.SeedUser(t, types.User{Email: "s@example.com", Role: types.RoleSingle, FirstName: "Own", LastName: "Name"})
	st.SeedProfile(t, types.ProfileSingle, user.ID, "Ada", "Lovelace")

	names := NewNameResolver(st.Profiles())

	full, err := names.FullName(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", full)

	first, err := names.FirstName(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Ada", first)
}

func TestNameResolverMatchmakerWithoutProfile(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore()
	user := st.SeedUser(t, types.User{Email: "m@example.com", Role: types.RoleMatchmaker, FirstName: "Own", LastName: "Name"})

	names := NewNameResolver(st.Profiles())

	first, err := names.FirstName(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "", first)

	last, err := names.LastName(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "", last)

	full, err := names.FullName(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "", full)

	id, err := names.MatchmakerProfileID(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestNameResolverFallsBackToOwnFields(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore()
	names := NewNameResolver(st.Profiles())

	for _, role := range []types.Role{types.RoleNone, types.RoleAdmin} {
		user := st.SeedUser(t, types.User{Email: role.String() + "@example.com", Role: role, FirstName: "Grace", LastName: "Hopper"})
		// An admin profile never backs the display name.
		st.SeedProfile(t, types.ProfileAdmin, user.ID, "Not", "Used")

		full, err := names.FullName(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, "Grace Hopper", full, role.String())
	}

	onlyLast := st.SeedUser(t, types.User{Email: "last@example.com", LastName: "Hopper"})
	full, err := names.FullName(ctx, onlyLast)
	require.NoError(t, err)
	assert.Equal(t, "Hopper", full)
}

func TestNameResolverReflectsProfileChanges(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore()
	user := st.SeedUser(t, types.User{Email: "s@example.com", Role: types.RoleSingle})
	st.SeedProfile(t, types.ProfileSingle, user.ID, "Old", "Name")
	names := NewNameResolver(st.Profiles())

	full, err := names.FullName(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Old Name", full)

	require.True(t, st.Profiles().SetProfileName(types.ProfileSingle, user.ID, "New", "Name"))

	full, err = names.FullName(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "New Name", full)
}

func TestNameResolverProfileIDs(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore()
	names := NewNameResolver(st.Profiles())

	single := st.SeedUser(t, types.User{Email: "s@example.com", Role: types.RoleSingle})
	profile := st.SeedProfile(t, types.ProfileSingle, single.ID, "A", "B")

	id, err := names.SingleProfileID(ctx, single)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, profile.ID, *id)

	id, err = names.MatchmakerProfileID(ctx, single)
	require.NoError(t, err)
	assert.Nil(t, id)

	staff := st.SeedUser(t, testutil.StaffUser("staff@example.com"))
	id, err = names.SingleProfileID(ctx, staff)
	require.NoError(t, err)
	assert.Nil(t, id)
}

type failingProfiles struct{ err error }

func (f failingProfiles) FirstByUser(context.Context, types.ProfileKind, int) (types.Profile, error) {
	return types.Profile{}, f.err
}

func (f failingProfiles) GetOrCreate(context.Context, types.ProfileKind, types.Profile) (types.Profile, error) {
	return types.Profile{}, f.err
}

func TestNameResolverPropagatesStorageErrors(t *testing.T) {
	boom := errors.New("connection reset")
	names := NewNameResolver(failingProfiles{err: boom})

	_, err := names.FullName(context.Background(), types.User{ID: 1, Role: types.RoleSingle})
	assert.ErrorIs(t, err, boom)

	// Users without a profile collection never hit the repository.
	full, err := names.FullName(context.Background(), types.User{ID: 2, FirstName: "Own"})
	require.NoError(t, err)
	assert.Equal(t, "Own", full)
}
