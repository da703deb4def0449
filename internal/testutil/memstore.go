// Package testutil provides in-memory repositories and fixtures for service
// and handler tests. The repositories follow the error contract of
// internal/store.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/matchup/apiserver/internal/store"
	"github.com/matchup/apiserver/types"
)

// Store is an in-memory stand-in for the Postgres repositories.
type Store struct {
	mu          sync.Mutex
	nextID      int
	users       map[int]types.User
	profiles    map[types.ProfileKind][]types.Profile
	groups      map[int]types.Group
	permissions map[int]types.Permission
	userGroups  map[int]map[int]struct{}
	userPerms   map[int]map[int]struct{}
}

func NewStore() *Store {
	return &Store{
		users:       map[int]types.User{},
		profiles:    map[types.ProfileKind][]types.Profile{},
		groups:      map[int]types.Group{},
		permissions: map[int]types.Permission{},
		userGroups:  map[int]map[int]struct{}{},
		userPerms:   map[int]map[int]struct{}{},
	}
}

func (s *Store) id() int {
	s.nextID++
	return s.nextID
}

// Users returns the store as a services.UserRepository.
func (s *Store) Users() *UserRepo { return &UserRepo{s} }

// Profiles returns the store as a services.ProfileRepository.
func (s *Store) Profiles() *ProfileRepo { return &ProfileRepo{s} }

// Groups returns the store as a services.GroupRepository.
func (s *Store) Groups() *GroupRepo { return &GroupRepo{s} }

// Permissions returns the store as a services.PermissionRepository.
func (s *Store) Permissions() *PermissionRepo { return &PermissionRepo{s} }

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func missing(want []int, have func(int) bool) []int {
	seen := map[int]struct{}{}
	var out []int
	for _, id := range want {
		if _, dup := seen[id]; dup || have(id) {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return append([]T{}, items[offset:end]...)
}

// UserRepo implements services.UserRepository.
type UserRepo struct{ s *Store }

func (r *UserRepo) load(id int) (types.User, bool) {
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, false
	}
	user.Groups = sortedKeys(r.s.userGroups[id])
	user.Permissions = sortedKeys(r.s.userPerms[id])
	return user, true
}

func (r *UserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.load(id)
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepo) GetByIDInRole(_ context.Context, id int, role types.Role) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.load(id)
	if !ok || user.Role != role {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, user := range r.s.users {
		if user.Email == email {
			loaded, _ := r.load(id)
			return loaded, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepo) ListByRole(_ context.Context, role types.Role, offset, limit int) ([]types.User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []int
	for id, user := range r.s.users {
		if user.Role == role {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	users := make([]types.User, 0, len(ids))
	for _, id := range ids {
		user, _ := r.load(id)
		users = append(users, user)
	}
	return page(users, offset, limit), len(users), nil
}

func (r *UserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}
	switch {
	case user.ID == 0:
		user.ID = r.s.id()
	case r.s.users[user.ID].ID != 0:
		return types.User{}, store.ErrConflict
	case user.ID > r.s.nextID:
		r.s.nextID = user.ID
	}
	user.Groups = nil
	user.Permissions = nil
	r.s.users[user.ID] = user
	created, _ := r.load(user.ID)
	return created, nil
}

func (r *UserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range r.s.users {
		if id != user.ID && existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.DateJoined = current.DateJoined
	user.LastLogin = current.LastLogin
	user.Groups = nil
	user.Permissions = nil
	r.s.users[user.ID] = user
	updated, _ := r.load(user.ID)
	return updated, nil
}

func (r *UserRepo) TouchLastLogin(_ context.Context, id int, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.LastLogin = &at
	r.s.users[id] = user
	return nil
}

func (r *UserRepo) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.users, id)
	delete(r.s.userGroups, id)
	delete(r.s.userPerms, id)
	for kind, profiles := range r.s.profiles {
		kept := profiles[:0:0]
		for _, p := range profiles {
			if p.UserID != id {
				kept = append(kept, p)
			}
		}
		r.s.profiles[kind] = kept
	}
	return nil
}

func (r *UserRepo) AddAccess(_ context.Context, userID int, role types.Role, permissionIDs, groupIDs []int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if user, ok := r.s.users[userID]; !ok || user.Role != role {
		return store.ErrNotFound
	}
	miss := &store.MissingReferencesError{
		Permissions: missing(permissionIDs, func(id int) bool { _, ok := r.s.permissions[id]; return ok }),
		Groups:      missing(groupIDs, func(id int) bool { _, ok := r.s.groups[id]; return ok }),
	}
	if len(miss.Permissions) > 0 || len(miss.Groups) > 0 {
		return miss
	}
	if r.s.userPerms[userID] == nil {
		r.s.userPerms[userID] = map[int]struct{}{}
	}
	if r.s.userGroups[userID] == nil {
		r.s.userGroups[userID] = map[int]struct{}{}
	}
	for _, id := range permissionIDs {
		r.s.userPerms[userID][id] = struct{}{}
	}
	for _, id := range groupIDs {
		r.s.userGroups[userID][id] = struct{}{}
	}
	return nil
}

// ProfileRepo implements services.ProfileRepository.
type ProfileRepo struct{ s *Store }

func (r *ProfileRepo) FirstByUser(_ context.Context, kind types.ProfileKind, userID int) (types.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.first(kind, userID)
}

func (r *ProfileRepo) first(kind types.ProfileKind, userID int) (types.Profile, error) {
	for _, p := range r.s.profiles[kind] {
		if p.UserID == userID {
			return p, nil
		}
	}
	return types.Profile{}, store.ErrNotFound
}

func (r *ProfileRepo) GetOrCreate(_ context.Context, kind types.ProfileKind, profile types.Profile) (types.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, err := r.first(kind, profile.UserID); err == nil {
		return existing, nil
	}
	if _, ok := r.s.users[profile.UserID]; !ok {
		return types.Profile{}, store.ErrNotFound
	}
	profile.ID = r.s.id()
	profile.Kind = kind
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}
	r.s.profiles[kind] = append(r.s.profiles[kind], profile)
	return profile, nil
}

// SetProfileName renames the profile of kind linked to userID.
func (r *ProfileRepo) SetProfileName(kind types.ProfileKind, userID int, first, last string) bool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, p := range r.s.profiles[kind] {
		if p.UserID == userID {
			r.s.profiles[kind][i].FirstName = first
			r.s.profiles[kind][i].LastName = last
			return true
		}
	}
	return false
}

// GroupRepo implements services.GroupRepository.
type GroupRepo struct{ s *Store }

func (r *GroupRepo) List(_ context.Context, offset, limit int) ([]types.Group, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]int, 0, len(r.s.groups))
	for id := range r.s.groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	groups := make([]types.Group, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, r.s.groups[id])
	}
	return page(groups, offset, limit), len(groups), nil
}

func (r *GroupRepo) Get(_ context.Context, id int) (types.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	group, ok := r.s.groups[id]
	if !ok {
		return types.Group{}, store.ErrNotFound
	}
	return group, nil
}

func (r *GroupRepo) validate(group types.Group) error {
	for id, existing := range r.s.groups {
		if id != group.ID && existing.Name == group.Name {
			return store.ErrConflict
		}
	}
	if miss := missing(group.Permissions, func(id int) bool { _, ok := r.s.permissions[id]; return ok }); len(miss) > 0 {
		return &store.MissingReferencesError{Permissions: miss}
	}
	return nil
}

func normalizePermissions(ids []int) []int {
	set := map[int]struct{}{}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return sortedKeys(set)
}

func (r *GroupRepo) Create(_ context.Context, group types.Group) (types.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	group.ID = 0
	if err := r.validate(group); err != nil {
		return types.Group{}, err
	}
	group.ID = r.s.id()
	group.Permissions = normalizePermissions(group.Permissions)
	r.s.groups[group.ID] = group
	return group, nil
}

func (r *GroupRepo) Update(_ context.Context, group types.Group) (types.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.groups[group.ID]
	if !ok {
		return types.Group{}, store.ErrNotFound
	}
	if err := r.validate(group); err != nil {
		return types.Group{}, err
	}
	if group.Permissions == nil {
		group.Permissions = current.Permissions
	} else {
		group.Permissions = normalizePermissions(group.Permissions)
	}
	r.s.groups[group.ID] = group
	return group, nil
}

func (r *GroupRepo) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.groups[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.groups, id)
	for _, set := range r.s.userGroups {
		delete(set, id)
	}
	return nil
}

// PermissionRepo implements services.PermissionRepository.
type PermissionRepo struct{ s *Store }

func (r *PermissionRepo) List(_ context.Context, offset, limit int) ([]types.Permission, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]int, 0, len(r.s.permissions))
	for id := range r.s.permissions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	perms := make([]types.Permission, 0, len(ids))
	for _, id := range ids {
		perms = append(perms, r.s.permissions[id])
	}
	return page(perms, offset, limit), len(perms), nil
}

func (r *PermissionRepo) Get(_ context.Context, id int) (types.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.permissions[id]
	if !ok {
		return types.Permission{}, store.ErrNotFound
	}
	return p, nil
}

func (r *PermissionRepo) conflicts(p types.Permission) bool {
	for id, existing := range r.s.permissions {
		if id != p.ID && existing.Codename == p.Codename && existing.ContentType == p.ContentType {
			return true
		}
	}
	return false
}

func (r *PermissionRepo) Create(_ context.Context, p types.Permission) (types.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = 0
	if r.conflicts(p) {
		return types.Permission{}, store.ErrConflict
	}
	p.ID = r.s.id()
	r.s.permissions[p.ID] = p
	return p, nil
}

func (r *PermissionRepo) Update(_ context.Context, p types.Permission) (types.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.permissions[p.ID]; !ok {
		return types.Permission{}, store.ErrNotFound
	}
	if r.conflicts(p) {
		return types.Permission{}, store.ErrConflict
	}
	r.s.permissions[p.ID] = p
	return p, nil
}

func (r *PermissionRepo) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.permissions[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.permissions, id)
	for _, set := range r.s.userPerms {
		delete(set, id)
	}
	for gid, group := range r.s.groups {
		kept := group.Permissions[:0:0]
		for _, pid := range group.Permissions {
			if pid != id {
				kept = append(kept, pid)
			}
		}
		group.Permissions = kept
		r.s.groups[gid] = group
	}
	return nil
}
