package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/matchup/apiserver/types"
)

// WithChiURLParam adds a chi URL parameter to the request context.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// SeedUser inserts user directly, bypassing the account factory.
func (s *Store) SeedUser(t *testing.T, user types.User) types.User {
	t.Helper()
	created, err := s.Users().Create(context.Background(), user)
	if err != nil {
		t.Fatalf("seed user %q: %v", user.Email, err)
	}
	return created
}

// SeedProfile links a profile of kind to userID.
func (s *Store) SeedProfile(t *testing.T, kind types.ProfileKind, userID int, first, last string) types.Profile {
	t.Helper()
	profile, err := s.Profiles().GetOrCreate(context.Background(), kind, types.Profile{
		UserID:    userID,
		FirstName: first,
		LastName:  last,
	})
	if err != nil {
		t.Fatalf("seed %s profile for %d: %v", kind, userID, err)
	}
	return profile
}

// SeedPermission inserts a permission.
func (s *Store) SeedPermission(t *testing.T, codename string) types.Permission {
	t.Helper()
	p, err := s.Permissions().Create(context.Background(), types.Permission{
		Name:        "Can " + codename,
		Codename:    codename,
		ContentType: "accounts.user",
	})
	if err != nil {
		t.Fatalf("seed permission %q: %v", codename, err)
	}
	return p
}

// SeedGroup inserts a group with the given permission ids.
func (s *Store) SeedGroup(t *testing.T, name string, permissionIDs ...int) types.Group {
	t.Helper()
	g, err := s.Groups().Create(context.Background(), types.Group{Name: name, Permissions: permissionIDs})
	if err != nil {
		t.Fatalf("seed group %q: %v", name, err)
	}
	return g
}

// StaffUser returns an active staff user without a role profile.
func StaffUser(email string) types.User {
	return types.User{Email: email, IsStaff: true, IsActive: true}
}

// Published is one message captured by Publisher.
type Published struct {
	Channel string
	Data    []byte
	Attrs   map[string]string
}

// Publisher records published messages. Err, when set, is returned from
// every Publish call.
type Publisher struct {
	mu       sync.Mutex
	Err      error
	messages []Published
}

func (p *Publisher) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	p.messages = append(p.messages, Published{Channel: channel, Data: data, Attrs: attrs})
	return "msg-" + channel, nil
}

// Messages returns a copy of everything published so far.
func (p *Publisher) Messages() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published{}, p.messages...)
}

// Bucket is an in-memory object store.
type Bucket struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
}

func NewBucket() *Bucket {
	return &Bucket{Objects: map[string][]byte{}, Types: map[string]string{}}
}

func (b *Bucket) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Objects[key] = buf.Bytes()
	b.Types[key] = contentType
	return nil
}
