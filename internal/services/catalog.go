package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matchup/apiserver/internal/store"
	"github.com/matchup/apiserver/types"
	"go.uber.org/zap"
)

const snapshotPageSize = 100

// GroupRepository defines persistence operations for groups.
type GroupRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Group, int, error)
	Get(ctx context.Context, id int) (types.Group, error)
	Create(ctx context.Context, group types.Group) (types.Group, error)
	Update(ctx context.Context, group types.Group) (types.Group, error)
	Delete(ctx context.Context, id int) error
}

// PermissionRepository defines persistence operations for permissions.
type PermissionRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Permission, int, error)
	Get(ctx context.Context, id int) (types.Permission, error)
	Create(ctx context.Context, permission types.Permission) (types.Permission, error)
	Update(ctx context.Context, permission types.Permission) (types.Permission, error)
	Delete(ctx context.Context, id int) error
}

// ObjectWriter stores an object under key.
type ObjectWriter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// CatalogService encapsulates group and permission use-cases.
type CatalogService struct {
	groups      GroupRepository
	permissions PermissionRepository
	log         *zap.Logger
	now         func() time.Time
}

func NewCatalogService(groups GroupRepository, permissions PermissionRepository, log *zap.Logger) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{
		groups:      groups,
		permissions: permissions,
		log:         log,
		now:         time.Now,
	}
}

func (s *CatalogService) ListGroups(ctx context.Context, offset, limit int) ([]types.Group, int, error) {
	return s.groups.List(ctx, offset, limit)
}

func (s *CatalogService) GetGroup(ctx context.Context, id int) (types.Group, error) {
	return s.groups.Get(ctx, id)
}

func (s *CatalogService) CreateGroup(ctx context.Context, group types.Group) (types.Group, error) {
	if err := validateGroup(&group); err != nil {
		return types.Group{}, err
	}
	if group.Permissions == nil {
		group.Permissions = []int{}
	}
	created, err := s.groups.Create(ctx, group)
	return created, conflictAsValidation(err, "name", "a group with this name already exists")
}

// UpdateGroup renames the group. A nil Permissions slice keeps the current
// permission set; any other value replaces it.
func (s *CatalogService) UpdateGroup(ctx context.Context, group types.Group) (types.Group, error) {
	if err := validateGroup(&group); err != nil {
		return types.Group{}, err
	}
	updated, err := s.groups.Update(ctx, group)
	return updated, conflictAsValidation(err, "name", "a group with this name already exists")
}

func (s *CatalogService) DeleteGroup(ctx context.Context, id int) error {
	return s.groups.Delete(ctx, id)
}

func (s *CatalogService) ListPermissions(ctx context.Context, offset, limit int) ([]types.Permission, int, error) {
	return s.permissions.List(ctx, offset, limit)
}

func (s *CatalogService) GetPermission(ctx context.Context, id int) (types.Permission, error) {
	return s.permissions.Get(ctx, id)
}

func (s *CatalogService) CreatePermission(ctx context.Context, p types.Permission) (types.Permission, error) {
	if err := validatePermission(&p); err != nil {
		return types.Permission{}, err
	}
	created, err := s.permissions.Create(ctx, p)
	return created, conflictAsValidation(err, "codename", "codename already exists for this content type")
}

func (s *CatalogService) UpdatePermission(ctx context.Context, p types.Permission) (types.Permission, error) {
	if err := validatePermission(&p); err != nil {
		return types.Permission{}, err
	}
	updated, err := s.permissions.Update(ctx, p)
	return updated, conflictAsValidation(err, "codename", "codename already exists for this content type")
}

func (s *CatalogService) DeletePermission(ctx context.Context, id int) error {
	return s.permissions.Delete(ctx, id)
}

// CatalogSnapshot is a full copy of the group and permission catalogs.
type CatalogSnapshot struct {
	TakenAt     time.Time          `json:"taken_at"`
	Groups      []types.Group      `json:"groups"`
	Permissions []types.Permission `json:"permissions"`
}

// Snapshot pages through both catalogs.
func (s *CatalogService) Snapshot(ctx context.Context) (CatalogSnapshot, error) {
	snap := CatalogSnapshot{
		TakenAt:     s.now().UTC(),
		Groups:      []types.Group{},
		Permissions: []types.Permission{},
	}
	for offset := 0; ; offset += snapshotPageSize {
		page, total, err := s.groups.List(ctx, offset, snapshotPageSize)
		if err != nil {
			return CatalogSnapshot{}, fmt.Errorf("list groups: %w", err)
		}
		snap.Groups = append(snap.Groups, page...)
		if len(page) == 0 || len(snap.Groups) >= total {
			break
		}
	}
	for offset := 0; ; offset += snapshotPageSize {
		page, total, err := s.permissions.List(ctx, offset, snapshotPageSize)
		if err != nil {
			return CatalogSnapshot{}, fmt.Errorf("list permissions: %w", err)
		}
		snap.Permissions = append(snap.Permissions, page...)
		if len(page) == 0 || len(snap.Permissions) >= total {
			break
		}
	}
	return snap, nil
}

// Export writes a JSON snapshot to w under prefix and returns the object key.
func (s *CatalogService) Export(ctx context.Context, w ObjectWriter, prefix string) (string, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", err
	}

	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	key := fmt.Sprintf("catalog-%s.json", snap.TakenAt.Format("20060102T150405Z"))
	if prefix != "" {
		key = prefix + "/" + key
	}
	if err := w.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	s.log.Info("catalog exported",
		zap.String("key", key),
		zap.Int("groups", len(snap.Groups)),
		zap.Int("permissions", len(snap.Permissions)))
	return key, nil
}

func validateGroup(group *types.Group) error {
	group.Name = strings.TrimSpace(group.Name)
	if group.Name == "" {
		return invalid("name", "this field is required")
	}
	if err := checkLengths(lengthCheck{field: "name", value: group.Name, limit: maxGroupNameLength}); err != nil {
		return err
	}
	return positiveIDs("permissions", group.Permissions)
}

func validatePermission(p *types.Permission) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Codename = strings.TrimSpace(p.Codename)
	p.ContentType = strings.TrimSpace(p.ContentType)
	if p.Name == "" {
		return invalid("name", "this field is required")
	}
	if p.Codename == "" {
		return invalid("codename", "this field is required")
	}
	return checkLengths(
		lengthCheck{field: "name", value: p.Name, limit: maxPermissionNameLength},
		lengthCheck{field: "codename", value: p.Codename, limit: maxCodenameLength},
		lengthCheck{field: "content_type", value: p.ContentType, limit: maxContentTypeLength},
	)
}

func conflictAsValidation(err error, field, message string) error {
	if err != nil && errors.Is(err, store.ErrConflict) {
		return invalid(field, message)
	}
	return err
}
