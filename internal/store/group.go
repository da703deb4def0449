package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/matchup/apiserver/types"
)

const groupColumns = `
	g.id, g.name,
	COALESCE((SELECT array_agg(gp.permission_id ORDER BY gp.permission_id) FROM group_permissions gp WHERE gp.group_id = g.id), '{}')`

// GroupRepository handles persistence for groups and their permission sets.
type GroupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func scanGroup(row rowScanner) (types.Group, error) {
	var (
		group       types.Group
		permissions pq.Int64Array
	)
	if err := row.Scan(&group.ID, &group.Name, &permissions); err != nil {
		return types.Group{}, err
	}
	group.Permissions = toInts(permissions)
	return group, nil
}

func (r *GroupRepository) List(ctx context.Context, offset, limit int) ([]types.Group, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM groups`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT ` + groupColumns + ` FROM groups g ORDER BY g.id OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	groups := make([]types.Group, 0, limit)
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return groups, total, nil
}

func (r *GroupRepository) Get(ctx context.Context, id int) (types.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups g WHERE g.id = $1`
	group, err := scanGroup(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Group{}, ErrNotFound
		}
		return types.Group{}, err
	}
	return group, nil
}

// Create inserts the group and its permission set atomically.
func (r *GroupRepository) Create(ctx context.Context, group types.Group) (created types.Group, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Group{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.QueryRowContext(ctx, `INSERT INTO groups (name) VALUES ($1) RETURNING id`, group.Name).Scan(&group.ID); err != nil {
		return types.Group{}, classify(err)
	}
	if err = replaceGroupPermissions(ctx, tx, group.ID, group.Permissions); err != nil {
		return types.Group{}, err
	}
	if err = tx.Commit(); err != nil {
		return types.Group{}, fmt.Errorf("commit group create: %w", err)
	}
	return r.Get(ctx, group.ID)
}

// Update renames the group and, when permissions is non-nil, replaces its
// permission set.
func (r *GroupRepository) Update(ctx context.Context, group types.Group) (updated types.Group, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Group{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `UPDATE groups SET name = $1 WHERE id = $2`, group.Name, group.ID)
	if err != nil {
		return types.Group{}, classify(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Group{}, err
	}
	if affected == 0 {
		err = ErrNotFound
		return types.Group{}, err
	}
	if group.Permissions != nil {
		if err = replaceGroupPermissions(ctx, tx, group.ID, group.Permissions); err != nil {
			return types.Group{}, err
		}
	}
	if err = tx.Commit(); err != nil {
		return types.Group{}, fmt.Errorf("commit group update: %w", err)
	}
	return r.Get(ctx, group.ID)
}

func (r *GroupRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM groups WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func replaceGroupPermissions(ctx context.Context, tx *sql.Tx, groupID int, permissionIDs []int) error {
	missing, err := findMissing(ctx, tx, "permissions", permissionIDs)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &MissingReferencesError{Permissions: missing}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM group_permissions WHERE group_id = $1`, groupID); err != nil {
		return err
	}
	if len(permissionIDs) == 0 {
		return nil
	}
	const insert = `
		INSERT INTO group_permissions (group_id, permission_id)
		SELECT $1, unnest($2::int[])
		ON CONFLICT DO NOTHING`
	if _, err := tx.ExecContext(ctx, insert, groupID, toInt64s(permissionIDs)); err != nil {
		return classify(err)
	}
	return nil
}
