package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/matchup/apiserver/types"
)

// PermissionRepository handles persistence for the permission catalog.
type PermissionRepository struct {
	db *sql.DB
}

func NewPermissionRepository(db *sql.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) List(ctx context.Context, offset, limit int) ([]types.Permission, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM permissions`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT id, name, codename, content_type
		FROM permissions
		ORDER BY id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	permissions := make([]types.Permission, 0, limit)
	for rows.Next() {
		var p types.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Codename, &p.ContentType); err != nil {
			return nil, 0, err
		}
		permissions = append(permissions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return permissions, total, nil
}

func (r *PermissionRepository) Get(ctx context.Context, id int) (types.Permission, error) {
	const query = `
		SELECT id, name, codename, content_type
		FROM permissions
		WHERE id = $1`
	var p types.Permission
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Codename, &p.ContentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Permission{}, ErrNotFound
		}
		return types.Permission{}, err
	}
	return p, nil
}

func (r *PermissionRepository) Create(ctx context.Context, p types.Permission) (types.Permission, error) {
	const query = `
		INSERT INTO permissions (name, codename, content_type)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, p.Name, p.Codename, p.ContentType).Scan(&p.ID); err != nil {
		return types.Permission{}, classify(err)
	}
	return p, nil
}

func (r *PermissionRepository) Update(ctx context.Context, p types.Permission) (types.Permission, error) {
	const query = `
		UPDATE permissions
		SET name = $1,
			codename = $2,
			content_type = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, p.Name, p.Codename, p.ContentType, p.ID)
	if err != nil {
		return types.Permission{}, classify(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Permission{}, err
	}
	if affected == 0 {
		return types.Permission{}, ErrNotFound
	}
	return p, nil
}

func (r *PermissionRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM permissions WHERE id = $1`
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
