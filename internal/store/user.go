package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/matchup/apiserver/types"
)

const userColumns = `
	u.id, u.email, u.username, u.mobile, u.first_name, u.last_name, u.role,
	u.is_staff, u.is_active, u.is_superuser, u.password_hash, u.date_joined, u.last_login,
	COALESCE((SELECT array_agg(g.group_id ORDER BY g.group_id) FROM user_groups g WHERE g.user_id = u.id), '{}'),
	COALESCE((SELECT array_agg(p.permission_id ORDER BY p.permission_id) FROM user_permissions p WHERE p.user_id = u.id), '{}')`

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// UserRepository handles persistence for users and their access grants.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user        types.User
		role        string
		lastLogin   sql.NullTime
		groups      pq.Int64Array
		permissions pq.Int64Array
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.Mobile,
		&user.FirstName,
		&user.LastName,
		&role,
		&user.IsStaff,
		&user.IsActive,
		&user.IsSuperuser,
		&user.PasswordHash,
		&user.DateJoined,
		&lastLogin,
		&groups,
		&permissions,
	); err != nil {
		return types.User{}, err
	}
	user.Role = types.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	user.Groups = toInts(groups)
	user.Permissions = toInts(permissions)
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// GetByIDInRole returns the user only when it holds the given role.
func (r *UserRepository) GetByIDInRole(ctx context.Context, id int, role types.Role) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1 AND u.role = $2`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id, string(role)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// ListByRole returns a page of users holding role, ordered by id, and the
// total number of such users.
func (r *UserRepository) ListByRole(ctx context.Context, role types.Role, offset, limit int) ([]types.User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM users WHERE role = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, string(role)).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT ` + userColumns + ` FROM users u WHERE u.role = $1 ORDER BY u.id OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, string(role), offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}

	const query = `
		INSERT INTO users (email, username, mobile, first_name, last_name, role,
			is_staff, is_active, is_superuser, password_hash, date_joined, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	var lastLogin sql.NullTime
	if user.LastLogin != nil {
		lastLogin = sql.NullTime{Time: *user.LastLogin, Valid: true}
	}
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Email,
		user.Username,
		user.Mobile,
		user.FirstName,
		user.LastName,
		string(user.Role),
		user.IsStaff,
		user.IsActive,
		user.IsSuperuser,
		user.PasswordHash,
		user.DateJoined,
		lastLogin,
	).Scan(&user.ID); err != nil {
		return types.User{}, classify(err)
	}
	user.Groups = []int{}
	user.Permissions = []int{}
	return user, nil
}

// Update writes the user's own columns. Group and permission grants are
// managed through AddAccess.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	const query = `
		UPDATE users
		SET email = $1,
			username = $2,
			mobile = $3,
			first_name = $4,
			last_name = $5,
			role = $6,
			is_staff = $7,
			is_active = $8,
			is_superuser = $9,
			password_hash = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Email,
		user.Username,
		user.Mobile,
		user.FirstName,
		user.LastName,
		string(user.Role),
		user.IsStaff,
		user.IsActive,
		user.IsSuperuser,
		user.PasswordHash,
		user.ID,
	)
	if err != nil {
		return types.User{}, classify(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return r.GetByID(ctx, user.ID)
}

// Delete removes the user. Profiles and grants go with it.
func (r *UserRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
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

func (r *UserRepository) TouchLastLogin(ctx context.Context, id int, at time.Time) error {
	const query = `UPDATE users SET last_login = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, at, id)
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

// AddAccess grants permissionIDs and groupIDs to the user holding role in
// one transaction. Existing grants are left untouched. If any id is unknown
// nothing is written and a *MissingReferencesError is returned.
func (r *UserRepository) AddAccess(ctx context.Context, userID int, role types.Role, permissionIDs, groupIDs []int) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked int
	if err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 AND role = $2 FOR UPDATE`, userID, string(role)).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return err
	}

	missing := &MissingReferencesError{}
	if missing.Permissions, err = findMissing(ctx, tx, "permissions", permissionIDs); err != nil {
		return err
	}
	if missing.Groups, err = findMissing(ctx, tx, "groups", groupIDs); err != nil {
		return err
	}
	if !missing.empty() {
		err = missing
		return err
	}

	if len(permissionIDs) > 0 {
		const grantPermissions = `
			INSERT INTO user_permissions (user_id, permission_id)
			SELECT $1, unnest($2::int[])
			ON CONFLICT DO NOTHING`
		if _, err = tx.ExecContext(ctx, grantPermissions, userID, toInt64s(permissionIDs)); err != nil {
			return classify(err)
		}
	}
	if len(groupIDs) > 0 {
		const joinGroups = `
			INSERT INTO user_groups (user_id, group_id)
			SELECT $1, unnest($2::int[])
			ON CONFLICT DO NOTHING`
		if _, err = tx.ExecContext(ctx, joinGroups, userID, toInt64s(groupIDs)); err != nil {
			return classify(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit access grant: %w", err)
	}
	return nil
}

// findMissing returns the ids that have no row in table. table must be a
// trusted identifier.
func findMissing(ctx context.Context, q querier, table string, ids []int) ([]int, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.QueryContext(ctx, `SELECT id FROM `+table+` WHERE id = ANY($1)`, toInt64s(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	have := make(map[int]struct{}, len(ids))
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		have[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return missingIDs(ids, have), nil
}
