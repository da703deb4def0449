package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/matchup/apiserver/types"
)

var profileTables = map[types.ProfileKind]string{
	types.ProfileSingle:     "single_profiles",
	types.ProfileMatchmaker: "matchmaker_profiles",
	types.ProfileAdmin:      "admin_profiles",
}

// ProfileRepository looks up and creates the per-role profile records.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func profileTable(kind types.ProfileKind) (string, error) {
	table, ok := profileTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown profile kind %q", kind)
	}
	return table, nil
}

// FirstByUser returns the oldest profile of kind linked to userID.
func (r *ProfileRepository) FirstByUser(ctx context.Context, kind types.ProfileKind, userID int) (types.Profile, error) {
	table, err := profileTable(kind)
	if err != nil {
		return types.Profile{}, err
	}

	query := `SELECT id, user_id, first_name, last_name, created_at FROM ` + table + `
		WHERE user_id = $1
		ORDER BY id
		LIMIT 1`
	profile := types.Profile{Kind: kind}
	err = r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.FirstName,
		&profile.LastName,
		&profile.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Profile{}, ErrNotFound
		}
		return types.Profile{}, err
	}
	return profile, nil
}

// GetOrCreate returns the profile of kind for profile.UserID, inserting one
// with the given names when none exists yet.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, kind types.ProfileKind, profile types.Profile) (types.Profile, error) {
	table, err := profileTable(kind)
	if err != nil {
		return types.Profile{}, err
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}

	query := `INSERT INTO ` + table + ` (user_id, first_name, last_name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, profile.UserID, profile.FirstName, profile.LastName, profile.CreatedAt); err != nil {
		return types.Profile{}, classify(err)
	}
	return r.FirstByUser(ctx, kind, profile.UserID)
}
