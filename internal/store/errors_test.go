package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingIDs(t *testing.T) {
	have := map[int]struct{}{1: {}, 3: {}}

	assert.Equal(t, []int{2, 5}, missingIDs([]int{5, 1, 2, 3, 5, 2}, have))
	assert.Empty(t, missingIDs([]int{1, 3, 3}, have))
	assert.Empty(t, missingIDs(nil, have))
}

func TestMissingReferencesErrorMatchesNotFound(t *testing.T) {
	var err error = &MissingReferencesError{Permissions: []int{4}, Groups: []int{9}}
	wrapped := fmt.Errorf("assign: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNotFound))

	var missing *MissingReferencesError
	require.True(t, errors.As(wrapped, &missing))
	assert.Equal(t, []int{4}, missing.Permissions)
	assert.Equal(t, []int{9}, missing.Groups)
	assert.Equal(t, "unknown permissions [4], groups [9]", err.Error())
}

func TestClassify(t *testing.T) {
	unique := &pq.Error{Code: pqUniqueViolation, Constraint: "users_email_key"}
	assert.ErrorIs(t, classify(unique), ErrConflict)

	fk := &pq.Error{Code: pqForeignKeyViolation, Constraint: "user_groups_group_id_fkey"}
	assert.ErrorIs(t, classify(fk), ErrNotFound)

	tooLong := &pq.Error{Code: pqStringTruncation, Message: "value too long for type character varying(12)"}
	assert.ErrorIs(t, classify(tooLong), ErrValueTooLong)

	other := errors.New("boom")
	assert.Same(t, other, classify(other))
}

func TestIDArrayConversion(t *testing.T) {
	ids := []int{7, 3}
	assert.Equal(t, pq.Int64Array{7, 3}, toInt64s(ids))
	assert.Equal(t, ids, toInts(pq.Int64Array{7, 3}))
	assert.Equal(t, []int{}, toInts(nil))
}
