package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// ErrValueTooLong is returned when a value does not fit its column.
var ErrValueTooLong = errors.New("value too long")

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqStringTruncation    = "22001"
)

// MissingReferencesError reports referenced permission or group ids that do
// not exist. It matches ErrNotFound under errors.Is.
type MissingReferencesError struct {
	Permissions []int
	Groups      []int
}

func (e *MissingReferencesError) Error() string {
	var parts []string
	if len(e.Permissions) > 0 {
		parts = append(parts, fmt.Sprintf("permissions %v", e.Permissions))
	}
	if len(e.Groups) > 0 {
		parts = append(parts, fmt.Sprintf("groups %v", e.Groups))
	}
	return "unknown " + strings.Join(parts, ", ")
}

func (e *MissingReferencesError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *MissingReferencesError) empty() bool {
	return len(e.Permissions) == 0 && len(e.Groups) == 0
}

// classify maps driver constraint errors onto the package sentinels.
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pqUniqueViolation:
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
	case pqForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Constraint)
	case pqStringTruncation:
		return fmt.Errorf("%w: %s", ErrValueTooLong, pqErr.Message)
	default:
		return err
	}
}

// missingIDs returns the members of want absent from have, sorted and
// de-duplicated.
func missingIDs(want []int, have map[int]struct{}) []int {
	seen := make(map[int]struct{}, len(want))
	var missing []int
	for _, id := range want {
		if _, ok := have[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	sort.Ints(missing)
	return missing
}

func toInt64s(ids []int) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}

func toInts(ids pq.Int64Array) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, int(id))
	}
	return out
}
