package services

import (
	"fmt"
	"unicode/utf8"
)

// Column widths, in characters, of the accounts and catalog tables.
const (
	maxNameLength           = 50
	maxMobileLength         = 12
	maxGroupNameLength      = 150
	maxPermissionNameLength = 255
	maxCodenameLength       = 100
	maxContentTypeLength    = 100
)

type lengthCheck struct {
	field string
	value string
	limit int
}

// checkLengths returns a *ValidationError for the first value holding more
// than limit characters.
func checkLengths(checks ...lengthCheck) error {
	for _, c := range checks {
		if utf8.RuneCountInString(c.value) > c.limit {
			return invalid(c.field, fmt.Sprintf("ensure this field has no more than %d characters", c.limit))
		}
	}
	return nil
}

func nameChecks(first, last string) []lengthCheck {
	return []lengthCheck{
		{field: "first_name", value: first, limit: maxNameLength},
		{field: "last_name", value: last, limit: maxNameLength},
	}
}
