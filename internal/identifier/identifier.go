// Package identifier guards caller-supplied schema, keyspace and table names.
//
// Catalog queries bind identifiers as parameters wherever the backend allows
// it, but identifiers are still checked here first: this is the one gate every
// name passes before it reaches a session. The grammar is intentionally
// narrower than what PostgreSQL, MySQL or CQL accept (no quoting, no
// non-ASCII).
package identifier

import (
	"fmt"
	"regexp"

	"github.com/koustreak/schemalens/internal/errs"
)

// Purpose labels used in validation errors.
const (
	PurposeSchema   = "schema name"
	PurposeKeyspace = "keyspace name"
	PurposeDatabase = "database name"
	PurposeTable    = "table name"
)

var pattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Error describes a rejected identifier.
type Error struct {
	Purpose string
	Value   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Purpose, e.Value)
}

// Validate returns name unchanged when it consists only of ASCII letters,
// digits and underscores. Anything else, including the empty string, yields
// an errs.ErrKindValidation error whose cause is an *Error.
func Validate(name, purpose string) (string, error) {
	if !pattern.MatchString(name) {
		cause := &Error{Purpose: purpose, Value: name}
		return "", errs.Wrap(errs.ErrKindValidation, "identifier rejected", cause)
	}
	return name, nil
}

// Valid reports whether name would pass Validate.
func Valid(name string) bool {
	return pattern.MatchString(name)
}
