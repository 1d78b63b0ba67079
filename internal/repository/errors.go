package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// FailureKind classifies a persistence failure.
type FailureKind string

const (
	FailureConnection    FailureKind = "connection"
	FailureConstraint    FailureKind = "constraint"
	FailureSerialization FailureKind = "serialization"
)

// PersistFailure is returned by Persist. It is never retried here; the caller keeps the
// offending record for logging.
type PersistFailure struct {
	Kind     FailureKind
	Relation string
	Err      error
}

func (f *PersistFailure) Error() string {
	return fmt.Sprintf("persist into %s: %s: %v", f.Relation, f.Kind, f.Err)
}

func (f *PersistFailure) Unwrap() error {
	return f.Err
}

// mysql error numbers that signal a violated constraint
var mysqlConstraintErrors = map[uint16]bool{
	1048: true, // column cannot be null
	1062: true, // duplicate entry
	1451: true, // row is referenced
	1452: true, // foreign key fails
	3819: true, // check constraint
}

func classifyError(relation string, err error) *PersistFailure {
	return &PersistFailure{Kind: kindOf(err), Relation: relation, Err: err}
}

func kindOf(err error) FailureKind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return FailureConstraint
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && mysqlConstraintErrors[myErr.Number] {
		return FailureConstraint
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) && sqErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return FailureConstraint
	}
	return FailureConnection
}

// IsConstraint reports whether err is a constraint persistence failure.
func IsConstraint(err error) bool {
	var f *PersistFailure
	return errors.As(err, &f) && f.Kind == FailureConstraint
}
