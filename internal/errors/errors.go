package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeSchema          ErrorType = "SCHEMA"
	ErrorTypeAmbiguousKey    ErrorType = "AMBIGUOUS_KEY"
	ErrorTypeKeyMismatch     ErrorType = "KEY_MISMATCH"
	ErrorTypeCorruptSnapshot ErrorType = "CORRUPT_SNAPSHOT"
	ErrorTypeTampered        ErrorType = "TAMPERED"
	ErrorTypeStaleDependency ErrorType = "STALE_DEPENDENCY"
	ErrorTypeIDCollision     ErrorType = "ID_COLLISION"
	ErrorTypeNotFound        ErrorType = "NOT_FOUND"
)

// Sentinels for errors.Is matching. Only the Type is compared.
var (
	ErrSchema          = &Error{Type: ErrorTypeSchema}
	ErrAmbiguousKey    = &Error{Type: ErrorTypeAmbiguousKey}
	ErrKeyMismatch     = &Error{Type: ErrorTypeKeyMismatch}
	ErrCorruptSnapshot = &Error{Type: ErrorTypeCorruptSnapshot}
	ErrTampered        = &Error{Type: ErrorTypeTampered}
	ErrStaleDependency = &Error{Type: ErrorTypeStaleDependency}
	ErrIDCollision     = &Error{Type: ErrorTypeIDCollision}
	ErrNotFound        = &Error{Type: ErrorTypeNotFound}
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// SchemaDetails locates a malformed table element.
type SchemaDetails struct {
	Row      int `json:"row"`
	Column   int `json:"column"`
	Expected int `json:"expected,omitempty"`
	Actual   int `json:"actual,omitempty"`
}

// KeyDetails names a colliding primary-key tuple and the table it was found in.
type KeyDetails struct {
	Key  []string `json:"key"`
	Side string   `json:"side"`
	Rows []int    `json:"rows"`
}

// TamperDetails lists the hashes that no longer match the stored table.
type TamperDetails struct {
	SnapshotID string   `json:"snapshot_id"`
	Mismatched []string `json:"mismatched"`
	Rows       []int    `json:"rows,omitempty"`
}

// StaleDetails lists dependency paths whose content changed since the
// snapshot pinned them.
type StaleDetails struct {
	SnapshotID string   `json:"snapshot_id"`
	Paths      []string `json:"paths"`
}

func RowWidth(row, expected, actual int) *Error {
	return &Error{
		Type:    ErrorTypeSchema,
		Message: fmt.Sprintf("row %d has %d cells, expected %d", row, actual, expected),
		Details: SchemaDetails{Row: row, Column: -1, Expected: expected, Actual: actual},
	}
}

// InvalidText reports a cell or header that is not valid UTF-8. Row is -1
// for the header row.
func InvalidText(row, col int) *Error {
	where := fmt.Sprintf("row %d column %d", row, col)
	if row < 0 {
		where = fmt.Sprintf("header %d", col)
	}
	return &Error{
		Type:    ErrorTypeSchema,
		Message: where + " is not valid UTF-8",
		Details: SchemaDetails{Row: row, Column: col},
	}
}

func KeyColumn(col, width int, reason string) *Error {
	return &Error{
		Type:    ErrorTypeSchema,
		Message: fmt.Sprintf("primary key column %d %s (table has %d columns)", col, reason, width),
		Details: SchemaDetails{Row: -1, Column: col, Expected: width},
	}
}

func Schema(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeSchema,
		Message: message,
		Details: details,
	}
}

func AmbiguousKey(key []string, side string, rows []int) *Error {
	return &Error{
		Type:    ErrorTypeAmbiguousKey,
		Message: fmt.Sprintf("primary key %q is not unique in %s table (rows %v)", key, side, rows),
		Details: KeyDetails{Key: key, Side: side, Rows: rows},
	}
}

func KeyMismatch(from, to []string) *Error {
	return &Error{
		Type:    ErrorTypeKeyMismatch,
		Message: fmt.Sprintf("primary key differs between tables: %q vs %q", from, to),
		Details: map[string][]string{"from": from, "to": to},
	}
}

func CorruptSnapshot(ref string, err error) *Error {
	return &Error{
		Type:    ErrorTypeCorruptSnapshot,
		Message: fmt.Sprintf("corrupt snapshot %s", ref),
		Details: ref,
		Err:     err,
	}
}

func Tampered(id string, mismatched []string, rows []int) *Error {
	msg := fmt.Sprintf("snapshot %s failed verification: %v", id, mismatched)
	if len(rows) > 0 {
		msg += fmt.Sprintf(" rows %v", rows)
	}
	return &Error{
		Type:    ErrorTypeTampered,
		Message: msg,
		Details: TamperDetails{SnapshotID: id, Mismatched: mismatched, Rows: rows},
	}
}

func StaleDependency(id string, paths []string) *Error {
	return &Error{
		Type:    ErrorTypeStaleDependency,
		Message: fmt.Sprintf("snapshot %s depends on changed files: %v", id, paths),
		Details: StaleDetails{SnapshotID: id, Paths: paths},
	}
}

func IDCollision(id, path string) *Error {
	return &Error{
		Type:    ErrorTypeIDCollision,
		Message: fmt.Sprintf("snapshot id %s already exists at %s", id, path),
		Details: path,
	}
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// IsType reports whether any error in err's chain is an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}
