package rowdump2parquet

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	ErrNotFound        error = errors.New("not found")
	ErrDeserialization error = errors.New("deserialization failed")
	ErrSerialization   error = errors.New("serialization failed")
	ErrSchema          error = errors.New("schema mismatch")
	ErrPermission      error = errors.New("permission denied")

	ErrUnsupportedCompression error = errors.New("unsupported compression")
	ErrExists                 error = errors.New("output already exists")
	ErrLocked                 error = errors.New("output locked by another writer")
	ErrColumnMismatch         error = errors.New("column sets differ")
	ErrRaggedColumns          error = errors.New("columns have different row counts")
	ErrDuplicateColumn        error = errors.New("duplicate column")
	ErrInvalidKind            error = errors.New("invalid column kind")
)

// SchemaError reports a requested column that the file does not contain.
type SchemaError struct {
	Column string
	Path   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("column %q not in schema of %s", e.Column, e.Path)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// Classify maps OS level errors onto the package sentinels. Errors that
// already match a sentinel, and unknown errors, are returned unchanged.
func Classify(e error) error {
	switch {
	case nil == e:
		return nil
	case errors.Is(e, ErrNotFound), errors.Is(e, ErrPermission):
		return e
	case errors.Is(e, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotFound, e)
	case errors.Is(e, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermission, e)
	default:
		return e
	}
}
