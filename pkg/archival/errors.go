package archival

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrPolicyNotFound is returned when no retention policy exists for a table.
	ErrPolicyNotFound = errors.New("retention policy not found")

	// ErrGrantNotFound is returned when a principal has no table grant.
	ErrGrantNotFound = errors.New("table access grant not found")

	// ErrSweepInProgress is returned when a sweep is requested while one is running.
	ErrSweepInProgress = errors.New("archival sweep already in progress")

	// ErrNotAdmin is wrapped by PermissionDeniedError for admin-only operations.
	ErrNotAdmin = errors.New("administrator role required")
)

// PermissionDeniedError is returned when a caller may not access a table.
type PermissionDeniedError struct {
	Principal string
	Table     string
	Cause     error
}

// Error implements the error interface.
func (e *PermissionDeniedError) Error() string {
	switch {
	case e.Table != "":
		return fmt.Sprintf("permission denied: %q may not access table %q", e.Principal, e.Table)
	case e.Cause != nil:
		return fmt.Sprintf("permission denied for %q: %v", e.Principal, e.Cause)
	default:
		return fmt.Sprintf("permission denied for %q", e.Principal)
	}
}

// Unwrap returns the underlying cause error.
func (e *PermissionDeniedError) Unwrap() error {
	return e.Cause
}

// NewPermissionDeniedError creates a new PermissionDeniedError for a table.
func NewPermissionDeniedError(principal, table string) *PermissionDeniedError {
	return &PermissionDeniedError{Principal: principal, Table: table}
}

// NoColumnsFoundError is returned when a table has no discoverable columns,
// which usually means it does not exist.
type NoColumnsFoundError struct {
	Database string
	Table    string
}

// Error implements the error interface.
func (e *NoColumnsFoundError) Error() string {
	return fmt.Sprintf("no columns found for table %q in %s database", e.Table, e.Database)
}

// UnsupportedTimeUnitError is returned for a time unit outside TimeUnits.
type UnsupportedTimeUnitError struct {
	Unit TimeUnit
}

// Error implements the error interface.
func (e *UnsupportedTimeUnitError) Error() string {
	return fmt.Sprintf("unsupported time unit %q", string(e.Unit))
}

// ColumnNotFoundError is returned when a policy's age column is missing from a table.
type ColumnNotFoundError struct {
	Table  string
	Column string
}

// Error implements the error interface.
func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found in table %q", e.Column, e.Table)
}

// InvalidIdentifierError is returned for a table or column name that cannot be
// used safely in SQL.
type InvalidIdentifierError struct {
	Name string
}

// Error implements the error interface.
func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q", e.Name)
}

// InvalidPolicyError lists every problem found in a retention policy.
type InvalidPolicyError struct {
	Table    string
	Problems []string
}

// Error implements the error interface.
func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("invalid retention policy for %q: %s", e.Table, strings.Join(e.Problems, "; "))
}

// ValidationError reports a malformed request parameter.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StorageError wraps a failure talking to one of the databases.
type StorageError struct {
	Database  string // "source", "archive" or "control"
	Operation string // "select", "insert", "delete", "introspect", ...
	Table     string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("storage error [database=%s, operation=%s]: %v", e.Database, e.Operation, e.Cause)
	}
	return fmt.Sprintf("storage error [database=%s, operation=%s, table=%s]: %v", e.Database, e.Operation, e.Table, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(database, operation, table string, cause error) *StorageError {
	return &StorageError{
		Database:  database,
		Operation: operation,
		Table:     table,
		Cause:     cause,
	}
}

// IsPermissionDenied reports whether err is or wraps a PermissionDeniedError.
func IsPermissionDenied(err error) bool {
	var pde *PermissionDeniedError
	return errors.As(err, &pde)
}

// IsValidation reports whether err is a caller-side input problem.
func IsValidation(err error) bool {
	var (
		ve  *ValidationError
		ipe *InvalidPolicyError
		iie *InvalidIdentifierError
		ute *UnsupportedTimeUnitError
	)
	return errors.As(err, &ve) || errors.As(err, &ipe) || errors.As(err, &iie) || errors.As(err, &ute)
}
