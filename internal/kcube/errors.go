package kcube

import "fmt"

// ErrorKind distinguishes K-Cube's error conditions by kind, not by
// language mechanism, mirroring how the error classification is described
// across the vault engine, the API client, and the worker.
type ErrorKind string

const (
	ErrNotAVault           ErrorKind = "not_a_vault"
	ErrAlreadyAVault       ErrorKind = "already_a_vault"
	ErrAmbiguousVersion    ErrorKind = "ambiguous_version"
	ErrUnknownVersion      ErrorKind = "unknown_version"
	ErrPathOutsideVault    ErrorKind = "path_outside_vault"
	ErrMissingFileInVersion ErrorKind = "missing_file_in_version"
	ErrCorruptStore        ErrorKind = "corrupt_store"
	ErrEmptyStagingCommit  ErrorKind = "empty_staging_commit"
	ErrAuth                ErrorKind = "auth"
	ErrNotFound            ErrorKind = "not_found"
	ErrConflict            ErrorKind = "conflict"
	ErrServer              ErrorKind = "server"
	ErrNetwork             ErrorKind = "network"
	ErrValidationFailed    ErrorKind = "validation_failed"
)

// Error is the typed error every kcube package surfaces so callers can
// branch on Kind with errors.As instead of string-matching messages.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, &Error{Kind: ...}) to match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError constructs an Error of the given kind with an optional wrapped cause.
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}
