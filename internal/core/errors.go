package core

import "errors"

// Sentinel errors surfaced by THE CORE, named per spec.md §6/§7.
// Mirrors the donor's internal/util/errors.go convention: plain
// errors.New sentinels, wrapped with fmt.Errorf("...: %w", err) at
// call sites rather than reached for through a third-party errors
// package.
var (
	ErrInvalidField        = errors.New("invalid field")
	ErrUnknownOperator      = errors.New("unknown operator")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrInvalidRegexOptions  = errors.New("invalid regex options")
	ErrModifyIDForbidden    = errors.New("update must not modify _id")
	ErrUniqueIndexViolation = errors.New("unique index violation")
)
