package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrSlotNotFound        = errors.New("slot not found")
	ErrNotAnonymous        = errors.New("current session is not anonymous")
	ErrSessionUnresolved   = errors.New("session has not been resolved")
	ErrNoAuthenticatedUser = errors.New("no authenticated user")
	ErrUnknownIdentity     = errors.New("unknown identity variant")
)

type ErrorKind string

const (
	KindNetwork          ErrorKind = "network"
	KindTimeout          ErrorKind = "timeout"
	KindAuthentication   ErrorKind = "authentication"
	KindValidation       ErrorKind = "validation"
	KindConflict         ErrorKind = "conflict"
	KindNotFound         ErrorKind = "not_found"
	KindMigrationPartial ErrorKind = "migration_partial"
	KindInternal         ErrorKind = "internal"
)

// Error is the structured error returned across the core boundary.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(string(e.Kind))
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by kind so callers can test with the Err*Kind
// sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) && t.Op == "" && t.Message == "" && t.Cause == nil {
		return e.Kind == t.Kind
	}
	return false
}

func NewError(kind ErrorKind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func WrapError(kind ErrorKind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

var (
	ErrKindNetwork          = &Error{Kind: KindNetwork}
	ErrKindTimeout          = &Error{Kind: KindTimeout}
	ErrKindAuthentication   = &Error{Kind: KindAuthentication}
	ErrKindValidation       = &Error{Kind: KindValidation}
	ErrKindConflict         = &Error{Kind: KindConflict}
	ErrKindNotFound         = &Error{Kind: KindNotFound}
	ErrKindMigrationPartial = &Error{Kind: KindMigrationPartial}
)

// KindOf reports the taxonomy kind of err, classifying bare context and
// network errors on the way.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	var migrationErr *MigrationError
	if errors.As(err, &migrationErr) {
		return KindMigrationPartial
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetwork
	}

	return KindInternal
}

// IsTransient reports whether a read may be retried after err.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch KindOf(err) {
	case KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}

// MigrationError reports an ownership migration that stopped part way. The
// authenticated identity exists; Report lists what still belongs to From.
type MigrationError struct {
	Report MigrationReport
	Cause  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("ownership migration %s -> %s incomplete (%d migrated, %d failed, %d pending): %v",
		e.Report.From, e.Report.To, len(e.Report.Migrated), len(e.Report.Failed), len(e.Report.Pending), e.Cause)
}

func (e *MigrationError) Unwrap() error {
	return e.Cause
}

func (e *MigrationError) Is(target error) bool {
	return target == ErrKindMigrationPartial
}
