package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestErrorFormatting(t *testing.T) {
	assert.Equal(t, "select: boom", NewError(KindNetwork, "select", "boom").Error())
	assert.Equal(t, "not_found", (&Error{Kind: KindNotFound}).Error())
	assert.Equal(t, "insert: conflict: duplicate", WrapError(KindConflict, "insert", errors.New("duplicate")).Error())
}

func TestErrorIsMatchesKindSentinel(t *testing.T) {
	err := fmt.Errorf("load: %w", NewError(KindAuthentication, "sign in", "bad password"))

	assert.ErrorIs(t, err, ErrKindAuthentication)
	assert.NotErrorIs(t, err, ErrKindNetwork)
}

func TestWrapErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(KindInternal, "write", cause)

	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "domain error", err: NewError(KindConflict, "op", "dup"), want: KindConflict},
		{name: "wrapped domain error", err: fmt.Errorf("x: %w", NewError(KindValidation, "op", "bad")), want: KindValidation},
		{name: "migration error", err: &MigrationError{Cause: errors.New("boom")}, want: KindMigrationPartial},
		{name: "deadline", err: context.DeadlineExceeded, want: KindTimeout},
		{name: "net timeout", err: timeoutErr{}, want: KindTimeout},
		{name: "net op error", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: KindNetwork},
		{name: "plain", err: errors.New("plain"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(NewError(KindNetwork, "op", "down")))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(NewError(KindNotFound, "op", "gone")))
	assert.False(t, IsTransient(NewError(KindAuthentication, "op", "expired")))
}

func TestMigrationErrorMatchesPartialKind(t *testing.T) {
	err := &MigrationError{
		Report: MigrationReport{
			From:     "guest",
			To:       "user",
			Migrated: []string{"favorites"},
			Failed:   []TableFailure{{Table: "comments", Err: errors.New("boom")}},
			Pending:  []string{"stories"},
		},
		Cause: errors.New("boom"),
	}

	assert.ErrorIs(t, err, ErrKindMigrationPartial)
	assert.Equal(t, "ownership migration guest -> user incomplete (1 migrated, 1 failed, 1 pending): boom", err.Error())
}
