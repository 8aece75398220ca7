package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	passslots "github.com/bnema/pathfinder/internal/adapters/slots/pass"
	"github.com/bnema/pathfinder/internal/domain"
	portmocks "github.com/bnema/pathfinder/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const slot = "anonymous-session"

func notFound(backend string) error {
	return fmt.Errorf("%s slot %q: %w", backend, slot, domain.ErrSlotNotFound)
}

func TestStoreGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSlotStore(t)
	fallback := portmocks.NewMockSlotStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, slot).Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), slot)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestStoreGetFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		primaryErr error
	}{
		{name: "pass unavailable", primaryErr: passslots.ErrUnavailable},
		{name: "slot only in fallback", primaryErr: notFound("pass")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			primary := portmocks.NewMockSlotStore(t)
			fallback := portmocks.NewMockSlotStore(t)
			store := NewStore(primary, fallback)

			primary.EXPECT().Get(mock.Anything, slot).Return("", tc.primaryErr).Once()
			fallback.EXPECT().Get(mock.Anything, slot).Return("from-file", nil).Once()

			value, err := store.Get(context.Background(), slot)
			require.NoError(t, err)
			assert.Equal(t, "from-file", value)
		})
	}
}

func TestStoreGetReportsNotFoundWhenNoBackendHasSlot(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSlotStore(t)
	fallback := portmocks.NewMockSlotStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, slot).Return("", notFound("pass")).Once()
	fallback.EXPECT().Get(mock.Anything, slot).Return("", notFound("file")).Once()

	_, err := store.Get(context.Background(), slot)
	assert.ErrorIs(t, err, domain.ErrSlotNotFound)
	assert.NotContains(t, err.Error(), "primary backend")
}

func TestStoreGetReturnsCombinedErrorWhenBothBackendsFail(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSlotStore(t)
	fallback := portmocks.NewMockSlotStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, slot).Return("", errors.New("pass failed")).Once()
	fallback.EXPECT().Get(mock.Anything, slot).Return("", errors.New("file failed")).Once()

	_, err := store.Get(context.Background(), slot)
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary backend")
	assert.ErrorContains(t, err, "fallback backend")
	assert.ErrorContains(t, err, "pass failed")
	assert.ErrorContains(t, err, "file failed")
}

func TestStoreSetFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSlotStore(t)
	fallback := portmocks.NewMockSlotStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Set(mock.Anything, slot, "value").Return(errors.New("pass failed")).Once()
	fallback.EXPECT().Set(mock.Anything, slot, "value").Return(nil).Once()

	require.NoError(t, store.Set(context.Background(), slot, "value"))
}

func TestStoreSetDoesNotCallFallbackWhenPrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSlotStore(t)
	fallback := portmocks.NewMockSlotStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Set(mock.Anything, slot, "value").Return(nil).Once()

	require.NoError(t, store.Set(context.Background(), slot, "value"))
}

func TestStoreRemoveClearsBothBackends(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		primaryErr  error
		fallbackErr error
		wantErr     string
	}{
		{name: "both succeed"},
		{name: "pass unavailable", primaryErr: passslots.ErrUnavailable},
		{name: "fallback fails", fallbackErr: errors.New("read-only"), wantErr: "fallback backend remove failed"},
		{name: "primary fails", primaryErr: errors.New("gpg"), wantErr: "primary backend remove failed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			primary := portmocks.NewMockSlotStore(t)
			fallback := portmocks.NewMockSlotStore(t)
			store := NewStore(primary, fallback)

			primary.EXPECT().Remove(mock.Anything, slot).Return(tc.primaryErr).Once()
			fallback.EXPECT().Remove(mock.Anything, slot).Return(tc.fallbackErr).Once()

			err := store.Remove(context.Background(), slot)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestStoreGetDoesNotFallbackOnCanceledContextError(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSlotStore(t)
	fallback := portmocks.NewMockSlotStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, slot).Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), slot)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewStoreCheckedRejectsNilBackends(t *testing.T) {
	t.Parallel()

	_, err := NewStoreChecked(nil, portmocks.NewMockSlotStore(t))
	assert.ErrorIs(t, err, errNilPrimaryStore)
	_, err = NewStoreChecked(portmocks.NewMockSlotStore(t), nil)
	assert.ErrorIs(t, err, errNilFallbackStore)
}
