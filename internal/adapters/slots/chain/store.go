package chain

import (
	"context"
	"errors"
	"fmt"

	fileslots "github.com/bnema/pathfinder/internal/adapters/slots/file"
	passslots "github.com/bnema/pathfinder/internal/adapters/slots/pass"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

// Store reads and writes the primary backend, falling back to the second
// one when the primary fails or does not hold the slot.
type Store struct {
	primary  ports.SlotStore
	fallback ports.SlotStore
}

var _ ports.SlotStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary slot store is nil")
	errNilFallbackStore = errors.New("fallback slot store is nil")
)

func NewStore(primary ports.SlotStore, fallback ports.SlotStore) *Store {
	store, err := NewStoreChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(primary ports.SlotStore, fallback ports.SlotStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

func NewPassFirstWithFileFallback(passPrefix, fileRoot string) (*Store, error) {
	return NewStoreChecked(passslots.NewStore(passPrefix), fileslots.NewStore(fileRoot))
}

func (s *Store) Set(ctx context.Context, slot string, value string) error {
	err := s.primary.Set(ctx, slot, value)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Set(ctx, slot, value)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend set failed: %w; fallback backend set failed: %w", err, fallbackErr)
}

func (s *Store) Get(ctx context.Context, slot string) (string, error) {
	value, err := s.primary.Get(ctx, slot)
	if err == nil {
		return value, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	fallbackValue, fallbackErr := s.fallback.Get(ctx, slot)
	if fallbackErr == nil {
		return fallbackValue, nil
	}
	if errors.Is(err, domain.ErrSlotNotFound) && errors.Is(fallbackErr, domain.ErrSlotNotFound) {
		return "", fmt.Errorf("slot %q: %w", slot, domain.ErrSlotNotFound)
	}

	return "", fmt.Errorf("primary backend get failed: %w; fallback backend get failed: %w", err, fallbackErr)
}

// Remove clears the slot from both backends so a fallback copy cannot
// resurface after the primary entry is gone. A primary that is not
// installed at all is not an error.
func (s *Store) Remove(ctx context.Context, slot string) error {
	err := s.primary.Remove(ctx, slot)
	if shouldSkipFallback(err) {
		return err
	}
	if errors.Is(err, passslots.ErrUnavailable) {
		err = nil
	}

	fallbackErr := s.fallback.Remove(ctx, slot)
	switch {
	case err != nil && fallbackErr != nil:
		return fmt.Errorf("primary backend remove failed: %w; fallback backend remove failed: %w", err, fallbackErr)
	case err != nil:
		return fmt.Errorf("primary backend remove failed: %w", err)
	case fallbackErr != nil:
		return fmt.Errorf("fallback backend remove failed: %w", fallbackErr)
	default:
		return nil
	}
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
