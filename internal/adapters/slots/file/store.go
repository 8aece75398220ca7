package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

const (
	storeDirMode = 0o700
	slotFileMode = 0o600
)

// Store keeps each slot in its own file under root.
type Store struct {
	root string
	mu   sync.RWMutex
}

var _ ports.SlotStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

// Set replaces the slot through a temp file and rename, so a crash never
// leaves half a slot behind.
func (s *Store) Set(ctx context.Context, slot string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.pathForSlot(slot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), storeDirMode); err != nil {
		return fmt.Errorf("create slot directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp slot %q: %w", slot, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(slotFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod slot %q: %w", slot, err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write slot %q: %w", slot, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close slot %q: %w", slot, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace slot %q: %w", slot, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, slot string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := s.pathForSlot(slot)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file slot %q: %w", slot, domain.ErrSlotNotFound)
		}
		return "", fmt.Errorf("read file slot %q: %w", slot, err)
	}

	return string(data), nil
}

func (s *Store) Remove(ctx context.Context, slot string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.pathForSlot(slot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file slot %q: %w", slot, err)
	}

	return nil
}

func (s *Store) pathForSlot(slot string) (string, error) {
	trimmed := strings.TrimSpace(slot)
	if trimmed == "" {
		return "", errors.New("slot name is empty")
	}

	cleaned := filepath.Clean(trimmed)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") || cleaned == "." {
		return "", fmt.Errorf("invalid slot name %q", slot)
	}

	return filepath.Join(s.root, cleaned), nil
}
