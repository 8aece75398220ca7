package ports

import "context"

// SlotStore is durable local key/value storage. Get returns an error wrapping
// domain.ErrSlotNotFound when the slot is empty.
type SlotStore interface {
	Get(ctx context.Context, slot string) (string, error)
	Set(ctx context.Context, slot string, value string) error
	Remove(ctx context.Context, slot string) error
}
