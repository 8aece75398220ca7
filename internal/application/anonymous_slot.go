package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	AnonymousSessionSlot = "anonymous-session"
	PendingMigrationSlot = "pending-migration"

	anonymousSlotVersion = 1
	guestPrefix          = "guest_"
)

// anonymousSlot is the persisted form of an anonymous identity.
type anonymousSlot struct {
	Version   int    `toml:"version"`
	ID        string `toml:"id"`
	Secret    string `toml:"secret"`
	CreatedAt string `toml:"created_at"`
}

func (s *anonymousSlot) applyDefaults() {
	if s.Version == 0 {
		s.Version = anonymousSlotVersion
	}
}

func (s anonymousSlot) validate() error {
	if s.Version > anonymousSlotVersion {
		return fmt.Errorf("unsupported anonymous session version %d (current %d)", s.Version, anonymousSlotVersion)
	}
	if s.ID == "" || s.Secret == "" {
		return fmt.Errorf("anonymous session is missing id or secret")
	}
	return nil
}

func encodeAnonymous(identity domain.AnonymousIdentity) (string, error) {
	slot := anonymousSlot{
		ID:        string(identity.ID),
		Secret:    identity.Secret,
		CreatedAt: identity.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	slot.applyDefaults()

	data, err := toml.Marshal(slot)
	if err != nil {
		return "", fmt.Errorf("encode anonymous session: %w", err)
	}
	return string(data), nil
}

func decodeAnonymous(raw string) (domain.AnonymousIdentity, error) {
	var slot anonymousSlot
	if err := toml.Unmarshal([]byte(raw), &slot); err != nil {
		return domain.AnonymousIdentity{}, fmt.Errorf("decode anonymous session: %w", err)
	}
	slot.applyDefaults()
	if err := slot.validate(); err != nil {
		return domain.AnonymousIdentity{}, err
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, slot.CreatedAt)
	return domain.AnonymousIdentity{
		ID:        domain.UserID(slot.ID),
		Secret:    slot.Secret,
		CreatedAt: createdAt,
	}, nil
}

// newAnonymousIdentity mints guest_<unix-millis>_<random> ids and secrets.
func newAnonymousIdentity(now time.Time) domain.AnonymousIdentity {
	return domain.AnonymousIdentity{
		ID:        domain.UserID(guestToken(now, 11)),
		Secret:    guestToken(now, 24),
		CreatedAt: now,
	}
}

func guestToken(now time.Time, randomLen int) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	if randomLen < len(random) {
		random = random[:randomLen]
	}
	return fmt.Sprintf("%s%d_%s", guestPrefix, now.UnixMilli(), random)
}

// pendingMigrationSlot remembers a conversion whose ownership migration
// stopped part way, so it can be retried later.
type pendingMigrationSlot struct {
	From      string   `toml:"from"`
	To        string   `toml:"to"`
	Remaining []string `toml:"remaining,omitempty"`
}

func encodePendingMigration(report domain.MigrationReport) (string, error) {
	data, err := toml.Marshal(pendingMigrationSlot{
		From:      string(report.From),
		To:        string(report.To),
		Remaining: report.Remaining(),
	})
	if err != nil {
		return "", fmt.Errorf("encode pending migration: %w", err)
	}
	return string(data), nil
}

func decodePendingMigration(raw string) (pendingMigrationSlot, error) {
	var slot pendingMigrationSlot
	if err := toml.Unmarshal([]byte(raw), &slot); err != nil {
		return pendingMigrationSlot{}, fmt.Errorf("decode pending migration: %w", err)
	}
	if slot.From == "" || slot.To == "" {
		return pendingMigrationSlot{}, fmt.Errorf("pending migration is missing an identity")
	}
	return slot, nil
}
