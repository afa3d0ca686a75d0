package bandits

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nzymedefense/nzyme/internal/bandits/identifiers"
	"github.com/nzymedefense/nzyme/internal/config"
)

// FromSeed builds a bandit from its configuration file form. A seed without
// a UUID gets a fresh one.
func FromSeed(seed config.BanditSeed, now time.Time) (*Bandit, error) {
	ids := make([]identifiers.Identifier, 0, len(seed.Identifiers))
	for i, s := range seed.Identifiers {
		id, err := identifiers.Parse(identifiers.Definition{
			Type:          identifiers.Type(s.Type),
			Configuration: s.Configuration,
		})
		if err != nil {
			return nil, fmt.Errorf("bandit %q identifier %d: %w", seed.Name, i, err)
		}
		ids = append(ids, id)
	}

	b, err := NewBandit(seed.Name, seed.Description, now, ids...)
	if err != nil {
		return nil, err
	}
	if seed.UUID != "" {
		parsed, err := uuid.Parse(seed.UUID)
		if err != nil {
			return nil, fmt.Errorf("bandit %q has invalid uuid %q: %w", seed.Name, seed.UUID, err)
		}
		b.UUID = parsed
	}
	b.ReadOnly = seed.ReadOnly
	return b, nil
}

// SeedRepository stores seeds into repo if it holds no bandits yet and
// returns how many were created. All seeds are validated before the first
// write.
func SeedRepository(ctx context.Context, repo Repository, seeds []config.BanditSeed, now time.Time) (int, error) {
	existing, err := repo.ListBandits(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list bandits: %w", err)
	}
	if len(existing) > 0 || len(seeds) == 0 {
		return 0, nil
	}

	built := make([]*Bandit, 0, len(seeds))
	for _, s := range seeds {
		b, err := FromSeed(s, now)
		if err != nil {
			return 0, err
		}
		built = append(built, b)
	}
	for i, b := range built {
		if err := repo.CreateBandit(ctx, b); err != nil {
			return i, fmt.Errorf("failed to store bandit %s: %w", b, err)
		}
	}
	return len(built), nil
}
