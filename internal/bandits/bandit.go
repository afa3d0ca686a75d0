package bandits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nzymedefense/nzyme/internal/bandits/identifiers"
	"github.com/nzymedefense/nzyme/internal/dot11"
)

// Bandit is a device profile to detect and track.
type Bandit struct {
	UUID        uuid.UUID
	DatabaseID  *int64 // set once persisted
	Name        string
	Description string
	ReadOnly    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Identifiers []identifiers.Identifier
}

// NewBandit returns a bandit with a fresh UUID.
func NewBandit(name, description string, now time.Time, ids ...identifiers.Identifier) (*Bandit, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("bandit name must not be empty")
	}
	return &Bandit{
		UUID:        uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Identifiers: ids,
	}, nil
}

// Matches reports whether any identifier returns True for f. NotApplicable
// and False results never produce a hit.
func (b *Bandit) Matches(f dot11.Frame) bool {
	for _, id := range b.Identifiers {
		if identifiers.Evaluate(id, f) == identifiers.True {
			return true
		}
	}
	return false
}

// Descriptor joins the identifier descriptors with OR.
func (b *Bandit) Descriptor() string {
	parts := make([]string, 0, len(b.Identifiers))
	for _, id := range b.Identifiers {
		parts = append(parts, "("+id.Descriptor()+")")
	}
	return strings.Join(parts, " OR ")
}

func (b *Bandit) String() string {
	return fmt.Sprintf("%s [%s]", b.Name, b.UUID)
}

// clone copies the bandit header and identifier slice. Identifiers are
// immutable and shared.
func (b *Bandit) clone() *Bandit {
	c := *b
	c.Identifiers = append([]identifiers.Identifier(nil), b.Identifiers...)
	if b.DatabaseID != nil {
		id := *b.DatabaseID
		c.DatabaseID = &id
	}
	return &c
}

// Repository persists bandits. Implementations live outside this package.
type Repository interface {
	CreateBandit(ctx context.Context, b *Bandit) error
	UpdateBandit(ctx context.Context, b *Bandit) error
	DeleteBandit(ctx context.Context, id uuid.UUID) error
	ListBandits(ctx context.Context) ([]*Bandit, error)
}
