package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nzymedefense/nzyme/internal/bandits"
	"github.com/nzymedefense/nzyme/internal/bandits/identifiers"
)

var (
	// ErrBanditNotFound is returned when no stored bandit has the given UUID.
	ErrBanditNotFound = errors.New("bandit not found")
	// ErrBanditReadOnly is returned when updating or deleting a built-in bandit.
	ErrBanditReadOnly = errors.New("bandit is read-only")
)

var _ bandits.Repository = (*DB)(nil)

// CreateBandit stores b with its identifiers and sets b.DatabaseID.
func (db *DB) CreateBandit(ctx context.Context, b *bandits.Bandit) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO bandits (uuid, name, description, read_only, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.UUID.String(), b.Name, b.Description, boolToInt(b.ReadOnly),
		b.CreatedAt.Unix(), b.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create bandit %s: %w", b.UUID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	if err := insertIdentifiers(ctx, tx, id, b.Identifiers); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bandit %s: %w", b.UUID, err)
	}
	b.DatabaseID = &id
	return nil
}

// UpdateBandit replaces the name, description, update time and identifiers
// of a stored bandit.
func (db *DB) UpdateBandit(ctx context.Context, b *bandits.Bandit) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := writableBanditID(ctx, tx, b.UUID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE bandits SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		b.Name, b.Description, b.UpdatedAt.Unix(), id,
	); err != nil {
		return fmt.Errorf("failed to update bandit %s: %w", b.UUID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bandit_identifiers WHERE bandit_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear identifiers of bandit %s: %w", b.UUID, err)
	}
	if err := insertIdentifiers(ctx, tx, id, b.Identifiers); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bandit %s: %w", b.UUID, err)
	}
	b.DatabaseID = &id
	return nil
}

// DeleteBandit removes a bandit and, by cascade, its identifiers.
func (db *DB) DeleteBandit(ctx context.Context, banditUUID uuid.UUID) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := writableBanditID(ctx, tx, banditUUID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bandits WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete bandit %s: %w", banditUUID, err)
	}
	return tx.Commit()
}

// GetBandit loads one bandit by UUID.
func (db *DB) GetBandit(ctx context.Context, banditUUID uuid.UUID) (*bandits.Bandit, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, uuid, name, description, read_only, created_at, updated_at
		FROM bandits WHERE uuid = ?`, banditUUID.String())
	b, err := scanBandit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBanditNotFound, banditUUID)
	}
	if err != nil {
		return nil, err
	}

	ids, err := db.identifiersByBandit(ctx, b.DatabaseID)
	if err != nil {
		return nil, err
	}
	b.Identifiers = ids[*b.DatabaseID]
	return b, nil
}

// ListBandits loads every stored bandit ordered by name.
func (db *DB) ListBandits(ctx context.Context) ([]*bandits.Bandit, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, uuid, name, description, read_only, created_at, updated_at
		FROM bandits ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bandits: %w", err)
	}
	defer rows.Close()

	var out []*bandits.Bandit
	for rows.Next() {
		b, err := scanBandit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bandits: %w", err)
	}

	ids, err := db.identifiersByBandit(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, b := range out {
		b.Identifiers = ids[*b.DatabaseID]
	}
	return out, nil
}

// CountBandits returns the number of stored bandits.
func (db *DB) CountBandits(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bandits`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bandits: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBandit(s scanner) (*bandits.Bandit, error) {
	var (
		b                    bandits.Bandit
		id                   int64
		rawUUID              string
		readOnly             int
		createdAt, updatedAt int64
	)
	if err := s.Scan(&id, &rawUUID, &b.Name, &b.Description, &readOnly, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan bandit: %w", err)
	}
	parsed, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, fmt.Errorf("bandit %d has invalid uuid %q: %w", id, rawUUID, err)
	}
	b.UUID = parsed
	b.DatabaseID = &id
	b.ReadOnly = readOnly == 1
	b.CreatedAt = time.Unix(createdAt, 0).UTC()
	b.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &b, nil
}

// identifiersByBandit loads identifiers grouped by bandit row id, in stored
// order. A nil banditID loads all of them.
func (db *DB) identifiersByBandit(ctx context.Context, banditID *int64) (map[int64][]identifiers.Identifier, error) {
	query := `SELECT bandit_id, type, configuration FROM bandit_identifiers`
	var args []any
	if banditID != nil {
		query += ` WHERE bandit_id = ?`
		args = append(args, *banditID)
	}
	query += ` ORDER BY bandit_id, position`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query identifiers: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]identifiers.Identifier)
	for rows.Next() {
		var (
			owner   int64
			typ     string
			rawJSON string
		)
		if err := rows.Scan(&owner, &typ, &rawJSON); err != nil {
			return nil, fmt.Errorf("failed to scan identifier: %w", err)
		}
		def := identifiers.Definition{Type: identifiers.Type(typ)}
		if err := json.Unmarshal([]byte(rawJSON), &def.Configuration); err != nil {
			return nil, fmt.Errorf("identifier of bandit %d has invalid configuration: %w", owner, err)
		}
		id, err := identifiers.Parse(def)
		if err != nil {
			return nil, fmt.Errorf("identifier of bandit %d: %w", owner, err)
		}
		out[owner] = append(out[owner], id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate identifiers: %w", err)
	}
	return out, nil
}

func insertIdentifiers(ctx context.Context, tx *sql.Tx, banditID int64, ids []identifiers.Identifier) error {
	for pos, id := range ids {
		def := identifiers.Define(id)
		raw, err := json.Marshal(def.Configuration)
		if err != nil {
			return fmt.Errorf("failed to encode %s identifier: %w", def.Type, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bandit_identifiers (bandit_id, position, type, configuration)
			VALUES (?, ?, ?, ?)`,
			banditID, pos, string(def.Type), string(raw),
		); err != nil {
			return fmt.Errorf("failed to store %s identifier: %w", def.Type, err)
		}
	}
	return nil
}

// writableBanditID resolves a UUID to its row id, refusing read-only rows.
func writableBanditID(ctx context.Context, tx *sql.Tx, banditUUID uuid.UUID) (int64, error) {
	var (
		id       int64
		readOnly int
	)
	err := tx.QueryRowContext(ctx, `SELECT id, read_only FROM bandits WHERE uuid = ?`, banditUUID.String()).Scan(&id, &readOnly)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrBanditNotFound, banditUUID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up bandit %s: %w", banditUUID, err)
	}
	if readOnly == 1 {
		return 0, fmt.Errorf("%w: %s", ErrBanditReadOnly, banditUUID)
	}
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
