package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/appleidbot/bot/domain"
	"github.com/m3rciful/appleidbot/core/logger"
	"log/slog"
)

const pqUniqueViolation = "23505"

// PostgresStore is the sqlx-backed PairStore implementation.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an established sqlx connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// AddPair stores a new pair, reporting false on a duplicate identity.
func (s *PostgresStore) AddPair(ctx context.Context, id domain.Identity, phone, addedBy string) (bool, error) {
	const q = `
        INSERT INTO registered_pairs (apple_id, phone, added_by, added_at)
        VALUES ($1, $2, $3, $4)`
	_, err := s.db.ExecContext(ctx, q, id.String(), phone, addedBy, time.Now().UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("add pair: %w", err)
	}
	logger.Debug(ctx, "service.pairs", "pair.added",
		slog.String("status", "ok"),
	)
	return true, nil
}

// UpdatePhone replaces the phone for an existing identity.
func (s *PostgresStore) UpdatePhone(ctx context.Context, id domain.Identity, newPhone string) (bool, error) {
	const q = `
        UPDATE registered_pairs
        SET phone = $1, last_updated = $2
        WHERE LOWER(apple_id) = LOWER($3)`
	res, err := s.db.ExecContext(ctx, q, newPhone, time.Now().UTC(), id.String())
	if err != nil {
		return false, fmt.Errorf("update phone: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update phone rows: %w", err)
	}
	return n > 0, nil
}

// RemovePair deletes the pair for the identity.
func (s *PostgresStore) RemovePair(ctx context.Context, id domain.Identity) (bool, error) {
	const q = `DELETE FROM registered_pairs WHERE LOWER(apple_id) = LOWER($1)`
	res, err := s.db.ExecContext(ctx, q, id.String())
	if err != nil {
		return false, fmt.Errorf("remove pair: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove pair rows: %w", err)
	}
	return n > 0, nil
}

// ListPairs returns all registered pairs in insertion order.
func (s *PostgresStore) ListPairs(ctx context.Context) ([]domain.RegisteredPair, error) {
	const q = `
        SELECT id, apple_id, phone, added_by, added_at, last_updated
        FROM registered_pairs
        ORDER BY id`
	var pairs []domain.RegisteredPair
	if err := s.db.SelectContext(ctx, &pairs, q); err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	return pairs, nil
}

// IdentityExists reports whether the identity is registered.
func (s *PostgresStore) IdentityExists(ctx context.Context, id domain.Identity) (bool, error) {
	const q = `SELECT 1 FROM registered_pairs WHERE LOWER(apple_id) = LOWER($1)`
	var one int
	err := s.db.GetContext(ctx, &one, q, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("identity exists: %w", err)
	}
	return true, nil
}

// PhoneForIdentity resolves the registered phone for an identity.
func (s *PostgresStore) PhoneForIdentity(ctx context.Context, id domain.Identity) (string, bool, error) {
	const q = `SELECT phone FROM registered_pairs WHERE LOWER(apple_id) = LOWER($1)`
	var phone string
	err := s.db.GetContext(ctx, &phone, q, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("phone for identity: %w", err)
	}
	return phone, true, nil
}

// SetVerifiedUser records the verified identity for a chat, overwriting any
// previous record.
func (s *PostgresStore) SetVerifiedUser(ctx context.Context, chatID int64, id domain.Identity) (bool, error) {
	const q = `
        INSERT INTO verified_users (chat_id, apple_id, verified_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (chat_id)
        DO UPDATE SET apple_id = EXCLUDED.apple_id, verified_at = EXCLUDED.verified_at`
	if _, err := s.db.ExecContext(ctx, q, chatID, id.String(), time.Now().UTC()); err != nil {
		return false, fmt.Errorf("set verified user: %w", err)
	}
	logger.Debug(ctx, "service.pairs", "verified.set",
		slog.String("status", "ok"),
		slog.Int64("chat_id", chatID),
	)
	return true, nil
}

// VerifiedIdentity returns the verified identity recorded for a chat.
func (s *PostgresStore) VerifiedIdentity(ctx context.Context, chatID int64) (domain.Identity, bool, error) {
	const q = `SELECT apple_id FROM verified_users WHERE chat_id = $1`
	var raw string
	err := s.db.GetContext(ctx, &raw, q, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("verified identity: %w", err)
	}
	return domain.Identity(raw), true, nil
}

// RemoveVerified deletes the verified-user record for a chat.
func (s *PostgresStore) RemoveVerified(ctx context.Context, chatID int64) (bool, error) {
	const q = `DELETE FROM verified_users WHERE chat_id = $1`
	res, err := s.db.ExecContext(ctx, q, chatID)
	if err != nil {
		return false, fmt.Errorf("remove verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove verified rows: %w", err)
	}
	return n > 0, nil
}

var _ PairStore = (*PostgresStore)(nil)
