// Package storage implements the registry pair store: Apple ID to phone
// associations plus the verified-user shortcut records.
package storage

import (
	"context"

	"github.com/m3rciful/appleidbot/bot/domain"
)

// PairStore is the persistence boundary for registered pairs and verified
// users. Expected outcomes (duplicate key, missing row) surface as booleans;
// errors are reserved for infrastructure failures.
type PairStore interface {
	// AddPair stores a new pair. Returns false when the identity is already
	// registered (case-insensitive).
	AddPair(ctx context.Context, id domain.Identity, phone, addedBy string) (bool, error)
	// UpdatePhone replaces the phone for an existing identity. Returns true
	// iff a matching row existed.
	UpdatePhone(ctx context.Context, id domain.Identity, newPhone string) (bool, error)
	// RemovePair deletes the pair. Returns true iff a matching row existed.
	RemovePair(ctx context.Context, id domain.Identity) (bool, error)
	// ListPairs returns all registered pairs.
	ListPairs(ctx context.Context) ([]domain.RegisteredPair, error)
	// IdentityExists reports whether the identity is registered (case-insensitive).
	IdentityExists(ctx context.Context, id domain.Identity) (bool, error)
	// PhoneForIdentity resolves the phone registered for an identity.
	PhoneForIdentity(ctx context.Context, id domain.Identity) (string, bool, error)

	// SetVerifiedUser records (or overwrites) the verified identity for a chat.
	SetVerifiedUser(ctx context.Context, chatID int64, id domain.Identity) (bool, error)
	// VerifiedIdentity returns the verified identity for a chat, if any.
	VerifiedIdentity(ctx context.Context, chatID int64) (domain.Identity, bool, error)
	// RemoveVerified deletes the verified-user record for a chat.
	RemoveVerified(ctx context.Context, chatID int64) (bool, error)
}
