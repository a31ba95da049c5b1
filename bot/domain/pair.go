package domain

import "time"

// RegisteredPair is a stored association between an Apple ID and the phone
// number whose inbox receives its verification codes, plus audit metadata.
type RegisteredPair struct {
	ID          int64      `db:"id"`
	AppleID     string     `db:"apple_id"`
	Phone       string     `db:"phone"`
	AddedBy     string     `db:"added_by"`
	AddedAt     time.Time  `db:"added_at"`
	LastUpdated *time.Time `db:"last_updated"`
}

// VerifiedUser marks that a chat has proven knowledge of a registered Apple ID.
type VerifiedUser struct {
	ChatID     int64     `db:"chat_id"`
	AppleID    string    `db:"apple_id"`
	VerifiedAt time.Time `db:"verified_at"`
}
