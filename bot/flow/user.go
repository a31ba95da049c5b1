package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/appleidbot/bot/domain"
	"github.com/m3rciful/appleidbot/bot/scraper"
	"github.com/m3rciful/appleidbot/bot/storage"
	"github.com/m3rciful/appleidbot/core/logger"
	"github.com/m3rciful/appleidbot/core/telegram/state"
	"log/slog"
)

// User conversation states. Absence of a session is the NONE state.
const (
	StateAwaitingIdentity state.State = "user:awaiting_identity"
	StateChoosingOption   state.State = "user:choosing_option"
	StateVerified         state.State = "user:verified"
)

const (
	tempExistingIdentity = "existing_identity"
	tempIdentity         = "identity"
)

// UserFlow drives the per-chat identity verification state machine and the
// verification-code retrieval it unlocks.
type UserFlow struct {
	sessions state.Manager
	store    storage.PairStore
	fetch    *scraper.Orchestrator
}

// NewUserFlow wires the user state machine.
func NewUserFlow(sessions state.Manager, store storage.PairStore, fetch *scraper.Orchestrator) *UserFlow {
	return &UserFlow{sessions: sessions, store: store, fetch: fetch}
}

// InProgress reports whether the chat has an active conversation.
func (f *UserFlow) InProgress(chatID int64) bool {
	return f.sessions.InProgress(chatID)
}

// Start resets the chat's session and opens the verification dialogue.
// Chats with a stored verified identity are offered a choice; everyone else
// is prompted for an Apple ID.
func (f *UserFlow) Start(ctx context.Context, chatID int64) ([]Reply, error) {
	f.sessions.Clear(chatID)

	existing, found, err := f.store.VerifiedIdentity(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if found {
		f.sessions.SetState(chatID, StateChoosingOption)
		f.sessions.SetTemp(chatID, tempExistingIdentity, existing.String())
		return []Reply{{
			Text: fmt.Sprintf("We found your registered Apple ID: %s\n"+
				"Would you like to continue with this ID or enter a new one?", existing),
			Keyboard: KeyboardChooseIdentity,
		}}, nil
	}

	f.sessions.SetState(chatID, StateAwaitingIdentity)
	return []Reply{{
		Text:     "Please enter your Apple ID (format: name@domain.com):",
		Keyboard: KeyboardRemove,
	}}, nil
}

// HandleText advances the state machine with an inbound text message.
func (f *UserFlow) HandleText(ctx context.Context, chatID int64, text string) ([]Reply, error) {
	text = strings.TrimSpace(text)

	switch f.sessions.GetState(chatID) {
	case StateChoosingOption:
		return f.handleChoice(ctx, chatID, text)
	case StateAwaitingIdentity:
		return f.handleIdentity(ctx, chatID, text)
	default:
		// Verified sessions have no text protocol beyond commands.
		return nil, nil
	}
}

func (f *UserFlow) handleChoice(ctx context.Context, chatID int64, text string) ([]Reply, error) {
	switch text {
	case BtnUseExisting:
		raw, ok := f.sessions.GetTempString(chatID, tempExistingIdentity)
		if !ok {
			return f.toAwaiting(chatID, "❌ This Apple ID is no longer valid. Please enter a new one:"), nil
		}
		id := domain.Identity(raw)
		exists, err := f.store.IdentityExists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("choice: %w", err)
		}
		if !exists {
			return f.toAwaiting(chatID, "❌ This Apple ID is no longer valid. Please enter a new one:"), nil
		}
		if _, err := f.store.SetVerifiedUser(ctx, chatID, id); err != nil {
			return nil, fmt.Errorf("choice: %w", err)
		}
		f.toVerified(chatID, id)
		return []Reply{
			{Text: fmt.Sprintf("✅ Using your existing Apple ID: %s", id), Keyboard: KeyboardRemove},
			UserMenu(),
		}, nil

	case BtnEnterNew:
		return f.toAwaiting(chatID, "Please enter your new Apple ID:"), nil

	default:
		// Free text while the choice keyboard is up is ignored.
		return nil, nil
	}
}

func (f *UserFlow) handleIdentity(ctx context.Context, chatID int64, text string) ([]Reply, error) {
	id, err := domain.ParseIdentity(text)
	if err != nil {
		return []Reply{{Text: "❌ Invalid format! Please enter a valid Apple ID:"}}, nil
	}

	exists, err := f.store.IdentityExists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	if !exists {
		return []Reply{{Text: "❌ Apple ID not found. Please try again:"}}, nil
	}

	if _, err := f.store.SetVerifiedUser(ctx, chatID, id); err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	f.toVerified(chatID, id)
	logger.Debug(ctx, "service.pairs", "user.verified",
		slog.String("status", "ok"),
		slog.Int64("chat_id", chatID),
	)
	return []Reply{
		{Text: "✅ Apple ID verified!"},
		UserMenu(),
	}, nil
}

// RequestVerification runs the code retrieval for a verified chat. Progress
// notices (search start, retry waits) are pushed through notify as they
// happen; the final replies are returned.
func (f *UserFlow) RequestVerification(ctx context.Context, chatID int64, notify func(Reply)) ([]Reply, error) {
	id, ok := f.verifiedIdentity(ctx, chatID)
	if !ok {
		return []Reply{{Text: "⚠️ Please verify your Apple ID first by sending it to me."}}, nil
	}

	phone, found, err := f.store.PhoneForIdentity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("request verification: %w", err)
	}
	if !found {
		return []Reply{{Text: "❌ No phone number found for your Apple ID."}}, nil
	}

	if notify != nil {
		notify(Reply{Text: "🔍 Searching for Apple verification messages..."})
	}

	messages, fetchErr := f.fetch.FetchVerificationMessages(ctx, phone, func(attempt, total int, wait time.Duration) {
		if notify == nil {
			return
		}
		notify(Reply{Text: fmt.Sprintf(
			"⏳ No messages found yet (attempt %d/%d)\nWaiting %.1f seconds before retry...",
			attempt, total, wait.Seconds(),
		)})
	})

	var replies []Reply
	if fetchErr != nil {
		replies = append(replies, Reply{Text: fmt.Sprintf("⚠️ Error during search: %s", fetchErr)})
	}
	if len(messages) > 0 {
		var b strings.Builder
		b.WriteString("✅ Found Apple verification messages:\n\n")
		for i, body := range messages {
			fmt.Fprintf(&b, "%d. %s\n\n", i+1, body)
		}
		replies = append(replies, Reply{Text: strings.TrimRight(b.String(), "\n")})
	} else {
		replies = append(replies, Reply{Text: "❌ No Apple verification messages found after all attempts."})
	}
	return append(replies, UserMenu()), nil
}

// verifiedIdentity resolves the chat's identity, promoting from the store
// when the in-memory session was lost (e.g. after a restart).
func (f *UserFlow) verifiedIdentity(ctx context.Context, chatID int64) (domain.Identity, bool) {
	if f.sessions.GetState(chatID) == StateVerified {
		if raw, ok := f.sessions.GetTempString(chatID, tempIdentity); ok {
			return domain.Identity(raw), true
		}
	}
	id, found, err := f.store.VerifiedIdentity(ctx, chatID)
	if err != nil || !found {
		return "", false
	}
	f.toVerified(chatID, id)
	return id, true
}

func (f *UserFlow) toAwaiting(chatID int64, prompt string) []Reply {
	f.sessions.Clear(chatID)
	f.sessions.SetState(chatID, StateAwaitingIdentity)
	return []Reply{{Text: prompt, Keyboard: KeyboardRemove}}
}

func (f *UserFlow) toVerified(chatID int64, id domain.Identity) {
	f.sessions.Clear(chatID)
	f.sessions.SetState(chatID, StateVerified)
	f.sessions.SetTemp(chatID, tempIdentity, id.String())
}
