package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/appleidbot/bot/domain"
	"github.com/m3rciful/appleidbot/bot/storage"
	"github.com/m3rciful/appleidbot/core/logger"
	"github.com/m3rciful/appleidbot/core/telegram/state"
	"log/slog"
)

// Admin conversation states: three linear command flows of one or two steps
// each, keyed by the admin's user id.
const (
	StateRegisterIdentity state.State = "admin:register_pair:identity"
	StateRegisterPhone    state.State = "admin:register_pair:phone"
	StateReplaceIdentity  state.State = "admin:replace_phone:identity"
	StateReplacePhone     state.State = "admin:replace_phone:phone"
	StateRemoveIdentity   state.State = "admin:remove_pair:identity"
)

const tempAdminIdentity = "identity"

// AdminFlow drives the multi-step registry mutation dialogues. Recoverable
// validation failures re-prompt in place or reset to the panel; unexpected
// failures always clear the session so no partial state survives.
type AdminFlow struct {
	sessions state.Manager
	store    storage.PairStore
}

// NewAdminFlow wires the admin state machine.
func NewAdminFlow(sessions state.Manager, store storage.PairStore) *AdminFlow {
	return &AdminFlow{sessions: sessions, store: store}
}

// InProgress reports whether the admin has an active command flow.
func (f *AdminFlow) InProgress(adminID int64) bool {
	return f.sessions.InProgress(adminID)
}

// Cancel drops any in-flight admin session.
func (f *AdminFlow) Cancel(adminID int64) {
	f.sessions.Clear(adminID)
}

// BeginRegister opens the register-pair flow.
func (f *AdminFlow) BeginRegister(adminID int64) Reply {
	f.begin(adminID, StateRegisterIdentity)
	return Reply{Text: "Please enter the Apple ID to register (format: user@domain.com):\n" +
		"Example: john.doe@icloud.com"}
}

// BeginReplace opens the replace-phone flow.
func (f *AdminFlow) BeginReplace(adminID int64) Reply {
	f.begin(adminID, StateReplaceIdentity)
	return Reply{Text: "Enter the REGISTERED Apple ID to update its phone number:"}
}

// BeginRemove opens the remove-pair flow.
func (f *AdminFlow) BeginRemove(adminID int64) Reply {
	f.begin(adminID, StateRemoveIdentity)
	return Reply{Text: "Enter the Apple ID to remove:"}
}

func (f *AdminFlow) begin(adminID int64, st state.State) {
	f.sessions.Clear(adminID)
	f.sessions.SetState(adminID, st)
}

// HandleText advances the active admin flow with an inbound message.
// adminHandle is the invoking admin's username; the numeric id substitutes
// when it is empty.
func (f *AdminFlow) HandleText(ctx context.Context, adminID int64, adminHandle, text string) []Reply {
	text = strings.TrimSpace(text)

	switch f.sessions.GetState(adminID) {
	case StateRegisterIdentity:
		return f.registerIdentity(ctx, adminID, text)
	case StateRegisterPhone:
		return f.registerPhone(ctx, adminID, adminHandle, text)
	case StateReplaceIdentity:
		return f.replaceIdentity(ctx, adminID, text)
	case StateReplacePhone:
		return f.replacePhone(ctx, adminID, text)
	case StateRemoveIdentity:
		return f.removeIdentity(ctx, adminID, text)
	default:
		return nil
	}
}

func (f *AdminFlow) registerIdentity(ctx context.Context, adminID int64, text string) []Reply {
	id, err := domain.ParseIdentity(text)
	if err != nil {
		return []Reply{{Text: "❌ Invalid Apple ID format!\n" +
			"Must be a valid email (user@domain.com)\n" +
			"Please try again:"}}
	}

	exists, err := f.store.IdentityExists(ctx, id)
	if err != nil {
		return f.fail(ctx, adminID, err)
	}
	if exists {
		return []Reply{{Text: "❌ This Apple ID is already registered!\n" +
			"Please enter a different Apple ID:"}}
	}

	f.sessions.SetTemp(adminID, tempAdminIdentity, id.String())
	f.sessions.SetState(adminID, StateRegisterPhone)
	return []Reply{{Text: "✅ Valid Apple ID!\n" +
		"Now please enter the PHONE NUMBER (format: +1234567890):\n" +
		"Example: +15551234567"}}
}

func (f *AdminFlow) registerPhone(ctx context.Context, adminID int64, adminHandle, text string) []Reply {
	switch domain.ValidatePhone(text) {
	case domain.ErrPhonePrefix:
		return []Reply{{Text: "❌ Phone number must start with '+' country code!\n" +
			"Please try again:"}}
	case domain.ErrPhoneLength:
		return []Reply{{Text: "❌ Phone number too short!\n" +
			"Please include country code and area code\n" +
			"Example: +15551234567\n" +
			"Please try again:"}}
	}

	raw, ok := f.sessions.GetTempString(adminID, tempAdminIdentity)
	if !ok {
		return f.fail(ctx, adminID, fmt.Errorf("register flow lost its identity"))
	}
	id := domain.Identity(raw)

	addedBy := adminHandle
	if addedBy == "" {
		addedBy = strconv.FormatInt(adminID, 10)
	}

	added, err := f.store.AddPair(ctx, id, text, addedBy)
	if err != nil {
		return f.fail(ctx, adminID, err)
	}

	var result Reply
	if added {
		result = Reply{Text: fmt.Sprintf("✅ Successfully registered:\nApple ID: %s\nPhone: %s", id, text)}
		logger.Info(ctx, "service.pairs", "pair.registered",
			slog.String("status", "ok"),
			slog.Int64("user_id", adminID),
		)
	} else {
		result = Reply{Text: "❌ Unexpected error saving to database"}
	}

	// The session ends here even on a store failure; the admin restarts
	// the flow from the panel.
	f.sessions.Clear(adminID)
	return []Reply{result, AdminPanel()}
}

func (f *AdminFlow) replaceIdentity(ctx context.Context, adminID int64, text string) []Reply {
	id := domain.Identity(text)
	exists, err := f.store.IdentityExists(ctx, id)
	if err != nil {
		return f.fail(ctx, adminID, err)
	}
	if !exists {
		return f.notFound(adminID)
	}

	f.sessions.SetTemp(adminID, tempAdminIdentity, id.String())
	f.sessions.SetState(adminID, StateReplacePhone)
	return []Reply{{Text: "Enter the NEW PHONE NUMBER:"}}
}

func (f *AdminFlow) replacePhone(ctx context.Context, adminID int64, text string) []Reply {
	raw, ok := f.sessions.GetTempString(adminID, tempAdminIdentity)
	if !ok {
		return f.fail(ctx, adminID, fmt.Errorf("replace flow lost its identity"))
	}
	id := domain.Identity(raw)

	updated, err := f.store.UpdatePhone(ctx, id, text)
	if err != nil {
		return f.fail(ctx, adminID, err)
	}

	var result Reply
	if updated {
		result = Reply{Text: fmt.Sprintf("✅ Successfully updated phone number:\nApple ID: %s\nNew phone: %s", id, text)}
	} else {
		result = Reply{Text: "❌ Failed to update phone number"}
	}

	f.sessions.Clear(adminID)
	return []Reply{result, AdminPanel()}
}

func (f *AdminFlow) removeIdentity(ctx context.Context, adminID int64, text string) []Reply {
	id := domain.Identity(text)
	exists, err := f.store.IdentityExists(ctx, id)
	if err != nil {
		return f.fail(ctx, adminID, err)
	}
	if !exists {
		return f.notFound(adminID)
	}

	removed, err := f.store.RemovePair(ctx, id)
	if err != nil {
		return f.fail(ctx, adminID, err)
	}

	var result Reply
	if removed {
		result = Reply{Text: fmt.Sprintf("✅ Successfully removed:\nApple ID: %s", id)}
	} else {
		result = Reply{Text: "❌ Failed to remove the pair"}
	}

	f.sessions.Clear(adminID)
	return []Reply{result, AdminPanel()}
}

// notFound handles the recoverable identity-not-found validation error:
// report, reset the session, land back on the panel.
func (f *AdminFlow) notFound(adminID int64) []Reply {
	f.sessions.Clear(adminID)
	return []Reply{
		{Text: "❌ Error: Apple ID not found in registered pairs"},
		AdminPanel(),
	}
}

// fail handles unexpected errors: report with the message, unconditionally
// clear the session, redisplay the panel.
func (f *AdminFlow) fail(ctx context.Context, adminID int64, err error) []Reply {
	logger.Error(ctx, "service.pairs", "admin.flow_failed",
		slog.String("status", "fail"),
		slog.Int64("user_id", adminID),
		slog.String("err", err.Error()),
	)
	f.sessions.Clear(adminID)
	return []Reply{
		{Text: fmt.Sprintf("❌ Operation failed: %s", err)},
		AdminPanel(),
	}
}

// ListPairs renders the registry listing followed by the panel.
func (f *AdminFlow) ListPairs(ctx context.Context) []Reply {
	pairs, err := f.store.ListPairs(ctx)
	if err != nil {
		logger.Error(ctx, "service.pairs", "pairs.list_failed",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return []Reply{
			{Text: fmt.Sprintf("❌ Operation failed: %s", err)},
			AdminPanel(),
		}
	}
	return []Reply{RenderPairs(pairs), AdminPanel()}
}
