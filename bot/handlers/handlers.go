// Package handlers adapts the conversation flows to telebot: it registers
// commands and callbacks, renders flow replies into Telegram messages, and
// binds the session dispatchers for free-text updates.
package handlers

import (
	"github.com/m3rciful/appleidbot/bot/domain"
	"github.com/m3rciful/appleidbot/bot/flow"
	"github.com/m3rciful/appleidbot/bot/storage"
	tg "github.com/m3rciful/appleidbot/core/telegram"
	"github.com/m3rciful/appleidbot/core/telegram/callbacks"
	"github.com/m3rciful/appleidbot/core/telegram/commands"
	"github.com/m3rciful/appleidbot/core/telegram/helpers"
	"github.com/m3rciful/appleidbot/core/telegram/keyboard"
	"github.com/m3rciful/appleidbot/core/telegram/middleware"
	"github.com/m3rciful/appleidbot/core/telegram/router"
	"github.com/m3rciful/appleidbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// Callback keys for the admin panel's inline buttons. Each aliases the
// matching slash command.
const (
	cbRegisterPair = "admin_register"
	cbReplacePhone = "admin_replace"
	cbRemovePair   = "admin_remove"
	cbListPairs    = "admin_list"

	// cbQuickRemove carries the target Apple ID as its payload.
	cbQuickRemove = "admin_quick_remove"
)

const accessDeniedText = "⛔ Admin access required"

// Handlers ties the flows to the bot surface.
type Handlers struct {
	users  *flow.UserFlow
	admins *flow.AdminFlow
	store  storage.PairStore
	access middleware.AdminOptions
}

// New builds the handler set. The admin flow is registered with the shared
// FSM handler table so the state manager can dispatch its steps.
func New(users *flow.UserFlow, admins *flow.AdminFlow, store storage.PairStore, access middleware.AdminOptions) *Handlers {
	h := &Handlers{users: users, admins: admins, store: store, access: access}
	for _, st := range []state.State{
		flow.StateRegisterIdentity,
		flow.StateRegisterPhone,
		flow.StateReplaceIdentity,
		flow.StateReplacePhone,
		flow.StateRemoveIdentity,
	} {
		state.RegisterHandler(st, h.adminText)
	}
	return h
}

// AccessDenied replies to non-admins hitting admin-only commands.
func AccessDenied(c tele.Context) error {
	return helpers.SendText(c, accessDeniedText)
}

// Register installs all commands and callbacks into the registry.
func (h *Handlers) Register(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.start,
		Description: "Start and verify your Apple ID",
	})
	reg.RegisterCommand("/get_verification", commands.Command{
		Handler:     h.getVerification,
		Description: "Get verification",
	})
	reg.RegisterCommand("/back", commands.Command{
		Handler:     h.back,
		Description: "Back to main menu",
		Hidden:      true,
	})
	reg.RegisterCommand("/appleid_admin", commands.Command{
		Handler:     h.adminPanel,
		Description: "Apple ID management",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/register_pair", commands.Command{
		Handler:     h.registerPair,
		Description: "Register Apple ID + phone",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/replace_phone", commands.Command{
		Handler:     h.replacePhone,
		Description: "Update phone number",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/remove_pair", commands.Command{
		Handler:     h.removePair,
		Description: "Remove a pair",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/list_pairs", commands.Command{
		Handler:     h.listPairs,
		Description: "View all pairs",
		AdminOnly:   true,
		Hidden:      true,
	})

	_ = reg.RegisterCallback(cbRegisterPair, h.adminOnlyCallback(h.registerPair))
	_ = reg.RegisterCallback(cbReplacePhone, h.adminOnlyCallback(h.replacePhone))
	_ = reg.RegisterCallback(cbRemovePair, h.adminOnlyCallback(h.removePair))
	_ = reg.RegisterCallback(cbListPairs, h.adminOnlyCallback(h.listPairs))
	_ = reg.RegisterCallback(cbQuickRemove, h.adminOnlyCallback(h.quickRemove))

	reg.SetTextFallback(h.menu)
}

// SessionBindings orders the free-text dispatchers: admin dialogues (keyed
// by sender) win over user dialogues (keyed by chat). In private chats the
// two keys coincide, which is why the flows use separate managers.
func (h *Handlers) SessionBindings(adminSessions state.Manager) []router.SessionBinding {
	return []router.SessionBinding{
		{
			Name: "admin_flow",
			InProgress: func(c tele.Context) bool {
				s := c.Sender()
				return s != nil && h.access.IsAdmin(s) && h.admins.InProgress(s.ID)
			},
			Handle: adminSessions.ManagerHandler,
		},
		{
			Name: "user_flow",
			InProgress: func(c tele.Context) bool {
				chat := c.Chat()
				return chat != nil && h.users.InProgress(chat.ID)
			},
			Handle: h.userText,
		},
	}
}

// UnknownText re-shows the menu when free text arrives outside any session.
func (h *Handlers) UnknownText() tele.HandlerFunc { return h.menu }

// UnknownDocument ignores stray documents.
func (h *Handlers) UnknownDocument() tele.HandlerFunc {
	return func(tele.Context) error { return nil }
}

// UnknownCallback answers stale inline buttons with the panel.
func (h *Handlers) UnknownCallback() tele.HandlerFunc { return h.adminPanel }

func (h *Handlers) start(c tele.Context) error {
	if h.access.IsAdmin(c.Sender()) {
		return send(c, flow.AdminMenu())
	}
	ctx := helpers.BuildContext(c)
	replies, err := h.users.Start(ctx, c.Chat().ID)
	if err != nil {
		return err
	}
	return send(c, replies...)
}

func (h *Handlers) getVerification(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	replies, err := h.users.RequestVerification(ctx, c.Chat().ID, func(r flow.Reply) {
		_ = send(c, r)
	})
	if err != nil {
		return err
	}
	return send(c, replies...)
}

func (h *Handlers) back(c tele.Context) error {
	if h.access.IsAdmin(c.Sender()) {
		h.admins.Cancel(c.Sender().ID)
	}
	return h.menu(c)
}

func (h *Handlers) menu(c tele.Context) error {
	if h.access.IsAdmin(c.Sender()) {
		return send(c, flow.AdminMenu())
	}
	return send(c, flow.UserMenu())
}

func (h *Handlers) adminPanel(c tele.Context) error {
	markup := keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "🔧 Register pair", Unique: cbRegisterPair},
		{Text: "🔄 Replace phone", Unique: cbReplacePhone},
		{Text: "🗑 Remove pair", Unique: cbRemovePair},
		{Text: "📋 List pairs", Unique: cbListPairs},
	})
	return helpers.SendText(c, flow.AdminPanel().Text, &tele.SendOptions{ReplyMarkup: markup})
}

func (h *Handlers) registerPair(c tele.Context) error {
	return send(c, h.admins.BeginRegister(c.Sender().ID))
}

func (h *Handlers) replacePhone(c tele.Context) error {
	return send(c, h.admins.BeginReplace(c.Sender().ID))
}

func (h *Handlers) removePair(c tele.Context) error {
	return send(c, h.admins.BeginRemove(c.Sender().ID))
}

func (h *Handlers) listPairs(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	pairs, err := h.store.ListPairs(ctx)
	if err != nil {
		return send(c, h.admins.ListPairs(ctx)...)
	}

	listing := flow.RenderPairs(pairs)
	if len(pairs) == 0 {
		if err := send(c, listing); err != nil {
			return err
		}
		return h.adminPanel(c)
	}

	// One quick-remove button per pair, two per row.
	btns := make([]keyboard.InlineBtn, 0, len(pairs))
	for _, p := range pairs {
		btns = append(btns, keyboard.InlineBtn{
			Text:   "🗑 " + p.AppleID,
			Unique: cbQuickRemove,
			Data:   p.AppleID,
		})
	}
	markup := keyboard.InlineButtonsNPerRow(btns, 2)
	if err := helpers.SendText(c, listing.Text, &tele.SendOptions{ReplyMarkup: markup}); err != nil {
		return err
	}
	return h.adminPanel(c)
}

// quickRemove deletes the pair named in the callback payload.
func (h *Handlers) quickRemove(c tele.Context) error {
	raw := callbacks.CallbackPayload(c)
	if raw == "" {
		return h.adminPanel(c)
	}
	ctx := helpers.BuildContext(c)
	removed, err := h.store.RemovePair(ctx, domain.Identity(raw))
	if err != nil {
		return helpers.SendText(c, "❌ Operation failed: "+err.Error())
	}
	if !removed {
		return helpers.SendText(c, "❌ Failed to remove the pair")
	}
	if err := helpers.SendText(c, "✅ Successfully removed:\nApple ID: "+raw); err != nil {
		return err
	}
	return h.listPairs(c)
}

// adminOnlyCallback guards panel callbacks the way AdminOnlyMiddleware
// guards commands.
func (h *Handlers) adminOnlyCallback(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !h.access.IsAdmin(c.Sender()) {
			return helpers.SendText(c, accessDeniedText)
		}
		return next(c)
	}
}

func (h *Handlers) adminText(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	sender := c.Sender()
	replies := h.admins.HandleText(ctx, sender.ID, sender.Username, c.Text())
	return send(c, replies...)
}

func (h *Handlers) userText(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	replies, err := h.users.HandleText(ctx, c.Chat().ID, c.Text())
	if err != nil {
		return err
	}
	return send(c, replies...)
}

// send renders flow replies, mapping keyboard hints to telebot markups.
func send(c tele.Context, replies ...flow.Reply) error {
	for _, r := range replies {
		var markup *tele.ReplyMarkup
		switch r.Keyboard {
		case flow.KeyboardRemove:
			markup = keyboard.RemoveKeyboard()
		case flow.KeyboardChooseIdentity:
			markup = keyboard.ReplyButtons(
				[]string{flow.BtnUseExisting},
				[]string{flow.BtnEnterNew},
			)
		}
		var err error
		if markup != nil {
			err = helpers.SendText(c, r.Text, &tele.SendOptions{ReplyMarkup: markup})
		} else {
			err = helpers.SendText(c, r.Text)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
