package handlers

import (
	"strings"
	"testing"

	"github.com/m3rciful/appleidbot/bot/flow"
	"github.com/m3rciful/appleidbot/bot/storage"
	"github.com/m3rciful/appleidbot/core/telegram/middleware"
	"github.com/m3rciful/appleidbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// stubContext implements just enough of tele.Context for handler tests;
// unimplemented methods panic via the embedded nil interface.
type stubContext struct {
	tele.Context
	sender *tele.User
	sent   []string
}

func (c *stubContext) Sender() *tele.User { return c.sender }

func (c *stubContext) Send(what interface{}, _ ...interface{}) error {
	if s, ok := what.(string); ok {
		c.sent = append(c.sent, s)
	}
	return nil
}

func newHandlerFixture(t *testing.T) (*Handlers, *flow.AdminFlow, middleware.AdminOptions) {
	t.Helper()
	store := storage.NewMemoryStore()
	users := flow.NewUserFlow(state.NewMemoryManager(), store, nil)
	admins := flow.NewAdminFlow(state.NewMemoryManager(), store)
	access := middleware.NewAdminOptions([]string{"boss"}, nil, AccessDenied)
	return New(users, admins, store, access), admins, access
}

func TestAdminCommandDeniedCreatesNoSession(t *testing.T) {
	h, admins, access := newHandlerFixture(t)
	guarded := middleware.AdminOnlyMiddleware(access)(h.registerPair)

	c := &stubContext{sender: &tele.User{ID: 5, Username: "stranger"}}
	if err := guarded(c); err != nil {
		t.Fatalf("guarded handler: %v", err)
	}
	if admins.InProgress(5) {
		t.Fatal("denied command must not open an admin session")
	}
	if len(c.sent) != 1 || c.sent[0] != accessDeniedText {
		t.Fatalf("sent = %v, want a single access-denied reply", c.sent)
	}
}

func TestAdminCommandOpensSessionForAdmin(t *testing.T) {
	h, admins, access := newHandlerFixture(t)
	guarded := middleware.AdminOnlyMiddleware(access)(h.registerPair)

	c := &stubContext{sender: &tele.User{ID: 7, Username: "Boss"}}
	if err := guarded(c); err != nil {
		t.Fatalf("guarded handler: %v", err)
	}
	if !admins.InProgress(7) {
		t.Fatal("admin command should open the register session")
	}
	if len(c.sent) != 1 || !strings.Contains(c.sent[0], "Apple ID to register") {
		t.Fatalf("sent = %v, want the register prompt", c.sent)
	}
}
