package flow

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/m3rciful/appleidbot/bot/domain"
	"github.com/m3rciful/appleidbot/bot/scraper"
	"github.com/m3rciful/appleidbot/bot/storage"
	"github.com/m3rciful/appleidbot/core/telegram/state"
)

func identity(s string) domain.Identity {
	return domain.Identity(s)
}

type fixedFetcher struct {
	page  string
	calls int
}

func (f *fixedFetcher) FetchPage(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.page, nil
}

func inboxPage(sender, body string) string {
	return fmt.Sprintf(`<html><body>
		<div class="row border-bottom table-hover">
			<div class="col-xs-12 col-md-2">%s</div>
			<div class="col-xs-12 col-md-8">%s</div>
		</div>
	</body></html>`, sender, body)
}

func newUserFixture(t *testing.T, page string) (*UserFlow, *storage.MemoryStore, state.Manager) {
	t.Helper()
	store := storage.NewMemoryStore()
	sessions := state.NewMemoryManager()
	orch := scraper.NewOrchestrator(
		&fixedFetcher{page: page},
		scraper.NewExtractor(""),
		scraper.OrchestratorConfig{MaxRetries: 1}.Explicit(),
	)
	return NewUserFlow(sessions, store, orch), store, sessions
}

func mustRegister(t *testing.T, store *storage.MemoryStore, id, phone string) {
	t.Helper()
	added, err := store.AddPair(context.Background(), identity(id), phone, "admin")
	if err != nil || !added {
		t.Fatalf("AddPair(%q) = %v, %v", id, added, err)
	}
}

func TestStartThenVerifyRegisteredIdentity(t *testing.T) {
	flow, store, sessions := newUserFixture(t, "")
	ctx := context.Background()
	mustRegister(t, store, "john@icloud.com", "+15551234567")

	replies, err := flow.Start(ctx, 100)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "enter your Apple ID") {
		t.Fatalf("unexpected start replies: %+v", replies)
	}
	if sessions.GetState(100) != StateAwaitingIdentity {
		t.Fatalf("state = %q, want awaiting", sessions.GetState(100))
	}

	replies, err = flow.HandleText(ctx, 100, "not-an-email")
	if err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "Invalid format") {
		t.Fatalf("invalid input should re-prompt, got %+v", replies)
	}

	replies, err = flow.HandleText(ctx, 100, "missing@icloud.com")
	if err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "not found") {
		t.Fatalf("unknown identity should re-prompt, got %+v", replies)
	}

	replies, err = flow.HandleText(ctx, 100, "JOHN@ICLOUD.COM")
	if err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if len(replies) != 2 || !strings.Contains(replies[0].Text, "verified") {
		t.Fatalf("valid identity should verify, got %+v", replies)
	}
	if sessions.GetState(100) != StateVerified {
		t.Fatalf("state = %q, want verified", sessions.GetState(100))
	}

	id, found, err := store.VerifiedIdentity(ctx, 100)
	if err != nil || !found {
		t.Fatalf("VerifiedIdentity = %v, %v, %v", id, found, err)
	}
}

func TestStartOffersStoredIdentity(t *testing.T) {
	flow, store, sessions := newUserFixture(t, "")
	ctx := context.Background()
	mustRegister(t, store, "jane@icloud.com", "+15550001111")
	if _, err := store.SetVerifiedUser(ctx, 200, identity("jane@icloud.com")); err != nil {
		t.Fatalf("SetVerifiedUser: %v", err)
	}

	replies, err := flow.Start(ctx, 200)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(replies) != 1 || replies[0].Keyboard != KeyboardChooseIdentity {
		t.Fatalf("expected identity choice, got %+v", replies)
	}
	if !strings.Contains(replies[0].Text, "jane@icloud.com") {
		t.Fatalf("prompt should name the stored identity: %q", replies[0].Text)
	}

	replies, err = flow.HandleText(ctx, 200, BtnUseExisting)
	if err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if len(replies) != 2 || !strings.Contains(replies[0].Text, "existing Apple ID: jane@icloud.com") {
		t.Fatalf("unexpected replies: %+v", replies)
	}
	if sessions.GetState(200) != StateVerified {
		t.Fatalf("state = %q, want verified", sessions.GetState(200))
	}
}

func TestUseExistingRejectsRemovedPair(t *testing.T) {
	flow, store, sessions := newUserFixture(t, "")
	ctx := context.Background()
	mustRegister(t, store, "gone@icloud.com", "+15550002222")
	if _, err := store.SetVerifiedUser(ctx, 300, identity("gone@icloud.com")); err != nil {
		t.Fatalf("SetVerifiedUser: %v", err)
	}
	if _, err := flow.Start(ctx, 300); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := store.RemovePair(ctx, identity("gone@icloud.com")); err != nil {
		t.Fatalf("RemovePair: %v", err)
	}

	replies, err := flow.HandleText(ctx, 300, BtnUseExisting)
	if err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "no longer valid") {
		t.Fatalf("stale identity should re-prompt, got %+v", replies)
	}
	if sessions.GetState(300) != StateAwaitingIdentity {
		t.Fatalf("state = %q, want awaiting", sessions.GetState(300))
	}
}

func TestEnterNewIdentityChoice(t *testing.T) {
	flow, store, _ := newUserFixture(t, "")
	ctx := context.Background()
	mustRegister(t, store, "old@icloud.com", "+15550003333")
	mustRegister(t, store, "new@icloud.com", "+15550004444")
	if _, err := store.SetVerifiedUser(ctx, 400, identity("old@icloud.com")); err != nil {
		t.Fatalf("SetVerifiedUser: %v", err)
	}
	if _, err := flow.Start(ctx, 400); err != nil {
		t.Fatalf("Start: %v", err)
	}

	replies, err := flow.HandleText(ctx, 400, BtnEnterNew)
	if err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "new Apple ID") {
		t.Fatalf("unexpected replies: %+v", replies)
	}

	if _, err := flow.HandleText(ctx, 400, "new@icloud.com"); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	id, found, err := store.VerifiedIdentity(ctx, 400)
	if err != nil || !found || id != identity("new@icloud.com") {
		t.Fatalf("VerifiedIdentity = %v, %v, %v", id, found, err)
	}
}

func TestRequestVerificationRequiresVerifiedChat(t *testing.T) {
	flow, _, _ := newUserFixture(t, "")

	replies, err := flow.RequestVerification(context.Background(), 500, nil)
	if err != nil {
		t.Fatalf("RequestVerification: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "verify your Apple ID first") {
		t.Fatalf("unexpected replies: %+v", replies)
	}
}

func TestRequestVerificationDeliversMessages(t *testing.T) {
	page := inboxPage("Apple", "Your Apple ID Code is 651433.")
	flow, store, _ := newUserFixture(t, page)
	ctx := context.Background()
	mustRegister(t, store, "john@icloud.com", "+15551234567")
	if _, err := flow.Start(ctx, 600); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := flow.HandleText(ctx, 600, "john@icloud.com"); err != nil {
		t.Fatalf("HandleText: %v", err)
	}

	var notices []string
	replies, err := flow.RequestVerification(ctx, 600, func(r Reply) {
		notices = append(notices, r.Text)
	})
	if err != nil {
		t.Fatalf("RequestVerification: %v", err)
	}
	if len(notices) == 0 || !strings.Contains(notices[0], "Searching") {
		t.Fatalf("expected search notice, got %v", notices)
	}
	if len(replies) != 2 {
		t.Fatalf("want result + menu, got %+v", replies)
	}
	if !strings.Contains(replies[0].Text, "651433") {
		t.Fatalf("result should carry the code: %q", replies[0].Text)
	}
}

func TestRequestVerificationPromotesStoredIdentity(t *testing.T) {
	page := inboxPage("Apple", "Your Apple ID Code is 220044.")
	flow, store, sessions := newUserFixture(t, page)
	ctx := context.Background()
	mustRegister(t, store, "persist@icloud.com", "+15550005555")
	if _, err := store.SetVerifiedUser(ctx, 700, identity("persist@icloud.com")); err != nil {
		t.Fatalf("SetVerifiedUser: %v", err)
	}

	// No in-memory session at all, as after a restart.
	replies, err := flow.RequestVerification(ctx, 700, nil)
	if err != nil {
		t.Fatalf("RequestVerification: %v", err)
	}
	if !strings.Contains(replies[0].Text, "220044") {
		t.Fatalf("unexpected first reply: %q", replies[0].Text)
	}
	if sessions.GetState(700) != StateVerified {
		t.Fatalf("session should be promoted to verified, got %q", sessions.GetState(700))
	}
}

func TestRequestVerificationReportsExhaustion(t *testing.T) {
	flow, store, _ := newUserFixture(t, inboxPage("Telegram", "code 111111"))
	ctx := context.Background()
	mustRegister(t, store, "john@icloud.com", "+15551234567")
	if _, err := flow.Start(ctx, 800); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := flow.HandleText(ctx, 800, "john@icloud.com"); err != nil {
		t.Fatalf("HandleText: %v", err)
	}

	replies, err := flow.RequestVerification(ctx, 800, func(Reply) {})
	if err != nil {
		t.Fatalf("RequestVerification: %v", err)
	}
	if !strings.Contains(replies[0].Text, "No Apple verification messages found") {
		t.Fatalf("unexpected first reply: %q", replies[0].Text)
	}
}

func TestRequestVerificationWithoutPhone(t *testing.T) {
	flow, store, _ := newUserFixture(t, "")
	ctx := context.Background()
	mustRegister(t, store, "orphan@icloud.com", "+15550006666")
	if _, err := flow.Start(ctx, 900); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := flow.HandleText(ctx, 900, "orphan@icloud.com"); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if _, err := store.RemovePair(ctx, identity("orphan@icloud.com")); err != nil {
		t.Fatalf("RemovePair: %v", err)
	}

	replies, err := flow.RequestVerification(ctx, 900, nil)
	if err != nil {
		t.Fatalf("RequestVerification: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "No phone number found") {
		t.Fatalf("unexpected replies: %+v", replies)
	}
}
