package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/m3rciful/appleidbot/bot/storage"
	"github.com/m3rciful/appleidbot/core/telegram/state"
)

func newAdminFixture(t *testing.T) (*AdminFlow, *storage.MemoryStore, state.Manager) {
	t.Helper()
	store := storage.NewMemoryStore()
	sessions := state.NewMemoryManager()
	return NewAdminFlow(sessions, store), store, sessions
}

func TestRegisterPairSequence(t *testing.T) {
	flow, store, sessions := newAdminFixture(t)
	ctx := context.Background()
	const admin = int64(42)

	reply := flow.BeginRegister(admin)
	if !strings.Contains(reply.Text, "Apple ID to register") {
		t.Fatalf("unexpected prompt: %q", reply.Text)
	}

	replies := flow.HandleText(ctx, admin, "boss", "bad")
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "Invalid Apple ID format") {
		t.Fatalf("bad identity should re-prompt, got %+v", replies)
	}
	if sessions.GetState(admin) != StateRegisterIdentity {
		t.Fatalf("state = %q, want identity step", sessions.GetState(admin))
	}

	replies = flow.HandleText(ctx, admin, "boss", "john@x.com")
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "PHONE NUMBER") {
		t.Fatalf("valid identity should advance, got %+v", replies)
	}
	if sessions.GetState(admin) != StateRegisterPhone {
		t.Fatalf("state = %q, want phone step", sessions.GetState(admin))
	}

	replies = flow.HandleText(ctx, admin, "boss", "12345")
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "must start with '+'") {
		t.Fatalf("missing plus should re-prompt, got %+v", replies)
	}

	replies = flow.HandleText(ctx, admin, "boss", "+123")
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "too short") {
		t.Fatalf("short phone should re-prompt, got %+v", replies)
	}

	replies = flow.HandleText(ctx, admin, "boss", "+15551234567")
	if len(replies) != 2 || !strings.Contains(replies[0].Text, "Successfully registered") {
		t.Fatalf("register should succeed, got %+v", replies)
	}
	if flow.InProgress(admin) {
		t.Fatal("session should be cleared after registration")
	}

	phone, found, err := store.PhoneForIdentity(ctx, identity("john@x.com"))
	if err != nil || !found || phone != "+15551234567" {
		t.Fatalf("PhoneForIdentity = %q, %v, %v", phone, found, err)
	}
	pairs, err := store.ListPairs(ctx)
	if err != nil || len(pairs) != 1 {
		t.Fatalf("ListPairs = %v, %v", pairs, err)
	}
	if pairs[0].AddedBy != "boss" {
		t.Fatalf("AddedBy = %q, want handle", pairs[0].AddedBy)
	}
}

func TestRegisterRejectsDuplicateIdentity(t *testing.T) {
	flow, store, _ := newAdminFixture(t)
	ctx := context.Background()
	mustRegister(t, store, "taken@icloud.com", "+15550001111")

	flow.BeginRegister(7)
	replies := flow.HandleText(ctx, 7, "boss", "TAKEN@icloud.com")
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "already registered") {
		t.Fatalf("duplicate should re-prompt, got %+v", replies)
	}
	if !flow.InProgress(7) {
		t.Fatal("duplicate rejection keeps the session alive")
	}
}

func TestRegisterAddedByFallsBackToID(t *testing.T) {
	flow, store, _ := newAdminFixture(t)
	ctx := context.Background()

	flow.BeginRegister(9001)
	flow.HandleText(ctx, 9001, "", "anon@icloud.com")
	flow.HandleText(ctx, 9001, "", "+15559998888")

	pairs, err := store.ListPairs(ctx)
	if err != nil || len(pairs) != 1 {
		t.Fatalf("ListPairs = %v, %v", pairs, err)
	}
	if pairs[0].AddedBy != "9001" {
		t.Fatalf("AddedBy = %q, want numeric fallback", pairs[0].AddedBy)
	}
}

func TestReplacePhoneFlow(t *testing.T) {
	flow, store, sessions := newAdminFixture(t)
	ctx := context.Background()
	mustRegister(t, store, "swap@icloud.com", "+15550001111")

	reply := flow.BeginReplace(11)
	if !strings.Contains(reply.Text, "REGISTERED Apple ID") {
		t.Fatalf("unexpected prompt: %q", reply.Text)
	}

	replies := flow.HandleText(ctx, 11, "boss", "swap@icloud.com")
	if len(replies) != 1 || !strings.Contains(replies[0].Text, "NEW PHONE NUMBER") {
		t.Fatalf("known identity should advance, got %+v", replies)
	}
	if sessions.GetState(11) != StateReplacePhone {
		t.Fatalf("state = %q, want phone step", sessions.GetState(11))
	}

	replies = flow.HandleText(ctx, 11, "boss", "+15557776666")
	if len(replies) != 2 || !strings.Contains(replies[0].Text, "Successfully updated") {
		t.Fatalf("update should succeed, got %+v", replies)
	}
	if flow.InProgress(11) {
		t.Fatal("session should be cleared after update")
	}

	phone, _, err := store.PhoneForIdentity(ctx, identity("swap@icloud.com"))
	if err != nil || phone != "+15557776666" {
		t.Fatalf("PhoneForIdentity = %q, %v", phone, err)
	}
}

func TestReplaceUnknownIdentityResets(t *testing.T) {
	flow, _, _ := newAdminFixture(t)

	flow.BeginReplace(12)
	replies := flow.HandleText(context.Background(), 12, "boss", "ghost@icloud.com")
	if len(replies) != 2 || !strings.Contains(replies[0].Text, "not found in registered pairs") {
		t.Fatalf("unknown identity should reset to panel, got %+v", replies)
	}
	if flow.InProgress(12) {
		t.Fatal("session should be cleared on not-found")
	}
}

func TestRemovePairFlow(t *testing.T) {
	flow, store, _ := newAdminFixture(t)
	ctx := context.Background()
	mustRegister(t, store, "bye@icloud.com", "+15550002222")

	flow.BeginRemove(13)
	replies := flow.HandleText(ctx, 13, "boss", "bye@icloud.com")
	if len(replies) != 2 || !strings.Contains(replies[0].Text, "Successfully removed") {
		t.Fatalf("remove should succeed, got %+v", replies)
	}
	if flow.InProgress(13) {
		t.Fatal("session should be cleared after removal")
	}

	exists, err := store.IdentityExists(ctx, identity("bye@icloud.com"))
	if err != nil || exists {
		t.Fatalf("IdentityExists = %v, %v", exists, err)
	}
}

func TestListPairsRendersRegistry(t *testing.T) {
	flow, store, _ := newAdminFixture(t)
	ctx := context.Background()

	replies := flow.ListPairs(ctx)
	if len(replies) != 2 || !strings.Contains(replies[0].Text, "No accounts registered yet") {
		t.Fatalf("empty registry rendering: %+v", replies)
	}

	mustRegister(t, store, "one@icloud.com", "+15550003333")
	replies = flow.ListPairs(ctx)
	if !strings.Contains(replies[0].Text, "one@icloud.com") ||
		!strings.Contains(replies[0].Text, "+15550003333") {
		t.Fatalf("listing should include the pair: %q", replies[0].Text)
	}
	if !strings.Contains(replies[1].Text, "Apple ID Admin") {
		t.Fatalf("listing should end with the panel: %q", replies[1].Text)
	}
}
