package storage

import (
	"context"
	"testing"
)

func TestAddPairRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.AddPair(ctx, "john@x.com", "+15551234567", "admin")
	if err != nil || !ok {
		t.Fatalf("first AddPair = (%v, %v), expected (true, nil)", ok, err)
	}
	ok, err = s.AddPair(ctx, "john@x.com", "+15557654321", "admin")
	if err != nil {
		t.Fatalf("second AddPair err: %v", err)
	}
	if ok {
		t.Fatal("duplicate identity accepted")
	}
}

func TestIdentityLookupIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.AddPair(ctx, "A@B.com", "+15551234567", "admin"); err != nil {
		t.Fatalf("add: %v", err)
	}

	exists, err := s.IdentityExists(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("lowercase query did not find mixed-case identity")
	}

	phone, found, err := s.PhoneForIdentity(ctx, "A@B.COM")
	if err != nil || !found {
		t.Fatalf("PhoneForIdentity = (%q, %v, %v)", phone, found, err)
	}
	if phone != "+15551234567" {
		t.Fatalf("phone = %q", phone)
	}

	ok, err := s.AddPair(ctx, "a@B.Com", "+15550000000", "admin")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if ok {
		t.Fatal("case variant registered as a second pair")
	}
}

func TestUpdateAndRemovePair(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if ok, _ := s.UpdatePhone(ctx, "nobody@x.com", "+1234567890"); ok {
		t.Fatal("update of missing identity reported success")
	}
	if ok, _ := s.RemovePair(ctx, "nobody@x.com"); ok {
		t.Fatal("removal of missing identity reported success")
	}

	_, _ = s.AddPair(ctx, "john@x.com", "+15551234567", "admin")
	ok, err := s.UpdatePhone(ctx, "JOHN@X.COM", "+19998887777")
	if err != nil || !ok {
		t.Fatalf("UpdatePhone = (%v, %v)", ok, err)
	}

	pairs, err := s.ListPairs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d", len(pairs))
	}
	if pairs[0].Phone != "+19998887777" {
		t.Fatalf("phone after update = %q", pairs[0].Phone)
	}
	if pairs[0].LastUpdated == nil {
		t.Fatal("LastUpdated not stamped on update")
	}

	ok, err = s.RemovePair(ctx, "john@x.com")
	if err != nil || !ok {
		t.Fatalf("RemovePair = (%v, %v)", ok, err)
	}
	if exists, _ := s.IdentityExists(ctx, "john@x.com"); exists {
		t.Fatal("identity still present after removal")
	}
}

func TestVerifiedUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, found, _ := s.VerifiedIdentity(ctx, 42); found {
		t.Fatal("unexpected verified identity for fresh store")
	}

	if _, err := s.SetVerifiedUser(ctx, 42, "john@x.com"); err != nil {
		t.Fatalf("set: %v", err)
	}
	id, found, err := s.VerifiedIdentity(ctx, 42)
	if err != nil || !found {
		t.Fatalf("VerifiedIdentity = (%q, %v, %v)", id, found, err)
	}
	if id.String() != "john@x.com" {
		t.Fatalf("identity = %q", id)
	}

	// Overwrite keeps one record per chat.
	if _, err := s.SetVerifiedUser(ctx, 42, "jane@x.com"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	id, _, _ = s.VerifiedIdentity(ctx, 42)
	if id.String() != "jane@x.com" {
		t.Fatalf("identity after overwrite = %q", id)
	}

	ok, err := s.RemoveVerified(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("RemoveVerified = (%v, %v)", ok, err)
	}
	if _, found, _ := s.VerifiedIdentity(ctx, 42); found {
		t.Fatal("verified identity survived removal")
	}
}
