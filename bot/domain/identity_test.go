package domain

import "testing"

func TestParseIdentity(t *testing.T) {
	valid := []string{
		"a@b.com",
		"john.doe@icloud.com",
		"user+tag@mail.example.org",
		"UPPER@CASE.COM",
		"x_%-9@sub.domain.net",
	}
	for _, in := range valid {
		if _, err := ParseIdentity(in); err != nil {
			t.Errorf("ParseIdentity(%q) = %v, expected ok", in, err)
		}
	}

	invalid := []string{
		"",
		"plainstring",
		"missing-at.com",
		"no-dot@domain",
		"two@@signs.com",
		"spaces in@local.com",
		"@nolocal.com",
		"nodomain@",
		"trailing@dot.",
	}
	for _, in := range invalid {
		if _, err := ParseIdentity(in); err == nil {
			t.Errorf("ParseIdentity(%q) accepted, expected rejection", in)
		}
	}
}

func TestIdentityFold(t *testing.T) {
	a, err := ParseIdentity("John.Doe@ICloud.com")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b, err := ParseIdentity("john.doe@icloud.com")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Fold() != b.Fold() {
		t.Fatalf("folded forms differ: %q vs %q", a.Fold(), b.Fold())
	}
	if a.String() != "John.Doe@ICloud.com" {
		t.Fatalf("identity mutated original casing: %q", a.String())
	}
}

func TestValidatePhone(t *testing.T) {
	if err := ValidatePhone("+15551234567"); err != nil {
		t.Fatalf("valid phone rejected: %v", err)
	}
	for _, in := range []string{"15551234567", "12345", ""} {
		if err := ValidatePhone(in); err != ErrPhonePrefix {
			t.Errorf("ValidatePhone(%q) = %v, want ErrPhonePrefix", in, err)
		}
	}
	for _, in := range []string{"+123", "+15551"} {
		if err := ValidatePhone(in); err != ErrPhoneLength {
			t.Errorf("ValidatePhone(%q) = %v, want ErrPhoneLength", in, err)
		}
	}
}
