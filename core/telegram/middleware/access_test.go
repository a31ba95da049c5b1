package middleware

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestNewAdminOptionsNormalizesHandles(t *testing.T) {
	opts := NewAdminOptions([]string{"@Boss", "  ", "second"}, []int64{0, 77}, nil)

	if _, ok := opts.Handles["boss"]; !ok {
		t.Error("handle should be lowercased with '@' stripped")
	}
	if _, ok := opts.Handles["second"]; !ok {
		t.Error("plain handle should be kept")
	}
	if len(opts.Handles) != 2 {
		t.Errorf("Handles = %v, want 2 entries", opts.Handles)
	}
	if _, ok := opts.IDs[0]; ok {
		t.Error("zero id must be dropped")
	}
	if _, ok := opts.IDs[77]; !ok {
		t.Error("non-zero id should be kept")
	}
}

func TestIsAdmin(t *testing.T) {
	opts := NewAdminOptions([]string{"boss"}, []int64{77}, nil)

	cases := []struct {
		name string
		user *tele.User
		want bool
	}{
		{"nil user", nil, false},
		{"by handle", &tele.User{ID: 1, Username: "BOSS"}, true},
		{"by id", &tele.User{ID: 77}, true},
		{"unknown", &tele.User{ID: 2, Username: "someone"}, false},
		{"empty username", &tele.User{ID: 3}, false},
	}
	for _, tc := range cases {
		if got := opts.IsAdmin(tc.user); got != tc.want {
			t.Errorf("%s: IsAdmin = %v, want %v", tc.name, got, tc.want)
		}
	}
}
