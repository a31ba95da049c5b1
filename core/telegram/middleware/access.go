package middleware

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
// A sender is an admin when its username is in Handles (case-insensitive,
// leading '@' ignored) or its numeric ID is in IDs.
type AdminOptions struct {
	Handles  map[string]struct{}
	IDs      map[int64]struct{}
	OnReject tele.HandlerFunc
}

// NewAdminOptions normalizes raw handle and id lists into AdminOptions.
func NewAdminOptions(handles []string, ids []int64, onReject tele.HandlerFunc) AdminOptions {
	opts := AdminOptions{
		Handles:  make(map[string]struct{}, len(handles)),
		IDs:      make(map[int64]struct{}, len(ids)),
		OnReject: onReject,
	}
	for _, h := range handles {
		h = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
		if h == "" {
			continue
		}
		opts.Handles[h] = struct{}{}
	}
	for _, id := range ids {
		if id == 0 {
			continue
		}
		opts.IDs[id] = struct{}{}
	}
	return opts
}

// IsAdmin reports whether the given user belongs to the admin sets.
func (o AdminOptions) IsAdmin(user *tele.User) bool {
	if user == nil {
		return false
	}
	if _, ok := o.IDs[user.ID]; ok {
		return true
	}
	if user.Username == "" {
		return false
	}
	_, ok := o.Handles[strings.ToLower(user.Username)]
	return ok
}

// AdminOnlyMiddleware ensures that only admin users can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.IsAdmin(c.Sender()) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
