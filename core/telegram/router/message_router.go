package router

import (
	"time"

	tg "github.com/m3rciful/appleidbot/core/telegram"
	"github.com/m3rciful/appleidbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// SessionBinding attaches an in-progress conversation check to its handler.
// Bindings are consulted in order; the first one that reports an active
// conversation for the update wins. This lets a bot route admin dialogues
// (keyed by sender) ahead of user dialogues (keyed by chat).
type SessionBinding struct {
	Name       string
	InProgress func(c tele.Context) bool
	Handle     tele.HandlerFunc
}

func dispatchSession(c tele.Context, bindings []SessionBinding, start time.Time) (bool, error) {
	for _, b := range bindings {
		if b.InProgress == nil || b.Handle == nil || !b.InProgress(c) {
			continue
		}
		name := b.Name
		if name == "" {
			name = "fsm"
		}
		err := handleWithSummary(c, name, start, "", "", func() error {
			return b.Handle(c)
		})
		return true, err
	}
	return false, nil
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds handlers for text and document routing.
// Precedence: active conversations, then registered text commands, then the
// registry text fallback, then the unknown-text handler.
func TextRoutes(bindings []SessionBinding, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if handled, err := dispatchSession(c, bindings, start); handled {
			return err
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := time.Now()
		if handled, err := dispatchSession(c, bindings, start); handled {
			return err
		}
		if opts.UnknownDocument != nil {
			return handleWithSummary(c, "unexpected_document", start, "", "", func() error {
				return opts.UnknownDocument(c)
			})
		}
		logHandlerSummary(c, "unexpected_document", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}
