// Package flow implements the conversation state machines: identity
// verification for ordinary users and multi-step registry edits for admins.
// Flows return explicit Reply values; rendering them is the transport
// adapter's job, which keeps the machines testable without a live bot.
package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/appleidbot/bot/domain"
)

// Keyboard is a logical keyboard hint attached to a reply. The transport
// layer decides how to render it.
type Keyboard int

const (
	// KeyboardKeep leaves the current keyboard untouched.
	KeyboardKeep Keyboard = iota
	// KeyboardRemove hides any custom keyboard.
	KeyboardRemove
	// KeyboardChooseIdentity offers the use-existing / enter-new options.
	KeyboardChooseIdentity
)

// Reply is one outbound message produced by a flow step.
type Reply struct {
	Text     string
	Keyboard Keyboard
}

// Button labels for the identity choice keyboard. Telegram reply keyboards
// echo the label back as plain text, so these double as transition triggers.
const (
	BtnUseExisting = "Use existing Apple ID"
	BtnEnterNew    = "Enter new Apple ID"
)

// UserMenu lists the commands available to regular users.
func UserMenu() Reply {
	return Reply{Text: "🛠 Available Command:\n/get_verification - Get verification"}
}

// AdminMenu lists the commands available to admins.
func AdminMenu() Reply {
	return Reply{Text: "🛠 Available Commands:\n" +
		"/get_verification - Get verification\n\n" +
		"🔧 Admin Commands:\n" +
		"/appleid_admin - Apple ID management"}
}

// AdminPanel is the Apple ID management menu.
func AdminPanel() Reply {
	return Reply{Text: "🍎 Apple ID Admin:\n\n" +
		"🔧 /register_pair - Register Apple ID + phone\n" +
		"🔄 /replace_phone - Update phone number\n" +
		"🗑 /remove_pair - Remove a pair\n" +
		"📋 /list_pairs - View all pairs\n" +
		"🔙 /back - Main menu"}
}

// RenderPairs formats the registry listing shown to admins.
func RenderPairs(pairs []domain.RegisteredPair) Reply {
	if len(pairs) == 0 {
		return Reply{Text: "ℹ️ No accounts registered yet"}
	}
	var b strings.Builder
	b.WriteString("📋 Registered Accounts:\n\n")
	for i, p := range pairs {
		fmt.Fprintf(&b, "%d. 🆔 Apple ID: %s\n", i+1, p.AppleID)
		fmt.Fprintf(&b, "   📞 Phone: %s\n", p.Phone)
		fmt.Fprintf(&b, "   👤 Added by: %s\n", p.AddedBy)
		fmt.Fprintf(&b, "   🕒 Added: %s\n", p.AddedAt.Format(time.RFC3339))
		if p.LastUpdated != nil {
			fmt.Fprintf(&b, "   🔄 Updated: %s\n", p.LastUpdated.Format(time.RFC3339))
		}
		b.WriteString("\n")
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n")}
}
