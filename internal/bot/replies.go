package bot

import (
	"fmt"
	"strings"
	"time"

	"bookline/internal/models"
)

const (
	replyWelcome = "Hi! 👋 Welcome to our booking assistant.\n\nReply 1 to book an appointment."

	replyNoServices = "Sorry, there are no services available for booking right now."

	replySelectDate = "Great! Now send me the date you'd like, in DD/MM/YYYY format (for example 20/02/2026)."

	replyInvalidDate = "I couldn't read that date. Please send it as DD/MM/YYYY (for example 20/02/2026)."

	replyNoSlots = "There are no available times on that date. Please send a different date (DD/MM/YYYY)."

	replyConfirmPrompt = "Reply 1 to confirm or 2 to cancel."

	replySlotTaken = "Sorry, that time is no longer available. 😔\n\nPlease send a different date (DD/MM/YYYY) and I'll show you the current times."

	replyCancelled = "No problem, your booking was cancelled. Reply 1 whenever you want to start again."

	replyTryAgain = "Something went wrong on our side. Please try again in a moment."

	// ReplySlowDown is sent by the dispatcher when a phone number trips the
	// per-window message limit, before the engine ever sees the turn.
	ReplySlowDown = "You're sending messages a little too fast. Please wait a moment and try again."
)

func serviceListReply(services []models.ServiceOption) string {
	var b strings.Builder
	b.WriteString("Which service would you like? Reply with the number:\n")
	for i, svc := range services {
		fmt.Fprintf(&b, "\n%d. %s", i+1, svc.Name)
	}
	return b.String()
}

func slotListReply(slots []string, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("Here are the available times. Reply with the number:\n")
	for i, raw := range slots {
		fmt.Fprintf(&b, "\n%d. %s", i+1, formatSlot(raw, loc))
	}
	return b.String()
}

func confirmReply(serviceName, slot string, loc *time.Location) string {
	return fmt.Sprintf("You picked %s at %s.\n\n%s", serviceName, formatSlot(slot, loc), replyConfirmPrompt)
}

func bookedReply(appointmentID string) string {
	return fmt.Sprintf("You're booked! ✅\n\nYour booking reference is %s. We'll be in touch to confirm.", appointmentID)
}

// formatSlot renders a stored RFC3339 UTC start time as a local wall-clock
// time. Unparseable values fall back to the raw string rather than hiding
// the option.
func formatSlot(raw string, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("Mon 02/01/2006 15:04")
}
