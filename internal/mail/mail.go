// Package mail renders chase reminders and delivers them through a
// configurable sink.
package mail

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Email tones understood by Compose.
const (
	TonePolite = "polite"
	ToneFirm   = "firm"
)

// Email is one outbound message.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// Compose renders subject and body for a tone around an invoice context
// line. Unknown tones fall back to polite.
func Compose(tone, context string) (string, string) {
	switch tone {
	case TonePolite:
		return "Friendly Reminder: Payment Due",
			fmt.Sprintf("Dear Client,\n\nThis is a friendly reminder regarding %s. "+
				"We hope this message finds you well.\n\n"+
				"We wanted to gently remind you that payment is now due. "+
				"We appreciate your prompt attention to this matter.\n\n"+
				"Thank you for your business!\n\nBest regards,\nGigPilot", context)
	case ToneFirm:
		return "Urgent: Payment Required",
			fmt.Sprintf("Dear Client,\n\nThis is an urgent reminder regarding %s. "+
				"Payment is now overdue and requires immediate attention.\n\n"+
				"We have previously sent reminders, and we need to receive "+
				"payment as soon as possible. Please arrange payment "+
				"immediately to avoid further action.\n\n"+
				"We look forward to resolving this matter promptly.\n\n"+
				"Best regards,\nGigPilot", context)
	default:
		log.Warn().Str("tone", tone).Msg("unknown email tone, defaulting to polite")
		return Compose(TonePolite, context)
	}
}

// LogSender writes messages to the log instead of delivering them. This is
// the sink when no webhook is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, email Email) error {
	preview := email.Body
	if len(preview) > 100 {
		preview = preview[:100]
	}
	log.Info().
		Str("to", email.To).
		Str("subject", email.Subject).
		Str("preview", preview).
		Msg("email delivered to log sink")
	return nil
}
