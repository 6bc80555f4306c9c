package notifier

import (
	"fmt"

	"github.com/ibeckermayer/commentcrawl/internal/config"
	"github.com/ibeckermayer/commentcrawl/internal/notifier/providers"
	"github.com/ibeckermayer/commentcrawl/internal/report"
)

// Notifier handles sending report notifications
type Notifier struct {
	sender Sender
	to     string
}

// Sender defines the interface for email sending
type Sender interface {
	Send(to, subject, htmlBody, plainBody string) error
}

// New creates a new notifier that mails reports to the given address
func New(sender Sender, to string) *Notifier {
	return &Notifier{sender: sender, to: to}
}

// NewFromConfig creates a notifier based on configuration
func NewFromConfig(cfg config.EmailConfig) (*Notifier, error) {
	var sender Sender

	switch cfg.Provider {
	case "smtp", "":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("email.smtp_host is required")
		}
		sender = providers.NewSMTPSender(
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUser,
			cfg.SMTPPass,
			cfg.FromAddr,
		)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}

	return New(sender, cfg.ToAddr), nil
}

// SendReport mails a hierarchy report
func (n *Notifier) SendReport(r *report.Report) error {
	if n.to == "" {
		return fmt.Errorf("no recipient configured")
	}
	return n.sender.Send(n.to, r.Subject, r.HTMLBody, r.PlainBody)
}
