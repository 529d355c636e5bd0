package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendgridSender delivers email through SendGrid.
type SendgridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

var _ EmailSender = (*SendgridSender)(nil)

// NewSendgridSender creates an email sender.
func NewSendgridSender(apiKey, fromName, fromEmail string) *SendgridSender {
	return &SendgridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   sgmail.NewEmail(fromName, fromEmail),
	}
}

// Send delivers a single HTML email.
func (s *SendgridSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := sgmail.NewSingleEmail(s.from, subject, sgmail.NewEmail("", to), subject, htmlBody)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: send failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: send failed (%d): %s", resp.StatusCode, resp.Body)
	}
	return nil
}
