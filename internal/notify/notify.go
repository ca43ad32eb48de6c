// Package notify предоставляет клиент для отправки уведомлений по e-mail.
package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Client инкапсулирует отправку писем через SendGrid.
type Client struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

// NewClient создаёт клиент отправки уведомлений с указанным API-ключом и
// адресом отправителя.
func NewClient(apiKey, from string) *Client {
	return &Client{
		client:   sendgrid.NewSendClient(apiKey),
		from:     from,
		fromName: "Market",
	}
}

// Send отправляет письмо указанному получателю. Ошибка отправки не влияет
// на бизнес-операцию, вызвавшую уведомление: вызывающая сторона обязана
// лишь залогировать её.
func (c *Client) Send(ctx context.Context, recipient, subject, message string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("notify client not configured")
	}

	from := mail.NewEmail(c.fromName, c.from)
	to := mail.NewEmail("", recipient)
	email := mail.NewSingleEmail(from, subject, to, message, message)

	resp, err := c.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("send email: unexpected status %d", resp.StatusCode)
	}

	return nil
}
