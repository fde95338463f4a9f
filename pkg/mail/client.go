package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/gathergrid/gathergrid-backend/pkg/config"
	"github.com/gathergrid/gathergrid-backend/pkg/errors"
)

// Attachment is a file delivered alongside a message, most commonly a
// rendered PDF receipt or ticket.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single outbound email.
type Message struct {
	To          string
	ToName      string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client sends mail through SendGrid.
type Client struct {
	sg       *sendgrid.Client
	from     string
	fromName string
	cfg      config.SendgridConfig
}

// NewClient builds a SendGrid-backed Sender from config.
func NewClient(cfg config.SendgridConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.CodeInternal, "sendgrid api key is required")
	}
	if cfg.DefaultFrom == "" {
		return nil, errors.New(errors.CodeInternal, "sendgrid default from address is required")
	}

	return &Client{
		sg:       sendgrid.NewSendClient(cfg.APIKey),
		from:     cfg.DefaultFrom,
		fromName: cfg.FromName,
		cfg:      cfg,
	}, nil
}

// Send dispatches a single message. Failures surface as dependency errors
// so callers can treat delivery as retryable.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New(errors.CodeValidation, "recipient address is required")
	}
	if msg.Subject == "" {
		return errors.New(errors.CodeValidation, "subject is required")
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(c.fromName, c.from))
	m.Subject = msg.Subject

	p := sgmail.NewPersonalization()
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", msg.HTMLBody))

	for _, att := range msg.Attachments {
		a := sgmail.NewAttachment()
		a.SetFilename(att.Filename)
		a.SetType(att.ContentType)
		a.SetContent(base64.StdEncoding.EncodeToString(att.Data))
		a.SetDisposition("attachment")
		m.AddAttachment(a)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.sg.SendWithContext(ctx, m)
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "sendgrid send failed").
			WithDetails(map[string]any{"recipient": msg.To})
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.New(errors.CodeDependency, "sendgrid rejected message").
			WithDetails(map[string]any{
				"recipient": msg.To,
				"status":    fmt.Sprintf("%d", resp.StatusCode),
			})
	}

	return nil
}
