package mailgunmail

import (
	"context"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/pkg/errors"

	"github.com/icellshop/labelbox/internal/integrations/mail"
)

type Client struct {
	mg   *mailgun.MailgunImpl
	from string
}

func New(domain, apiKey, from string) *Client {
	return &Client{
		mg:   mailgun.NewMailgun(domain, apiKey),
		from: from,
	}
}

func (c *Client) Send(ctx context.Context, msg mail.Message) (mail.Result, error) {
	if msg.To == "" {
		return mail.Result{}, errors.New("recipient is required")
	}

	m := c.mg.NewMessage(c.from, msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		m.SetHtml(msg.HTML)
	}
	if len(msg.Attachment) > 0 {
		name := msg.AttachmentName
		if name == "" {
			name = "etiqueta.pdf"
		}
		m.AddBufferAttachment(name, msg.Attachment)
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, id, err := c.mg.Send(sendCtx, m)
	if err != nil {
		return mail.Result{}, errors.Wrap(err, "mailgun send")
	}
	return mail.Result{ID: id, Message: resp}, nil
}
