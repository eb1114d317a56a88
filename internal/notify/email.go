package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/go-faster/errors"
)

// Email delivers alerts over SMTP. No mail library is used: the message is a
// plain-text RFC 5322 body and stdlib smtp covers AUTH PLAIN.
type Email struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
}

// NewEmail creates an Email target. auth may be nil for unauthenticated
// relays.
func NewEmail(addr string, auth smtp.Auth, from string, to []string) *Email {
	return &Email{addr: addr, auth: auth, from: from, to: to}
}

func (e *Email) Name() string { return "email" }

// Send mails the message to all recipients. net/smtp has no context support,
// so cancellation is checked up front and the dial relies on the dispatcher's
// timeout being generous enough.
func (e *Email) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		e.from, strings.Join(e.to, ", "), msg.Subject, msg.Body)

	if err := smtp.SendMail(e.addr, e.auth, e.from, e.to, []byte(body)); err != nil {
		return errors.Wrap(err, "send mail")
	}
	return nil
}
