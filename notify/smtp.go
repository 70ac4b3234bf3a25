package notify

import (
	"context"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPNotifier struct {
	dialer mailSender
	from   string
}

func NewSMTPNotifier(host string, port int, user, password, from string) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (n *SMTPNotifier) SendWelcome(ctx context.Context, email, fullName string) error {
	body := fmt.Sprintf(`
		<h2>Welcome, %s!</h2>
		<p>Your account has been created and is ready to use.</p>
	`, html.EscapeString(fullName))

	if err := n.send(ctx, email, "Welcome!", body); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) SendVerification(ctx context.Context, email, fullName, link string) error {
	body := fmt.Sprintf(`
		<h3>Hi %s,</h3>
		<p>Please confirm your email address by following the link below.</p>
		<p><a href="%s">Verify my email</a></p>
		<p>The link can be used once. If you did not create an account, you can ignore this email.</p>
	`, html.EscapeString(fullName), html.EscapeString(link))

	if err := n.send(ctx, email, "Verify your email address", body); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) Close() error { return nil }

// send gives up before dialing when ctx is already done; gomail itself
// has no cancellation.
func (n *SMTPNotifier) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	return n.dialer.DialAndSend(m)
}
