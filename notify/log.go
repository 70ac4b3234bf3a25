// Package notify delivers account emails: directly over SMTP, as events
// on a RabbitMQ exchange for a mail worker, or only to the log.
package notify

import (
	"context"
	"net/url"

	"github.com/rs/zerolog"
)

// LogNotifier writes what would have been sent to the log. Verification
// links are logged without their token.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendWelcome(_ context.Context, email, fullName string) error {
	n.log.Info().Str("to", email).Str("name", fullName).Msg("welcome email")
	return nil
}

func (n *LogNotifier) SendVerification(_ context.Context, email, fullName, link string) error {
	n.log.Info().Str("to", email).Str("name", fullName).Str("link", redactLink(link)).Msg("verification email")
	return nil
}

func (n *LogNotifier) Close() error { return nil }

func redactLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return "<invalid link>"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
