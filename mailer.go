package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/wneessen/go-mail"
)

// SMTPConfig carries the connection options for the SMTP backed mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool
}

// SMTPMailer delivers messages through an SMTP relay using go-mail.
type SMTPMailer struct {
	client *mail.Client
	logger Logger
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer connects the client options; the connection itself is
// established per send.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	if cfg.SSL {
		opts = append(opts, mail.WithSSLPort(false))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to configure SMTP client")
	}

	return &SMTPMailer{
		client: client,
		logger: defLogger{},
	}, nil
}

func (m *SMTPMailer) WithLogger(logger Logger) *SMTPMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Send delivers a single message. Errors are classified as notification
// failures so flows with a notify-or-fail contract can propagate them.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	out := mail.NewMsg()

	if err := out.From(msg.From); err != nil {
		return errors.Wrap(err, ErrNotificationFailure.Category, ErrNotificationFailure.Message).
			WithTextCode(ErrNotificationFailure.TextCode)
	}

	if err := out.To(msg.To); err != nil {
		return errors.Wrap(err, ErrNotificationFailure.Category, ErrNotificationFailure.Message).
			WithTextCode(ErrNotificationFailure.TextCode)
	}

	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextHTML, msg.HTML)

	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		m.logger.Error("SMTP send failed", "to", msg.To, "error", err)
		return errors.Wrap(err, ErrNotificationFailure.Category, ErrNotificationFailure.Message).
			WithTextCode(ErrNotificationFailure.TextCode)
	}

	return nil
}
