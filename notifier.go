package auth

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/goliatone/go-errors"
)

// Subjects for the stock notification emails.
const (
	SubjectConfirm              = "Confirm your email address"
	SubjectActive               = "Your account is now fully active"
	SubjectPasswordReset        = "Please confirm your password reset request"
	SubjectPasswordResetConfirm = "Your password has been reset"
	SubjectPasswordChanged      = "Your password has been changed"
)

var defaultEmailTemplates = map[string]string{
	"confirm": `<html><body>
<p>Hi {{.User.FirstName}},</p>
<p>Welcome to {{.Site.Name}}. Please confirm your email address by following the link below.</p>
<p><a href="{{.ActivationLink}}">Activate your account</a></p>
</body></html>`,
	"active": `<html><body>
<p>Hi {{.User.FirstName}},</p>
<p>Your {{.Site.Name}} account is now fully active.</p>
</body></html>`,
	"password_reset": `<html><body>
<p>Hi {{.User.FirstName}},</p>
<p>A password reset was requested for your {{.Site.Name}} account. Follow the link below to confirm.</p>
<p><a href="{{.ResetLink}}">Reset your password</a></p>
<p>If you did not request this you can ignore this email.</p>
</body></html>`,
	"password_reset_confirm": `<html><body>
<p>Hi {{.User.FirstName}},</p>
<p>Your {{.Site.Name}} password has been reset. Your new password is:</p>
<p><code>{{.Password}}</code></p>
<p>Please change it after your next login.</p>
</body></html>`,
	"password_change": `<html><body>
<p>Hi {{.User.FirstName}},</p>
<p>Your {{.Site.Name}} password has been changed. If this was not you, reset it immediately.</p>
</body></html>`,
}

// notifyContext is the data handed to every email template.
type notifyContext struct {
	User           *User
	Site           SiteConfig
	ActivationLink string
	ResetLink      string
	Password       string
}

// Notifier renders and delivers the module's stock emails through the
// Mailer collaborator. Template bodies can be replaced per deployment.
type Notifier struct {
	mailer    Mailer
	cfg       Config
	basePath  string
	templates map[string]*template.Template
	logger    Logger
}

// NewNotifier compiles the default templates. basePath is the route
// prefix the auth endpoints are mounted on, used for link generation.
func NewNotifier(mailer Mailer, cfg Config, basePath string) (*Notifier, error) {
	if basePath == "" {
		basePath = "/auth"
	}

	n := &Notifier{
		mailer:    mailer,
		cfg:       cfg,
		basePath:  basePath,
		templates: make(map[string]*template.Template, len(defaultEmailTemplates)),
		logger:    defLogger{},
	}

	for name, body := range defaultEmailTemplates {
		if err := n.SetTemplate(name, body); err != nil {
			return nil, err
		}
	}

	return n, nil
}

func (n *Notifier) WithLogger(logger Logger) *Notifier {
	if logger != nil {
		n.logger = logger
	}
	return n
}

// SetTemplate replaces a stock template body.
func (n *Notifier) SetTemplate(name, body string) error {
	tmpl, err := template.New(name).Parse(body)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to parse email template").
			WithMetadata(map[string]any{"template": name})
	}
	n.templates[name] = tmpl
	return nil
}

// ConfirmationRequest emails the activation link embedding the user's
// perishable token.
func (n *Notifier) ConfirmationRequest(ctx context.Context, user *User, perishableToken string) error {
	link := fmt.Sprintf(
		"%s%s/activate?token=%s&redirect_to=%s",
		n.cfg.Site.URL, n.basePath, perishableToken, n.cfg.Site.URL,
	)
	return n.send(ctx, "confirm", SubjectConfirm, user, notifyContext{
		User:           user,
		ActivationLink: link,
	})
}

// AccountActive confirms a completed activation.
func (n *Notifier) AccountActive(ctx context.Context, user *User) error {
	return n.send(ctx, "active", SubjectActive, user, notifyContext{User: user})
}

// PasswordResetRequest emails the reset link embedding the fresh
// perishable token.
func (n *Notifier) PasswordResetRequest(ctx context.Context, user *User, perishableToken string) error {
	link := fmt.Sprintf(
		"%s%s/password_reset_confirm?token=%s&redirect_to=%s",
		n.cfg.Site.URL, n.basePath, perishableToken, n.cfg.Site.URL,
	)
	return n.send(ctx, "password_reset", SubjectPasswordReset, user, notifyContext{
		User:      user,
		ResetLink: link,
	})
}

// PasswordResetConfirm emails the generated replacement password.
func (n *Notifier) PasswordResetConfirm(ctx context.Context, user *User, plaintext string) error {
	return n.send(ctx, "password_reset_confirm", SubjectPasswordResetConfirm, user, notifyContext{
		User:     user,
		Password: plaintext,
	})
}

// PasswordChanged confirms an authenticated password change.
func (n *Notifier) PasswordChanged(ctx context.Context, user *User) error {
	return n.send(ctx, "password_change", SubjectPasswordChanged, user, notifyContext{User: user})
}

func (n *Notifier) send(ctx context.Context, name, subject string, user *User, data notifyContext) error {
	tmpl, ok := n.templates[name]
	if !ok {
		return errors.New("unknown email template", errors.CategoryInternal).
			WithMetadata(map[string]any{"template": name})
	}

	data.Site = n.cfg.Site

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to render email template").
			WithMetadata(map[string]any{"template": name})
	}

	msg := Message{
		To:      user.Email,
		From:    n.cfg.EmailFrom,
		Subject: subject,
		HTML:    buf.String(),
	}

	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.Error("notification delivery failed", "template", name, "to", user.Email, "error", err)
		if IsNotificationError(err) {
			return err
		}
		return errors.Wrap(err, ErrNotificationFailure.Category, ErrNotificationFailure.Message).
			WithTextCode(ErrNotificationFailure.TextCode)
	}

	return nil
}

// IsNotificationError reports whether err is a classified delivery failure.
func IsNotificationError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeNotification
}
