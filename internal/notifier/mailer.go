package notifier

import (
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config holds SMTP settings for outgoing mail.
type Config struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
	FromName string
	BaseURL  string // public base URL used to build links in mail bodies
}

// Mailer sends account mail. Callers treat delivery as fire-and-forget:
// the Async methods run in a goroutine and only log failures.
type Mailer struct {
	cfg    Config
	auth   smtp.Auth
	logger *logrus.Logger
}

func NewMailer(cfg Config, logger *logrus.Logger) *Mailer {
	if logger == nil {
		logger = logrus.New()
	}
	var auth smtp.Auth
	if cfg.Username != "" || cfg.Password != "" {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host = cfg.Addr
		}
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return &Mailer{cfg: cfg, auth: auth, logger: logger}
}

// SendConfirmationAsync mails an email-confirmation link.
func (m *Mailer) SendConfirmationAsync(email, username, token string) {
	link := fmt.Sprintf("%s/api/users/confirmed_email/%s", strings.TrimRight(m.cfg.BaseURL, "/"), token)
	body := fmt.Sprintf("Hi %s,\n\nPlease confirm your email address by opening the link below:\n\n%s\n", username, link)
	m.sendAsync(email, "Confirm your email", body)
}

// SendPasswordResetAsync mails a password-reset link.
func (m *Mailer) SendPasswordResetAsync(email, username, token string) {
	link := fmt.Sprintf("%s/api/users/reset_password/%s", strings.TrimRight(m.cfg.BaseURL, "/"), token)
	body := fmt.Sprintf("Hi %s,\n\nTo reset your password, open the link below:\n\n%s\n\nIf you did not request this, ignore this message.\n", username, link)
	m.sendAsync(email, "Reset your password", body)
}

func (m *Mailer) sendAsync(to, subject, body string) {
	go func() {
		if err := m.send(to, subject, body); err != nil {
			m.logger.Warnf("send mail to %s: %v", to, err)
		}
	}()
}

func (m *Mailer) send(to, subject, body string) error {
	if m.cfg.Addr == "" {
		return fmt.Errorf("smtp address not configured")
	}

	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}
	msg := []byte(
		"From: " + from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"\r\n" + body + "\r\n")

	if err := smtp.SendMail(m.cfg.Addr, m.auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
