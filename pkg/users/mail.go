package users

import (
	"context"
	"sync"
	"time"

	"github.com/nive-cms/userdb/pkg/interfaces"
)

// MailTemplate names a mail body template and its subject
type MailTemplate struct {
	Name    string `json:"name" yaml:"name" mapstructure:"name"`
	Subject string `json:"subject" yaml:"subject" mapstructure:"subject"`
}

// MailTemplates are the mails sent by account workflows. A template with an
// empty name is not sent.
type MailTemplates struct {
	Signup        MailTemplate `json:"signup" yaml:"signup" mapstructure:"signup"`
	Notify        MailTemplate `json:"notify" yaml:"notify" mapstructure:"notify"`
	Password      MailTemplate `json:"password" yaml:"password" mapstructure:"password"`
	VerifyEmail   MailTemplate `json:"verify_email" yaml:"verify_email" mapstructure:"verify_email"`
	ResetPassword MailTemplate `json:"reset_password" yaml:"reset_password" mapstructure:"reset_password"`
}

// DefaultMailTemplates returns the stock templates
func DefaultMailTemplates() MailTemplates {
	return MailTemplates{
		Signup:        MailTemplate{Name: "signup", Subject: "Signup confirmation"},
		Notify:        MailTemplate{Name: "notify", Subject: "Signup notification"},
		Password:      MailTemplate{Name: "mailpass", Subject: "Your password"},
		VerifyEmail:   MailTemplate{Name: "verifymail", Subject: "Verify your new e-mail"},
		ResetPassword: MailTemplate{Name: "resetpass", Subject: "Your new password"},
	}
}

func (t MailTemplate) message(to string, vars map[string]interface{}) interfaces.MailMessage {
	return interfaces.MailMessage{
		Template:  t.Name,
		Subject:   t.Subject,
		To:        []string{to},
		Variables: vars,
		CreatedAt: time.Now(),
	}
}

// LogMailer writes mails to the logger instead of delivering them
type LogMailer struct {
	logger interfaces.Logger
}

// NewLogMailer creates a LogMailer
func NewLogMailer(logger interfaces.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs msg
func (m *LogMailer) Send(ctx context.Context, msg interfaces.MailMessage) error {
	m.logger.Info("Mail queued", map[string]interface{}{
		"template": msg.Template,
		"subject":  msg.Subject,
		"to":       msg.To,
	})
	return nil
}

// MemoryMailer keeps sent mails in memory
type MemoryMailer struct {
	mu   sync.Mutex
	sent []interfaces.MailMessage
	err  error
}

// NewMemoryMailer creates an empty MemoryMailer
func NewMemoryMailer() *MemoryMailer {
	return &MemoryMailer{}
}

// Send records msg, or fails with the configured error
func (m *MemoryMailer) Send(ctx context.Context, msg interfaces.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// FailWith makes subsequent sends fail with err
func (m *MemoryMailer) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Sent returns the recorded mails
func (m *MemoryMailer) Sent() []interfaces.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interfaces.MailMessage(nil), m.sent...)
}

// Last returns the most recent mail
func (m *MemoryMailer) Last() (interfaces.MailMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return interfaces.MailMessage{}, false
	}
	return m.sent[len(m.sent)-1], true
}
