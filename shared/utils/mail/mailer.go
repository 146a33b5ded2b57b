package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"

	"go.uber.org/zap"

	"nko-map-backend/shared/config"
)

type Message struct {
	To      string
	Subject string
	Body    string
	IsHTML  bool
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender when SMTP_HOST is configured, otherwise a
// sender that only logs.
func NewSender(cfg *config.Config, logger *zap.Logger) Sender {
	if !cfg.SMTPConfigured() {
		return &LogSender{logger: logger}
	}
	return &SMTPSender{config: cfg}
}

type SMTPSender struct {
	config *config.Config
}

func (e *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%s", e.config.SMTPHost, e.config.SMTPPort)
	tlsConfig := &tls.Config{ServerName: e.config.SMTPHost}

	var (
		client *smtp.Client
		err    error
	)
	if e.config.SMTPPort == "465" {
		conn, dialErr := tls.Dial("tcp", addr, tlsConfig)
		if dialErr != nil {
			return fmt.Errorf("dial smtp: %w", dialErr)
		}
		client, err = smtp.NewClient(conn, e.config.SMTPHost)
	} else {
		client, err = smtp.Dial(addr)
	}
	if err != nil {
		return fmt.Errorf("connect smtp: %w", err)
	}
	defer client.Close()

	if e.config.SMTPUseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if e.config.SMTPUsername != "" {
		auth := smtp.PlainAuth("", e.config.SMTPUsername, e.config.SMTPPassword, e.config.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(e.config.EmailFrom); err != nil {
		return err
	}
	if err := client.Rcpt(msg.To); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(e.compose(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return client.Quit()
}

func (e *SMTPSender) compose(msg Message) []byte {
	contentType := "text/plain; charset=UTF-8"
	if msg.IsHTML {
		contentType = "text/html; charset=UTF-8"
	}

	return []byte(fmt.Sprintf("To: %s\r\n"+
		"From: %s <%s>\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: %s\r\n"+
		"\r\n"+
		"%s\r\n",
		msg.To,
		e.config.EmailFromName,
		e.config.EmailFrom,
		msg.Subject,
		contentType,
		msg.Body))
}

// LogSender is used when no SMTP server is configured.
type LogSender struct {
	logger *zap.Logger
}

func (l *LogSender) Send(_ context.Context, msg Message) error {
	logger := l.logger
	if logger == nil {
		logger = zap.L()
	}
	logger.Info("smtp not configured, email skipped",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func render(name, body string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return out.String(), nil
}
