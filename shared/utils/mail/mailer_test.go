package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"nko-map-backend/shared/config"
)

type captureSender struct {
	sent []Message
}

func (c *captureSender) Send(_ context.Context, msg Message) error {
	c.sent = append(c.sent, msg)
	return nil
}

func TestSendPasswordReset(t *testing.T) {
	sender := &captureSender{}
	mailer := NewMailer(sender, "https://nko.example")

	require.NoError(t, mailer.SendPasswordReset(context.Background(), "alice@x.com", "Alice", "tok123", 60))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	require.Equal(t, "alice@x.com", msg.To)
	require.True(t, msg.IsHTML)
	require.Contains(t, msg.Body, "https://nko.example/reset-password?token=tok123")
	require.Contains(t, msg.Body, "60 минут")
}

func TestSendModerationDecision(t *testing.T) {
	sender := &captureSender{}
	mailer := NewMailer(sender, "https://nko.example")

	require.NoError(t, mailer.SendModerationDecision(context.Background(), "alice@x.com", "Alice", "Зелёный город", false, "incomplete"))
	require.NoError(t, mailer.SendModerationDecision(context.Background(), "alice@x.com", "Alice", "Зелёный город", true, ""))
	require.Len(t, sender.sent, 2)

	require.Contains(t, sender.sent[0].Subject, "отклонена")
	require.Contains(t, sender.sent[0].Body, "incomplete")
	require.Contains(t, sender.sent[1].Subject, "одобрена")
	require.NotContains(t, sender.sent[1].Body, "Причина")
}

func TestNewSenderWithoutSMTPLogsOnly(t *testing.T) {
	sender := NewSender(&config.Config{}, nil)
	_, ok := sender.(*LogSender)
	require.True(t, ok)
	require.NoError(t, sender.Send(context.Background(), Message{To: "a@b.c"}))
}

func TestComposeHeaders(t *testing.T) {
	s := &SMTPSender{config: &config.Config{EmailFrom: "noreply@nko.ru", EmailFromName: "Карта НКО"}}
	raw := string(s.compose(Message{To: "a@b.c", Subject: "Hi", Body: "text"}))

	require.Contains(t, raw, "To: a@b.c\r\n")
	require.Contains(t, raw, "From: Карта НКО <noreply@nko.ru>\r\n")
	require.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8\r\n")
}
