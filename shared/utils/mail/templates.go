package mail

import (
	"context"
	"fmt"
)

const passwordResetTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Восстановление пароля</title></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
    <p>Здравствуйте, {{.UserName}}!</p>
    <p>Мы получили запрос на восстановление пароля на Карте НКО. Чтобы задать новый пароль, перейдите по ссылке:</p>
    <p><a href="{{.ResetURL}}">{{.ResetURL}}</a></p>
    <p>Ссылка действительна {{.ValidMinutes}} минут. Если вы не запрашивали восстановление, просто проигнорируйте это письмо.</p>
</body>
</html>`

const moderationTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Subject}}</title></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
    <p>Здравствуйте, {{.UserName}}!</p>
    {{if .Approved}}
    <p>Ваша организация «{{.NPOName}}» прошла модерацию и теперь отображается на карте.</p>
    {{else}}
    <p>Заявка организации «{{.NPOName}}» отклонена модератором.</p>
    <p>Причина: {{.Reason}}</p>
    {{end}}
    <p><a href="{{.Link}}">{{.Link}}</a></p>
</body>
</html>`

// Mailer renders and sends the application's transactional emails.
type Mailer struct {
	sender      Sender
	frontendURL string
}

func NewMailer(sender Sender, frontendURL string) *Mailer {
	return &Mailer{sender: sender, frontendURL: frontendURL}
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, userName, token string, validMinutes int) error {
	body, err := render("password_reset", passwordResetTemplate, struct {
		UserName     string
		ResetURL     string
		ValidMinutes int
	}{
		UserName:     userName,
		ResetURL:     fmt.Sprintf("%s/reset-password?token=%s", m.frontendURL, token),
		ValidMinutes: validMinutes,
	})
	if err != nil {
		return err
	}

	return m.sender.Send(ctx, Message{
		To:      to,
		Subject: "Восстановление пароля | Карта НКО",
		Body:    body,
		IsHTML:  true,
	})
}

// SendModerationDecision notifies an NPO creator that their submission was approved or rejected.
func (m *Mailer) SendModerationDecision(ctx context.Context, to, userName, npoName string, approved bool, reason string) error {
	subject := "Организация отклонена | Карта НКО"
	if approved {
		subject = "Организация одобрена | Карта НКО"
	}

	body, err := render("moderation", moderationTemplate, struct {
		Subject  string
		UserName string
		NPOName  string
		Approved bool
		Reason   string
		Link     string
	}{
		Subject:  subject,
		UserName: userName,
		NPOName:  npoName,
		Approved: approved,
		Reason:   reason,
		Link:     m.frontendURL + "/profile",
	})
	if err != nil {
		return err
	}

	return m.sender.Send(ctx, Message{
		To:      to,
		Subject: subject,
		Body:    body,
		IsHTML:  true,
	})
}
