package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"

	"studyhabit-backend/pkg/config"
	"studyhabit-backend/pkg/logs"
)

// Mailer 邮件投递服务。优先走 SMTP（如果配置了主机），
// 否则走 Resend HTTP API；两者都没配置时降级为仅记录日志。
type Mailer struct {
	cfg *config.Config
}

// New 创建邮件服务
func New(cfg *config.Config) *Mailer {
	return &Mailer{cfg: cfg}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendInvitation 发送学生邀请邮件
func (m *Mailer) SendInvitation(to, studentName, code string) error {
	link := fmt.Sprintf("%s/register?invitation_code=%s", m.cfg.BaseURL, code)
	subject := "You're invited to StudyHabit"
	html := fmt.Sprintf(
		`<p>Hi %s,</p>`+
			`<p>You've been invited to join StudyHabit. Use invitation code <b>%s</b> or click below:</p>`+
			`<p><a href="%s">Accept invitation</a></p>`+
			`<p>This invitation expires in 7 days.</p>`,
		studentName, code, link,
	)
	return m.send(to, subject, html)
}

// SendPasswordReset 发送密码重置邮件
func (m *Mailer) SendPasswordReset(to, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.cfg.BaseURL, token)
	subject := "Reset your StudyHabit password"
	html := fmt.Sprintf(
		`<p>We received a request to reset your password.</p>`+
			`<p><a href="%s">Reset password</a></p>`+
			`<p>If you didn't request this, you can ignore this email.</p>`,
		link,
	)
	return m.send(to, subject, html)
}

func (m *Mailer) send(to, subject, html string) error {
	switch {
	case m.cfg.SMTPHost != "":
		return m.sendViaSMTP(to, subject, html)
	case m.cfg.ResendAPIKey != "":
		return m.sendViaResend(to, subject, html)
	default:
		// 本地开发没有邮件通道，只记录
		logs.Logger.WithField("to", to).WithField("subject", subject).Info("email delivery skipped (no mailer configured)")
		return nil
	}
}

func (m *Mailer) sendViaResend(to, subject, html string) error {
	body := resendRequest{
		From:    m.cfg.FromEmail,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.ResendAPIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("resend API error: status %d", resp.StatusCode)
	}

	return nil
}

func (m *Mailer) sendViaSMTP(to, subject, html string) error {
	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort

	msg := "From: " + m.cfg.FromEmail + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		html

	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.FromEmail, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
