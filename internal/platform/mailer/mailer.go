// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mailer delivers one-time login codes over SMTP.

Messages carry a plain-text body with an HTML alternative. Connections use
STARTTLS; with Secure set the upgrade is mandatory, otherwise it is attempted
when the relay offers it.
*/
package mailer

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"time"

	"github.com/wneessen/go-mail"
)

// Config holds SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Secure   bool
	Timeout  time.Duration
}

// SMTPMailer sends OTP messages through an SMTP relay.
type SMTPMailer struct {
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// New constructs an [SMTPMailer].
func New(config Config, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{config: config, logger: logger, now: time.Now}
}

const otpSubject = "Kode Verifikasi Login — SKPD Kabupaten Merauke"

var otpHTML = template.Must(template.New("otp").Parse(`<div style="font-family: 'Segoe UI', Arial, sans-serif; max-width: 480px; margin: 0 auto; padding: 32px;">
    <h2 style="margin: 0 0 8px; color: #1a1a1a;">Kode Verifikasi Login</h2>
    <p style="color: #555; margin: 0 0 24px;">Gunakan kode berikut untuk menyelesaikan proses login Anda:</p>
    <div style="background: #f4f4f5; border-radius: 8px; padding: 20px; text-align: center; margin-bottom: 24px;">
        <span style="font-size: 32px; font-weight: 700; letter-spacing: 6px; color: #1a1a1a;">{{.Code}}</span>
    </div>
    <p style="color: #888; font-size: 13px; margin: 0;">Kode ini berlaku selama <strong>{{.Minutes}} menit</strong>. Jangan bagikan kode ini kepada siapapun.</p>
    <hr style="border: none; border-top: 1px solid #e4e4e7; margin: 24px 0;" />
    <p style="color: #aaa; font-size: 12px; margin: 0;">{{.Sender}} — Sistem Informasi Terintegrasi</p>
</div>`))

/*
NewOtpMessage builds the OTP email.

Parameters:
  - config: Config (sender identity)
  - toEmail: string
  - code: string
  - validity: time.Duration (rounded up to whole minutes in the text)

Returns:
  - *mail.Msg: Ready to send
  - error: Invalid addresses or template failures
*/
func NewOtpMessage(config Config, toEmail, code string, validity time.Duration) (*mail.Msg, error) {
	minutes := max(1, int(math.Ceil(validity.Minutes())))

	message := mail.NewMsg()
	if err := message.FromFormat(config.FromName, config.From); err != nil {
		return nil, fmt.Errorf("mailer_invalid_sender: %w", err)
	}
	if err := message.To(toEmail); err != nil {
		return nil, fmt.Errorf("mailer_invalid_recipient: %w", err)
	}
	message.Subject(otpSubject)

	message.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Kode verifikasi login Anda: %s\n\nKode ini berlaku selama %d menit. Jangan bagikan kode ini kepada siapapun.",
		code, minutes,
	))

	err := message.AddAlternativeHTMLTemplate(otpHTML, struct {
		Code    string
		Minutes int
		Sender  string
	}{Code: code, Minutes: minutes, Sender: config.FromName})
	if err != nil {
		return nil, fmt.Errorf("mailer_render_failed: %w", err)
	}

	return message, nil
}

/*
SendOtp delivers a login code to toEmail.

Description: Opens one connection per message; the caller's context bounds
dial and delivery.
*/
func (mailer *SMTPMailer) SendOtp(ctx context.Context, toEmail, code string, expiresAt time.Time) error {
	message, err := NewOtpMessage(mailer.config, toEmail, code, expiresAt.Sub(mailer.now()))
	if err != nil {
		return err
	}

	client, err := mailer.client()
	if err != nil {
		return err
	}

	if err := client.DialAndSendWithContext(ctx, message); err != nil {
		return fmt.Errorf("mailer_send_failed: %w", err)
	}

	mailer.logger.InfoContext(ctx, "otp_mail_sent", slog.String("relay", mailer.config.Host))
	return nil
}

// client configures an SMTP client for the relay.
func (mailer *SMTPMailer) client() (*mail.Client, error) {
	tlsPolicy := mail.TLSOpportunistic
	if mailer.config.Secure {
		tlsPolicy = mail.TLSMandatory
	}

	options := []mail.Option{
		mail.WithPort(mailer.config.Port),
		mail.WithTLSPolicy(tlsPolicy),
	}

	if mailer.config.Timeout > 0 {
		options = append(options, mail.WithTimeout(mailer.config.Timeout))
	}

	if mailer.config.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(mailer.config.Username),
			mail.WithPassword(mailer.config.Password),
		)
	}

	client, err := mail.NewClient(mailer.config.Host, options...)
	if err != nil {
		return nil, fmt.Errorf("mailer_client_failed: %w", err)
	}
	return client, nil
}
