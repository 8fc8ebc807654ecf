package prospect

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wneessen/go-mail"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Configured() bool
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type smtpMailer struct {
	cfg  SMTPConfig
	send func(ctx context.Context, msg *mail.Msg) error
}

func NewSMTPMailer(cfg SMTPConfig) Mailer {
	m := &smtpMailer{cfg: cfg}
	m.send = m.dialAndSend
	return m
}

func (m *smtpMailer) Configured() bool {
	return m.cfg.Host != "" && m.cfg.User != "" && m.cfg.Password != ""
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := m.buildMessage(msg)
	if err != nil {
		return err
	}
	return m.send(ctx, out)
}

func (m *smtpMailer) buildMessage(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid SMTP_FROM: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetDate()
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	return out, nil
}

func (m *smtpMailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	port, err := strconv.Atoi(m.cfg.Port)
	if err != nil {
		return fmt.Errorf("invalid SMTP_PORT %q: %w", m.cfg.Port, err)
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.User),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	// 465 is implicit TLS; other ports upgrade with STARTTLS.
	if port == 465 {
		opts = append(opts, mail.WithSSL())
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}
