package mailer

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"os"
	"strings"
)

type smtpConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

var mailCfg smtpConfig

// ConfigureFromEnv reads the SMTP settings. With no MAIL_HOST set the
// sender stays in log-only mode.
func ConfigureFromEnv() {
	mailCfg = smtpConfig{
		Host:     os.Getenv("MAIL_HOST"),
		Port:     os.Getenv("MAIL_PORT"),
		Username: os.Getenv("MAIL_USERNAME"),
		Password: os.Getenv("MAIL_PASSWORD"),
		From:     os.Getenv("MAIL_FROM"),
	}
	if mailCfg.Port == "" {
		mailCfg.Port = "465"
	}
	if mailCfg.From == "" {
		mailCfg.From = "no-reply@netmarkethn.local"
	}
}

// SendEmail delivers one message over implicit-TLS SMTP. Returns
// errNotConfigured when no host is set so callers can treat that as a
// non-failure.
func SendEmail(to, subject, body string) error {
	if mailCfg.Host == "" {
		return errNotConfigured
	}

	msg := ""
	msg += fmt.Sprintf("From: %s\r\n", mailCfg.From)
	msg += fmt.Sprintf("To: %s\r\n", to)
	msg += fmt.Sprintf("Subject: %s\r\n", subject)
	msg += "MIME-Version: 1.0\r\n"
	contentType := "text/plain"
	lb := strings.ToLower(body)
	if strings.Contains(lb, "<html") || strings.Contains(lb, "<body") {
		contentType = "text/html"
	}
	msg += fmt.Sprintf("Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	msg += "\r\n" + body + "\r\n"

	addr := mailCfg.Host + ":" + mailCfg.Port
	tlsConfig := &tls.Config{ServerName: mailCfg.Host}
	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, mailCfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if mailCfg.Username != "" {
		auth := smtp.PlainAuth("", mailCfg.Username, mailCfg.Password, mailCfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(mailCfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}

	return c.Quit()
}
