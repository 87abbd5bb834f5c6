// Package mailer はSMTP経由のメール送信を提供する。
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Mailer はメール送信のインターフェース。
type Mailer interface {
	// Send はHTMLメールを1通送信する。
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPMailer はMailerのSMTP実装。
// usernameが空の場合は認証なしのローカルリレーとして動作する。
type SMTPMailer struct {
	host     string
	port     int
	from     string
	username string
	password string
}

// NewSMTPMailer はSMTPMailerの新しいインスタンスを生成する。
// usernameが空でない場合、送信時にSTARTTLSとPLAIN認証を行う。
func NewSMTPMailer(host string, port int, from, username, password string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		from:     from,
		username: username,
		password: password,
	}
}

// Send はHTMLメールを1通送信する。
// 接続はコンテキストのキャンセルを尊重する。
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("SMTPサーバーへの接続に失敗しました: %w", err)
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTPクライアントの初期化に失敗しました: %w", err)
	}
	defer client.Close()

	if m.username != "" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
				return fmt.Errorf("STARTTLSに失敗しました: %w", err)
			}
		}
		auth := smtp.PlainAuth("", m.username, m.password, m.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP認証に失敗しました: %w", err)
		}
	}

	if err := client.Mail(m.from); err != nil {
		return fmt.Errorf("MAIL FROMに失敗しました: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TOに失敗しました: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATAの開始に失敗しました: %w", err)
	}
	if _, err := w.Write(buildMessage(m.from, to, subject, htmlBody)); err != nil {
		w.Close()
		return fmt.Errorf("メール本文の書き込みに失敗しました: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("メール本文の送信に失敗しました: %w", err)
	}

	return client.Quit()
}

// buildMessage はRFC 5322形式のHTMLメールを組み立てる。
// 件名は非ASCII文字を含められるようMIMEエンコードされる。
func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return []byte(b.String())
}
