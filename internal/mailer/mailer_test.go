package mailer

import (
	"strings"
	"testing"
)

func TestBuildMessage_Headers(t *testing.T) {
	msg := string(buildMessage("noreply@example.com", "user@example.com", "Test Subject", "<p>body</p>"))

	wantHeaders := []string{
		"From: noreply@example.com\r\n",
		"To: user@example.com\r\n",
		"Subject: Test Subject\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n",
	}
	for _, h := range wantHeaders {
		if !strings.Contains(msg, h) {
			t.Errorf("message missing header %q:\n%s", h, msg)
		}
	}
	if !strings.Contains(msg, "\r\n\r\n<p>body</p>") {
		t.Errorf("body must follow blank line:\n%s", msg)
	}
}

func TestBuildMessage_NonASCIISubjectIsEncoded(t *testing.T) {
	msg := string(buildMessage("a@example.com", "b@example.com", "新着論文のお知らせ", "<p>x</p>"))

	if !strings.Contains(msg, "Subject: =?utf-8?") {
		t.Errorf("non-ASCII subject must be MIME encoded:\n%s", msg)
	}
}
