package email

import (
	"strings"
	"testing"
)

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("clinic@example.org", "patient@example.org", "Appointment reminder", "See you at 10:00."))

	for _, want := range []string{
		"From: clinic@example.org\r\n",
		"To: patient@example.org\r\n",
		"Subject: Appointment reminder\r\n",
		"Content-Type: text/plain; charset=utf-8\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
	if !strings.HasSuffix(msg, "\r\n\r\nSee you at 10:00.\r\n") {
		t.Fatalf("body not separated from headers:\n%s", msg)
	}
}

func TestBuildMessage_FlattensSubjectNewlines(t *testing.T) {
	msg := string(buildMessage("clinic@example.org", "patient@example.org", "hi\r\nBcc: eve@example.org", "body"))

	if strings.Contains(msg, "\r\nBcc:") {
		t.Fatalf("subject newlines must not become headers:\n%s", msg)
	}
	if !strings.Contains(msg, "Subject: hi  Bcc: eve@example.org\r\n") {
		t.Fatalf("subject not flattened onto one line:\n%s", msg)
	}
}

func TestNewSMTPSender_DefaultFrom(t *testing.T) {
	s := NewSMTPSender("mail", "1025", "  ")
	if s.from != defaultFrom {
		t.Fatalf("expected the default from address, got %q", s.from)
	}
	if s.addr != "mail:1025" {
		t.Fatalf("unexpected addr %q", s.addr)
	}
}
