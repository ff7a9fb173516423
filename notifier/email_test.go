package notifier

import (
	"errors"
	"strings"
	"testing"
	"time"

	gomail "gopkg.in/mail.v2"

	"cinelist/movie"
)

func testSections() []DigestSection {
	rating := 8.5
	return []DigestSection{
		{Label: "Top 250", Movies: []movie.Record{
			{Title: "The Godfather", Year: "1972", Rank: 1, Rating: &rating, URL: "https://www.imdb.com/title/tt0068646/",
				Overview: "The aging patriarch <of> an organized crime dynasty.", Source: movie.SourceIMDb},
			{Title: "Untitled", Rank: 2, Source: movie.SourceIMDb},
		}},
		{Label: "Trending Today"},
	}
}

func newTestNotifier(t *testing.T, cfg EmailConfig) (*EmailNotifier, *[]*gomail.Message) {
	t.Helper()
	n, err := NewEmailNotifier(cfg)
	if err != nil {
		t.Fatalf("Failed to create notifier: %v", err)
	}
	var sent []*gomail.Message
	n.send = func(m *gomail.Message) error {
		sent = append(sent, m)
		return nil
	}
	return n, &sent
}

func TestRender(t *testing.T) {
	n, _ := newTestNotifier(t, EmailConfig{})
	at := time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)

	html, text, err := n.Render(testSections(), at)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	for _, want := range []string{"Top 250 (2)", "The Godfather", "8.5/10", "&lt;of&gt;", "No movies available.", "March 1, 2026 at 5:00 PM"} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML body missing %q", want)
		}
	}
	for _, want := range []string{"1. The Godfather (1972)", "2. Untitled\n", "Trending Today (0)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Text body missing %q:\n%s", want, text)
		}
	}
}

func TestNotifyDigest(t *testing.T) {
	n, sent := newTestNotifier(t, EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587,
		SenderEmail: "cinelist@example.com", RecipientEmail: "me@example.com"})

	if err := n.NotifyDigest(testSections(), time.Now()); err != nil {
		t.Fatalf("NotifyDigest failed: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(*sent))
	}
	m := (*sent)[0]
	if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != "Cinelist: 2 movies across 2 listings" {
		t.Errorf("Unexpected subject %v", got)
	}
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "me@example.com" {
		t.Errorf("Unexpected recipient %v", got)
	}
}

func TestNotifyDigestSkips(t *testing.T) {
	n, sent := newTestNotifier(t, EmailConfig{SMTPHost: "smtp.example.com"})

	if err := n.NotifyDigest(testSections(), time.Now()); err != nil {
		t.Fatalf("Expected no error without recipient, got %v", err)
	}
	n.config.RecipientEmail = "me@example.com"
	if err := n.NotifyDigest(nil, time.Now()); err != nil {
		t.Fatalf("Expected no error without sections, got %v", err)
	}
	if len(*sent) != 0 {
		t.Errorf("Expected nothing sent, got %d", len(*sent))
	}
}

func TestNotifyDigestSendError(t *testing.T) {
	n, _ := newTestNotifier(t, EmailConfig{RecipientEmail: "me@example.com"})
	n.send = func(*gomail.Message) error { return errors.New("dial tcp: connection refused") }

	if err := n.NotifyDigest(testSections(), time.Now()); err == nil {
		t.Error("Expected send error")
	}
}

func TestGetEmailConfigFromEnv(t *testing.T) {
	t.Setenv("EMAIL_SMTP_HOST", "smtp.example.com")
	t.Setenv("EMAIL_SMTP_PORT", "2525")
	t.Setenv("EMAIL_USERNAME", "")
	t.Setenv("EMAIL_SENDER", "cinelist@example.com")
	t.Setenv("EMAIL_PASSWORD", "secret-token-value")
	t.Setenv("EMAIL_RECIPIENT", "me@example.com")

	cfg := GetEmailConfigFromEnv()
	if cfg.SMTPHost != "smtp.example.com" || cfg.SMTPPort != 2525 || !cfg.Enabled() {
		t.Errorf("Unexpected config %+v", cfg)
	}

	t.Setenv("EMAIL_SMTP_PORT", "smtp")
	t.Setenv("EMAIL_RECIPIENT", "")
	cfg = GetEmailConfigFromEnv()
	if cfg.SMTPPort != 587 {
		t.Errorf("Expected default port, got %d", cfg.SMTPPort)
	}
	if cfg.Enabled() {
		t.Error("Expected config without recipient to be disabled")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{"": "", "short": "***", "abcdefghijkl": "abcd...ijkl"}
	for in, want := range tests {
		if got := maskSecret(in); got != want {
			t.Errorf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
