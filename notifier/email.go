package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	gomail "gopkg.in/mail.v2"

	"cinelist/movie"
)

// EmailNotifier mails a digest of the current listings after a cache warm-up.
type EmailNotifier struct {
	config       EmailConfig
	htmlTemplate *template.Template
	send         func(*gomail.Message) error
}

// EmailConfig contains configuration for email notifications
type EmailConfig struct {
	SMTPHost       string
	SMTPPort       int
	Username       string
	SenderEmail    string
	SenderPassword string
	RecipientEmail string
}

// Enabled reports whether there is enough configuration to send mail.
func (c EmailConfig) Enabled() bool {
	return c.SMTPHost != "" && c.RecipientEmail != ""
}

// DigestSection is one listing in the digest.
type DigestSection struct {
	Label  string
	Movies []movie.Record
}

const digestTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Cinelist - Listings</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; }
        h1 { color: #f5c518; }
        h2 { color: #01b4e4; margin-top: 30px; }
        table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
        th { background-color: #f4f4f4; text-align: left; padding: 10px; }
        td { padding: 10px; border-bottom: 1px solid #ddd; vertical-align: top; }
        .overview { font-size: 13px; color: #666; }
        .footer { font-size: 12px; color: #666; margin-top: 50px; text-align: center; }
    </style>
</head>
<body>
    <h1>Cinelist</h1>
    <p>Listings refreshed on {{.Date}}.</p>
    {{range .Sections}}
    <h2>{{.Label}} ({{len .Movies}})</h2>
    {{if .Movies}}
    <table>
        <tr><th>#</th><th>Title</th><th>Year</th><th>Rating</th></tr>
        {{range .Movies}}
        <tr>
            <td>{{.Rank}}</td>
            <td>{{if .URL}}<a href="{{.URL}}">{{.Title}}</a>{{else}}{{.Title}}{{end}}
                {{if .Overview}}<div class="overview">{{.Overview}}</div>{{end}}</td>
            <td>{{if .Year}}{{.Year}}{{else}}-{{end}}</td>
            <td>{{if .Rating}}{{printf "%.1f" (deref .Rating)}}/10{{else}}-{{end}}</td>
        </tr>
        {{end}}
    </table>
    {{else}}
    <p>No movies available.</p>
    {{end}}
    {{end}}
    <div class="footer">
        <p>This is an automated email from Cinelist. Please do not reply.</p>
    </div>
</body>
</html>
`

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(config EmailConfig) (*EmailNotifier, error) {
	// Initialize HTML template for emails
	tmpl, err := template.New("digest").Funcs(template.FuncMap{
		"deref": func(f *float64) float64 { return *f },
	}).Parse(digestTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template: %w", err)
	}

	// Fall back to the sender address when no SMTP username is given
	username := config.Username
	if username == "" {
		username = config.SenderEmail
	}
	d := gomail.NewDialer(config.SMTPHost, config.SMTPPort, username, config.SenderPassword)

	return &EmailNotifier{
		config:       config,
		htmlTemplate: tmpl,
		send:         func(m *gomail.Message) error { return d.DialAndSend(m) },
	}, nil
}

// GetEmailConfigFromEnv loads email configuration from environment variables
func GetEmailConfigFromEnv() EmailConfig {
	// Parse SMTP port with default value of 587 if not specified or invalid
	smtpPort := 587
	if portStr := strings.TrimSpace(os.Getenv("EMAIL_SMTP_PORT")); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil || p <= 0 {
			log.Printf("[notifier] invalid SMTP port %q, using default 587", portStr)
		} else {
			smtpPort = p
		}
	}

	config := EmailConfig{
		SMTPHost:       os.Getenv("EMAIL_SMTP_HOST"),
		SMTPPort:       smtpPort,
		Username:       os.Getenv("EMAIL_USERNAME"),
		SenderEmail:    os.Getenv("EMAIL_SENDER"),
		SenderPassword: os.Getenv("EMAIL_PASSWORD"),
		RecipientEmail: os.Getenv("EMAIL_RECIPIENT"),
	}

	// Log configuration (without showing full password)
	log.Printf("[notifier] email configuration: host=%s port=%d sender=%s password=%s recipient=%s",
		config.SMTPHost, config.SMTPPort, config.SenderEmail, maskSecret(config.SenderPassword), config.RecipientEmail)
	return config
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) > 8:
		return s[:4] + "..." + s[len(s)-4:]
	default:
		return "***"
	}
}

// Render produces the HTML and plain-text bodies of a digest.
func (n *EmailNotifier) Render(sections []DigestSection, at time.Time) (string, string, error) {
	data := struct {
		Date     string
		Sections []DigestSection
	}{
		Date:     at.Format("January 2, 2006 at 3:04 PM"),
		Sections: sections,
	}

	var html bytes.Buffer
	if err := n.htmlTemplate.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("failed to render email template: %w", err)
	}

	// Plain text version for clients without HTML
	var text strings.Builder
	fmt.Fprintf(&text, "Cinelist listings refreshed on %s\n", data.Date)
	for _, s := range sections {
		fmt.Fprintf(&text, "\n%s (%d)\n", s.Label, len(s.Movies))
		for _, m := range s.Movies {
			if m.Year != "" {
				fmt.Fprintf(&text, "%d. %s (%s)\n", m.Rank, m.Title, m.Year)
			} else {
				fmt.Fprintf(&text, "%d. %s\n", m.Rank, m.Title)
			}
		}
	}
	text.WriteString("\nThis is an automated email from Cinelist. Please do not reply.")

	return html.String(), text.String(), nil
}

// NotifyDigest mails the listings. Sections without movies are still listed.
func (n *EmailNotifier) NotifyDigest(sections []DigestSection, at time.Time) error {
	if len(sections) == 0 {
		log.Println("[notifier] no listings to send")
		return nil
	}
	if n.config.RecipientEmail == "" {
		log.Println("[notifier] no recipient email configured, skipping digest")
		return nil
	}

	html, text, err := n.Render(sections, at)
	if err != nil {
		return err
	}

	// Count movies for the subject line
	total := 0
	for _, s := range sections {
		total += len(s.Movies)
	}

	// Create a new message using gomail
	m := gomail.NewMessage()
	m.SetHeader("From", n.config.SenderEmail)
	m.SetHeader("To", n.config.RecipientEmail)
	m.SetHeader("Subject", fmt.Sprintf("Cinelist: %d movies across %d listings", total, len(sections)))
	// Set both plain text and HTML versions
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", html)

	// Send the email
	if err := n.send(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Printf("[notifier] digest sent to %s with %d movies", n.config.RecipientEmail, total)
	return nil
}
