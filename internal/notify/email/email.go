package email

import (
	"bytes"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/wayfare/internal/config"
	"github.com/jon4hz/wayfare/internal/database"
	mail "github.com/xhit/go-simple-mail/v2"
)

// NotificationService sends account status emails.
type NotificationService struct {
	config    *config.EmailConfig
	serverURL string
}

// StatusNotification is the data of an account status email.
type StatusNotification struct {
	UserEmail string
	UserName  string
	Status    database.ProfileStatus
	LoginURL  string
}

// Approved reports whether the account was approved.
func (n StatusNotification) Approved() bool {
	return n.Status == database.ProfileStatusApproved
}

// New creates a new email notification service.
func New(cfg *config.EmailConfig, serverURL string) *NotificationService {
	return &NotificationService{
		config:    cfg,
		serverURL: strings.TrimSuffix(serverURL, "/"),
	}
}

// Enabled reports whether emails are sent at all.
func (n *NotificationService) Enabled() bool {
	return n != nil && n.config != nil && n.config.Enabled
}

// NotifyStatusChange tells the owner of profile that an administrator approved or rejected the account.
// Other status changes are not announced.
func (n *NotificationService) NotifyStatusChange(profile *database.Profile) error {
	if !n.Enabled() {
		log.Debug("email notifications are disabled, skipping notification")
		return nil
	}
	if profile.Status == database.ProfileStatusPending {
		return nil
	}
	if profile.Email == "" {
		log.Warn("profile has no email, skipping notification", "user", profile.ID)
		return nil
	}

	notification := StatusNotification{
		UserEmail: profile.Email,
		UserName:  profile.Name(),
		Status:    profile.Status,
		LoginURL:  n.serverURL + "/login",
	}

	subject, body, err := n.generateEmail(notification)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}
	return n.sendEmail(notification.UserEmail, subject, body)
}

//go:embed templates/*.html
var templatesFS embed.FS

var emailTemplates = template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))

// generateEmail creates the subject and HTML body of a status email.
func (n *NotificationService) generateEmail(notification StatusNotification) (string, string, error) {
	subject := "[Wayfare] Your account was approved"
	if !notification.Approved() {
		subject = "[Wayfare] Your account request was declined"
	}

	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, "status.html", notification); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}

// sendEmail sends an email using go-simple-mail.
func (n *NotificationService) sendEmail(to, subject, body string) error {
	server := mail.NewSMTPClient()
	server.Host = n.config.SMTPHost
	server.Port = n.config.SMTPPort
	server.Username = n.config.Username
	server.Password = n.config.Password

	switch {
	case n.config.UseSSL:
		server.Encryption = mail.EncryptionSSLTLS
	case n.config.UseTLS:
		server.Encryption = mail.EncryptionSTARTTLS
	default:
		server.Encryption = mail.EncryptionNone
	}

	if n.config.InsecureSkipVerify {
		server.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	smtpClient, err := server.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		if closeErr := smtpClient.Close(); closeErr != nil {
			log.Warn("failed to close SMTP client", "error", closeErr)
		}
	}()

	fromName := n.config.FromName
	if fromName == "" {
		fromName = "Wayfare"
	}

	email := mail.NewMSG()
	email.SetFrom(fmt.Sprintf("%s <%s>", fromName, n.config.FromEmail))
	email.AddTo(to)
	email.SetSubject(subject)
	email.SetBody(mail.TextHTML, body)

	if err := email.Send(smtpClient); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info("email notification sent", "to", to, "subject", subject)
	return nil
}
