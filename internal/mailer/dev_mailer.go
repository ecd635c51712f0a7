package mailer

import (
	"fmt"
	"time"

	"github.com/traceveil/forensics-portal/pkg/logger"
)

type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendResetCode(toEmail, toName, code string, expiresAt time.Time) error {
	logger.Info("📧 [DEV MAIL] Password Reset Email",
		"to", toEmail,
		"name", toName,
		"code", code,
		"expires_at", expiresAt.Format(time.RFC3339),
	)

	fmt.Printf("\n" +
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n" +
		"📧 PASSWORD RESET EMAIL (DEV MODE)\n" +
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("To: %s (%s)\n", toEmail, toName)
	fmt.Printf("Subject: Your Trace Veil password reset code\n\n")
	fmt.Printf("Reset Code: %s\n", code)
	fmt.Printf("Expires: %s\n", expiresAt.Format(time.RFC1123))
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	return nil
}
