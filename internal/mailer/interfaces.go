package mailer

import "time"

type Service interface {
	SendResetCode(toEmail, toName, code string, expiresAt time.Time) error
}
