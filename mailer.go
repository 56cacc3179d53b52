package auth

import (
	"context"
	"fmt"
)

// LogMailer prints notifications instead of delivering them. Development
// only; production wires a real delivery service.
type LogMailer struct {
	Logger Logger
}

func (m LogMailer) logger() Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return defLogger{}
}

func (m LogMailer) SendPasswordChangeNotification(ctx context.Context, email string) error {
	m.logger().Info("password change notification to: %s", email)
	return nil
}

func (m LogMailer) SendPasswordResetLink(ctx context.Context, email, url string) error {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", email)
	fmt.Printf("link: %s\n", url)
	return nil
}

var _ Mailer = LogMailer{}
