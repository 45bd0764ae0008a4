// Package email dispatches billing documents to customers over SMTP.
package email

import "context"

// Attachment is a file sent along with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Provider sends transactional mail.
type Provider interface {
	Send(ctx context.Context, to []string, subject, htmlBody string, attachments ...Attachment) error
}
