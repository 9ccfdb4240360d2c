package domain

import "context"

// Message is an outgoing transactional email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers transactional email (verification, password reset).
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
