package mailbox

import (
	"crypto/tls"
	"time"
)

// Placeholders for headers the original message did not carry.
const (
	NoSubject     = "(No Subject)"
	UnknownSender = "(Unknown Sender)"
)

// InboundMessage is one unread message as fetched from the mailbox.
type InboundMessage struct {
	UID       uint32
	MessageID string

	// From is the raw From header, or UnknownSender.
	From string

	// Sender is the bare address parsed from From. Empty when From did
	// not contain a parsable address.
	Sender string

	// Subject is the decoded subject, or NoSubject.
	Subject string

	// Body is the plain-text body passed through CleanText.
	Body string

	Date time.Time
}

// ReplyAddress returns where a reply to m should go.
func (m InboundMessage) ReplyAddress() string {
	if m.Sender != "" {
		return m.Sender
	}
	return m.From
}

// Reply is a composed message ready for SMTP submission.
type Reply struct {
	From    string
	To      string
	Subject string

	// Data is the full RFC 5322 message.
	Data []byte
}

// IMAPConfig holds the IMAP server connection settings.
type IMAPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
	Insecure bool
	Mailbox  string
}

// SMTPConfig holds the SMTP server settings for sending replies.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool

	// TLSConfig overrides the client TLS settings, e.g. custom roots.
	// ServerName defaults to Host.
	TLSConfig *tls.Config
}
