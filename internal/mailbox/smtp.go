package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// dialTimeout bounds the TCP and TLS handshake with the SMTP server.
const dialTimeout = 30 * time.Second

// ReplySubject prefixes subject with prefix unless it already carries a
// reply marker.
func ReplySubject(prefix, subject string) string {
	marker := strings.ToLower(strings.TrimSpace(prefix))
	if marker != "" && strings.HasPrefix(strings.ToLower(subject), marker) {
		return subject
	}
	return prefix + subject
}

// ComposeReply builds a plain-text reply from `from` to the sender of
// original. The reply threads onto the original when it had a
// Message-ID.
func ComposeReply(
	from string, original InboundMessage, subjectPrefix, body string,
) (*Reply, error) {
	to := original.ReplyAddress()
	if to == "" || to == UnknownSender {
		return nil, fmt.Errorf("message UID %d has no reply address", original.UID)
	}

	subject := ReplySubject(subjectPrefix, original.Subject)

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating Message-ID: %w", err)
	}
	if original.MessageID != "" {
		h.SetMsgIDList("In-Reply-To", []string{original.MessageID})
		h.SetMsgIDList("References", []string{original.MessageID})
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating reply writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("writing reply body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing reply body: %w", err)
	}

	return &Reply{
		From:    from,
		To:      to,
		Subject: subject,
		Data:    buf.Bytes(),
	}, nil
}

// Sender submits replies over SMTP.
type Sender struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSender creates a Sender for the given server.
func NewSender(cfg SMTPConfig, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{cfg: cfg, logger: logger}
}

// Send delivers reply. Implicit TLS is used when configured; otherwise
// the connection is upgraded with STARTTLS before authenticating.
func (s *Sender) Send(ctx context.Context, reply *Reply) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)

	conn, err := s.dial(ctx, addr)
	if err != nil {
		return err
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if !s.cfg.TLS {
		if err := client.StartTLS(s.tlsConfig()); err != nil {
			return fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return &AuthError{Protocol: "smtp", Username: s.cfg.Username, Err: err}
	}

	if err := sendMailViaSMTPClient(client, reply); err != nil {
		return err
	}

	s.logger.Info("reply sent", "to", reply.To, "subject", reply.Subject)
	return nil
}

// dial opens the transport connection, wrapping it in TLS when implicit
// TLS is configured.
func (s *Sender) dial(ctx context.Context, addr string) (net.Conn, error) {
	netDialer := &net.Dialer{Timeout: dialTimeout}

	if s.cfg.TLS {
		tlsDialer := &tls.Dialer{
			NetDialer: netDialer,
			Config:    s.tlsConfig(),
		}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("TLS dial to %s: %w", addr, err)
		}
		return conn, nil
	}

	conn, err := netDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial to %s: %w", addr, err)
	}
	return conn, nil
}

func (s *Sender) tlsConfig() *tls.Config {
	cfg := &tls.Config{}
	if s.cfg.TLSConfig != nil {
		cfg = s.cfg.TLSConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = s.cfg.Host
	}
	return cfg
}

// sendMailViaSMTPClient sends a message using an already-authenticated
// SMTP client.
func sendMailViaSMTPClient(client *smtp.Client, reply *Reply) error {
	if err := client.Mail(reply.From); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	if err := client.Rcpt(reply.To); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(reply.Data); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}
