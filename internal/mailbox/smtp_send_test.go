package mailbox

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smtpTranscript is what the test server saw on one connection.
type smtpTranscript struct {
	startTLS bool
	user     string
	from     string
	rcpt     []string
	data     string
}

// testSMTPServer speaks just enough ESMTP for net/smtp: EHLO, STARTTLS,
// AUTH PLAIN, MAIL, RCPT, DATA and QUIT.
type testSMTPServer struct {
	ln        net.Listener
	tlsConfig *tls.Config
	password  string

	mu  sync.Mutex
	got []smtpTranscript
}

// testCertificates borrows the httptest certificate, which is valid for
// 127.0.0.1, and returns the server config plus a pool trusting it.
func testCertificates(t *testing.T) (*tls.Config, *x509.CertPool) {
	t.Helper()
	ts := httptest.NewTLSServer(http.NotFoundHandler())
	defer ts.Close()

	serverCfg := ts.TLS.Clone()
	serverCfg.NextProtos = nil

	roots := x509.NewCertPool()
	roots.AddCert(ts.Certificate())
	return serverCfg, roots
}

func startSMTPServer(t *testing.T, implicitTLS bool) (*testSMTPServer, *x509.CertPool) {
	t.Helper()
	serverCfg, roots := testCertificates(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	if implicitTLS {
		ln = tls.NewListener(ln, serverCfg)
	}

	s := &testSMTPServer{ln: ln, tlsConfig: serverCfg, password: "app-password"}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s, roots
}

func (s *testSMTPServer) config(roots *x509.CertPool, implicitTLS bool) SMTPConfig {
	host, port, _ := net.SplitHostPort(s.ln.Addr().String())
	return SMTPConfig{
		Host:      host,
		Port:      port,
		Username:  "me@example.com",
		Password:  s.password,
		TLS:       implicitTLS,
		TLSConfig: &tls.Config{RootCAs: roots},
	}
}

func (s *testSMTPServer) transcripts() []smtpTranscript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]smtpTranscript(nil), s.got...)
}

func (s *testSMTPServer) serve(conn net.Conn) {
	defer conn.Close()

	// Every field is recorded before the command is acknowledged, so
	// the client never observes a reply ahead of the transcript.
	s.mu.Lock()
	s.got = append(s.got, smtpTranscript{})
	idx := len(s.got) - 1
	s.mu.Unlock()
	record := func(fn func(tr *smtpTranscript)) {
		s.mu.Lock()
		fn(&s.got[idx])
		s.mu.Unlock()
	}

	tp := textproto.NewConn(conn)
	reply := func(line string) { _ = tp.PrintfLine("%s", line) }

	reply("220 127.0.0.1 ESMTP ready")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb, arg, _ := strings.Cut(line, " ")

		switch strings.ToUpper(verb) {
		case "EHLO", "HELO":
			reply("250-127.0.0.1")
			if _, secure := conn.(*tls.Conn); !secure {
				reply("250-STARTTLS")
			}
			reply("250 AUTH PLAIN")
		case "STARTTLS":
			reply("220 2.0.0 ready to start TLS")
			tlsConn := tls.Server(conn, s.tlsConfig)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			tp = textproto.NewConn(conn)
			record(func(tr *smtpTranscript) { tr.startTLS = true })
		case "AUTH":
			mech, resp, _ := strings.Cut(arg, " ")
			raw, err := base64.StdEncoding.DecodeString(resp)
			parts := strings.Split(string(raw), "\x00")
			if mech != "PLAIN" || err != nil || len(parts) != 3 || parts[2] != s.password {
				reply("535 5.7.8 authentication failed")
				continue
			}
			record(func(tr *smtpTranscript) { tr.user = parts[1] })
			reply("235 2.7.0 accepted")
		case "MAIL":
			record(func(tr *smtpTranscript) { tr.from = arg })
			reply("250 2.1.0 ok")
		case "RCPT":
			record(func(tr *smtpTranscript) { tr.rcpt = append(tr.rcpt, arg) })
			reply("250 2.1.5 ok")
		case "DATA":
			reply("354 end with <CRLF>.<CRLF>")
			data, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			record(func(tr *smtpTranscript) { tr.data = string(data) })
			reply("250 2.0.0 queued")
		case "QUIT":
			reply("221 2.0.0 bye")
			return
		default:
			reply("502 5.5.2 unknown command")
		}
	}
}

func testReply(t *testing.T) *Reply {
	t.Helper()
	reply, err := ComposeReply("me@example.com", InboundMessage{
		UID:       42,
		MessageID: "orig-1@example.com",
		From:      "Alice <alice@example.com>",
		Sender:    "alice@example.com",
		Subject:   "Lunch",
	}, "Re: ", "I'll get back to you shortly")
	require.NoError(t, err)
	return reply
}

func TestSenderSend(t *testing.T) {
	tests := []struct {
		name        string
		implicitTLS bool
	}{
		{"starttls", false},
		{"implicit tls", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, roots := startSMTPServer(t, tc.implicitTLS)
			sender := NewSender(srv.config(roots, tc.implicitTLS), nil)

			require.NoError(t, sender.Send(context.Background(), testReply(t)))

			got := srv.transcripts()
			require.Len(t, got, 1)
			tr := got[0]
			assert.Equal(t, !tc.implicitTLS, tr.startTLS)
			assert.Equal(t, "me@example.com", tr.user)
			assert.Equal(t, "FROM:<me@example.com>", tr.from)
			assert.Equal(t, []string{"TO:<alice@example.com>"}, tr.rcpt)
			assert.Contains(t, tr.data, "I'll get back to you shortly")
			assert.Contains(t, tr.data, "Subject: Re: Lunch")
			assert.Contains(t, tr.data, "In-Reply-To: <orig-1@example.com>")
		})
	}
}

func TestSenderSend_BadPassword(t *testing.T) {
	srv, roots := startSMTPServer(t, false)
	cfg := srv.config(roots, false)
	cfg.Password = "wrong"

	err := NewSender(cfg, nil).Send(context.Background(), testReply(t))
	require.Error(t, err)
	assert.True(t, IsAuthError(err))

	for _, tr := range srv.transcripts() {
		assert.Empty(t, tr.rcpt)
		assert.Empty(t, tr.data)
	}
}

func TestSenderSend_UntrustedCertificate(t *testing.T) {
	srv, _ := startSMTPServer(t, false)
	cfg := srv.config(nil, false)
	cfg.TLSConfig = nil

	err := NewSender(cfg, nil).Send(context.Background(), testReply(t))
	require.Error(t, err)
	assert.False(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "STARTTLS")
}

func TestSenderSend_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	err = NewSender(SMTPConfig{Host: host, Port: port}, nil).
		Send(context.Background(), testReply(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial")
}
