package mailbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseMessage_SinglePart(t *testing.T) {
	raw := crlf(`From: Alice Example <alice@example.com>
To: me@example.com
Subject: Lunch on Friday?
Message-ID: <abc123@example.com>
Date: Mon, 02 Jun 2025 10:00:00 +0000
Content-Type: text/plain; charset=utf-8

Hi! Are you free for lunch, 12:30?
`)

	msg, err := ParseMessage(7, raw)
	require.NoError(t, err)

	assert.Equal(t, uint32(7), msg.UID)
	assert.Equal(t, "Alice Example <alice@example.com>", msg.From)
	assert.Equal(t, "alice@example.com", msg.Sender)
	assert.Equal(t, "Lunch on Friday?", msg.Subject)
	assert.Equal(t, "abc123@example.com", msg.MessageID)
	assert.Equal(t, 2025, msg.Date.Year())
	assert.Equal(t, "Hi Are you free for lunch 1230", strings.TrimSpace(msg.Body))
}

func TestParseMessage_EncodedSubject(t *testing.T) {
	raw := crlf(`From: bob@example.com
Subject: =?UTF-8?B?w4ljaGFuZ2Ugc3VyIGxlIHByb2pldA==?=
Content-Type: text/plain

body
`)

	msg, err := ParseMessage(1, raw)
	require.NoError(t, err)
	assert.Equal(t, "Échange sur le projet", msg.Subject)
}

func TestParseMessage_MissingHeaders(t *testing.T) {
	raw := crlf(`Content-Type: text/plain

nothing else
`)

	msg, err := ParseMessage(1, raw)
	require.NoError(t, err)

	assert.Equal(t, NoSubject, msg.Subject)
	assert.Equal(t, UnknownSender, msg.From)
	assert.Empty(t, msg.Sender)
	assert.Empty(t, msg.MessageID)
}

func TestParseMessage_MultipartPicksUndispositionedPlainText(t *testing.T) {
	raw := crlf(`From: carol@example.com
Subject: Report
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: text/plain; charset=utf-8
Content-Disposition: inline

inline disposition text
--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/html; charset=utf-8

<p>html version</p>
--inner
Content-Type: text/plain; charset=utf-8

the real body
--inner--
--outer
Content-Type: text/plain; name="notes.txt"
Content-Disposition: attachment; filename="notes.txt"

attached notes
--outer--
`)

	msg, err := ParseMessage(3, raw)
	require.NoError(t, err)
	assert.Equal(t, "the real body", strings.TrimSpace(msg.Body))
}

func TestParseMessage_HTMLFallback(t *testing.T) {
	raw := crlf(`From: dave@example.com
Subject: Newsletter
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b"

--b
Content-Type: text/html; charset=utf-8

<p>Hello &amp; welcome</p><br>Second line
--b--
`)

	msg, err := ParseMessage(4, raw)
	require.NoError(t, err)
	assert.Equal(t, "Hello  welcome\n\nSecond line", msg.Body)
}

func TestParseMessage_DecodesCharsetAndTransferEncoding(t *testing.T) {
	raw := crlf(`From: erin@example.com
Subject: Latin
Content-Type: text/plain; charset=iso-8859-1
Content-Transfer-Encoding: quoted-printable

Gr=FC=DFe aus K=F6ln
`)

	msg, err := ParseMessage(5, raw)
	require.NoError(t, err)
	assert.Equal(t, "Grüße aus Köln", strings.TrimSpace(msg.Body))
}

func TestParseMessage_SinglePartAttachmentIsStillBody(t *testing.T) {
	raw := crlf(`From: frank@example.com
Subject: Single
Content-Type: text/plain
Content-Disposition: attachment; filename="a.txt"

payload text
`)

	msg, err := ParseMessage(6, raw)
	require.NoError(t, err)
	assert.Equal(t, "payload text", strings.TrimSpace(msg.Body))
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, world!", "Hello world"},
		{"price: $4.99 (today)", "price 499 today"},
		{"tabs\tand\nnewlines", "tabs\tand\nnewlines"},
		{"naïve café — ünïcode", "naïve café  ünïcode"},
		{"日本語のテキスト。", "日本語のテキスト"},
		{"<>&*#@", ""},
		{"½ ² Ⅻ ٣ a1", "½ ² Ⅻ ٣ a1"},
		{"x² + ¼!", "x²  ¼"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := CleanText(tc.in); got != tc.want {
			t.Errorf("CleanText(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestInboundMessage_ReplyAddress(t *testing.T) {
	assert.Equal(t, "a@b.com", InboundMessage{From: "A <a@b.com>", Sender: "a@b.com"}.ReplyAddress())
	assert.Equal(t, "weird-from", InboundMessage{From: "weird-from"}.ReplyAddress())
}
