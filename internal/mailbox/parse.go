package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// maxBodyBytes caps how much of a single body part is read.
const maxBodyBytes = 1 << 20

// ParseMessage parses a raw RFC 5322 message into an InboundMessage.
// Header problems degrade to placeholders; only an unreadable message
// structure is an error.
func ParseMessage(uid uint32, raw []byte) (InboundMessage, error) {
	msg := InboundMessage{UID: uid}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return msg, fmt.Errorf("reading message UID %d: %w", uid, err)
	}
	defer mr.Close()

	msg.Subject = DecodeSubject(mr.Header)
	msg.From, msg.Sender = parseFrom(mr.Header)
	msg.MessageID, _ = mr.Header.MessageID()
	msg.Date, _ = mr.Header.Date()

	mediaType, _, _ := mr.Header.ContentType()
	multipart := strings.HasPrefix(mediaType, "multipart/")

	text, html := extractBody(mr, multipart)
	if text == "" && html != "" {
		text = stripHTML(html)
	}
	msg.Body = CleanText(text)

	return msg, nil
}

// DecodeSubject returns the RFC 2047 decoded subject, or NoSubject when
// the header is absent or empty. A subject in an unknown charset is
// returned undecoded.
func DecodeSubject(h mail.Header) string {
	raw := h.Get("Subject")
	if strings.TrimSpace(raw) == "" {
		return NoSubject
	}

	subject, err := h.Subject()
	if err != nil {
		return raw
	}
	return subject
}

// parseFrom returns the raw From header (or UnknownSender) and the first
// address it contains.
func parseFrom(h mail.Header) (from string, sender string) {
	from = h.Get("From")
	if strings.TrimSpace(from) == "" {
		return UnknownSender, ""
	}

	addrs, err := h.AddressList("From")
	if err != nil || len(addrs) == 0 {
		return from, ""
	}
	return from, addrs[0].Address
}

// extractBody walks the parts of mr. For multipart messages the text
// body is the first text/plain part without a Content-Disposition
// header; for single-part messages it is the whole payload. The first
// text/html part is returned as a fallback.
func extractBody(mr *mail.Reader, multipart bool) (text string, html string) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && (part == nil || !message.IsUnknownCharset(err)) {
			break
		}

		header, ok := part.Header.(interface {
			Get(string) string
			ContentType() (string, map[string]string, error)
		})
		if !ok {
			continue
		}

		body, readErr := readText(part.Body)
		if readErr != nil {
			continue
		}

		if !multipart {
			return body, ""
		}

		contentType, _, _ := header.ContentType()
		switch {
		case contentType == "text/plain" && header.Get("Content-Disposition") == "":
			return body, html
		case contentType == "text/html" && html == "":
			html = body
		}
	}

	return "", html
}

// readText reads at most maxBodyBytes from r and drops any bytes that
// are not valid UTF-8.
func readText(r io.Reader) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(body), ""), nil
}

// CleanText keeps letters, numbers and whitespace and drops every other
// rune. Numbers include fractions, superscripts and roman numerals.
func CleanText(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags from a string and decodes common
// entities, providing a basic plain-text rendering.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
