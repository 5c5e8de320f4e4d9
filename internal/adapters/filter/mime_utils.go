package filter

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/mikey/email-priority/internal/core"
	"golang.org/x/net/html"
)

var wordDecoder = &mime.WordDecoder{}

// decodeEncodedHeader decodes RFC 2047 encoded words in a header value
func decodeEncodedHeader(value string) (string, error) {
	return wordDecoder.DecodeHeader(value)
}

// encodeHeader encodes a header value as RFC 2047 words when it is not plain ASCII
func encodeHeader(value string) string {
	for i := 0; i < len(value); i++ {
		if value[i] >= utf8.RuneSelf {
			return mime.QEncoding.Encode("utf-8", value)
		}
	}
	return value
}

// textParts accumulates the readable parts of a message
type textParts struct {
	plain bytes.Buffer
	html  bytes.Buffer
}

// text prefers the plain parts and falls back to the visible text of the
// HTML parts. It is empty when the message carries no readable text.
func (t *textParts) text() string {
	if strings.TrimSpace(t.plain.String()) != "" {
		return t.plain.String()
	}
	return t.html.String()
}

func (t *textParts) add(mediaType string, r io.Reader, transferEncoding string) error {
	content, err := readPart(r, transferEncoding)
	if err != nil {
		return err
	}
	switch mediaType {
	case "text/plain":
		t.plain.WriteString(content)
		t.plain.WriteString("\n")
	case "text/html":
		t.html.WriteString(htmlToText(content))
		t.html.WriteString("\n")
	}
	return nil
}

// extractTextFromMessage extracts the text content from an email message.
// text/plain parts win; HTML-only messages are reduced to their visible
// text. Messages with neither yield an empty string.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	encoding := msg.Header.Get("Content-Transfer-Encoding")

	var parts textParts

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// A missing or broken Content-Type means text/plain
		mediaType = "text/plain"
	}

	boundary := params["boundary"]
	if !strings.HasPrefix(mediaType, "multipart/") || boundary == "" {
		if mediaType != "text/html" {
			mediaType = "text/plain"
		}
		if err := parts.add(mediaType, msg.Body, encoding); err != nil {
			return "", err
		}
		return parts.text(), nil
	}

	if err := collectText(multipart.NewReader(msg.Body, boundary), &parts); err != nil && parts.text() == "" {
		return "", err
	}

	return parts.text(), nil
}

// collectText walks the parts of mr, descending into nested multiparts
func collectText(mr *multipart.Reader, out *textParts) error {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			// Parts without a Content-Type default to text/plain
			mediaType = "text/plain"
		}

		switch {
		case mediaType == "text/plain" || mediaType == "text/html":
			// Unreadable parts are skipped
			_ = out.add(mediaType, part, part.Header.Get("Content-Transfer-Encoding"))
		case strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "":
			if err := collectText(multipart.NewReader(part, params["boundary"]), out); err != nil {
				return err
			}
		}
	}
}

// htmlToText returns the visible text of an HTML document, dropping
// markup along with script and style contents
func htmlToText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))

	var (
		sb   strings.Builder
		skip int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isHiddenElement(string(name)) {
				skip++
			}
			sb.WriteByte(' ')
		case html.EndTagToken:
			if name, _ := z.TagName(); isHiddenElement(string(name)) && skip > 0 {
				skip--
			}
			sb.WriteByte(' ')
		case html.SelfClosingTagToken:
			sb.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func isHiddenElement(name string) bool {
	switch name {
	case "script", "style", "head", "title":
		return true
	}
	return false
}

// readPart reads r and undoes its transfer encoding. multipart.Reader
// already strips quoted-printable, so only base64 remains for parts.
func readPart(r io.Reader, transferEncoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, newlineStripper{r})
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// newlineStripper drops CR and LF so base64 bodies wrapped at 76 columns decode
type newlineStripper struct {
	r io.Reader
}

func (n newlineStripper) Read(p []byte) (int, error) {
	count, err := n.r.Read(p)
	out := p[:0]
	for _, b := range p[:count] {
		if b != '\r' && b != '\n' {
			out = append(out, b)
		}
	}
	return len(out), err
}

// parseMessage turns raw RFC 5322 data into an Email. Data that does not
// parse as a message is treated as a plain-text body.
func parseMessage(raw []byte) *core.Email {
	email := &core.Email{Headers: make(map[string][]string)}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil || !looksLikeMessage(msg.Header) {
		email.Body = string(raw)
		return email
	}

	for key, values := range msg.Header {
		email.Headers[key] = values
	}

	subject := msg.Header.Get("Subject")
	if decoded, err := decodeEncodedHeader(subject); err == nil {
		subject = decoded
	}
	email.Subject = subject
	email.From = msg.Header.Get("From")
	if to, err := msg.Header.AddressList("To"); err == nil {
		for _, addr := range to {
			email.To = append(email.To, addr.Address)
		}
	}

	text, err := extractTextFromMessage(msg)
	if err != nil {
		email.Body = string(raw)
		return email
	}
	email.Body = text
	return email
}

// looksLikeMessage reports whether a parsed header block carries at least
// one standard message header, so prose like "Note: ..." stays a body
func looksLikeMessage(h mail.Header) bool {
	for _, key := range []string{"From", "To", "Subject", "Date", "Message-Id", "Content-Type"} {
		if h.Get(key) != "" {
			return true
		}
	}
	return false
}
