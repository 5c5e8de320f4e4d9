package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/email-priority/internal/core"
	"github.com/mikey/email-priority/internal/vip"
	"go.uber.org/zap"
)

// HeaderNames are the headers the Postfix filter adds to each message
type HeaderNames struct {
	Score     string
	Band      string
	Breakdown string
}

const analysisErrorHeader = "X-Priority-Analysis-Error"

// PostfixFilter implements a Postfix content filter that annotates mail
// with its priority and hands it back to Postfix
type PostfixFilter struct {
	service         *core.PriorityService
	vip             *vip.Checker
	logger          *zap.Logger
	listenAddr      string
	server          *smtp.Server
	headers         HeaderNames
	analysisTimeout time.Duration
	postfixAddr     string
	postfixPort     int
	postfixEnabled  bool
	subjectPrefix   string
	modifySubject   bool
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	service *core.PriorityService,
	vipChecker *vip.Checker,
	logger *zap.Logger,
	listenAddr string,
	headers HeaderNames,
	analysisTimeout time.Duration,
	postfixAddr string,
	postfixPort int,
	postfixEnabled bool,
	subjectPrefix string,
	modifySubject bool,
) *PostfixFilter {
	if subjectPrefix == "" && modifySubject {
		subjectPrefix = "[HIGH PRIORITY] "
	}
	if analysisTimeout <= 0 {
		analysisTimeout = 30 * time.Second
	}

	return &PostfixFilter{
		service:         service,
		vip:             vipChecker,
		logger:          logger,
		listenAddr:      listenAddr,
		headers:         headers,
		analysisTimeout: analysisTimeout,
		postfixAddr:     postfixAddr,
		postfixPort:     postfixPort,
		postfixEnabled:  postfixEnabled,
		subjectPrefix:   subjectPrefix,
		modifySubject:   modifySubject,
	}
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50

	f.logger.Info("Postfix filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && err != smtp.ErrServerClosed {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail scores an email, resolving the VIP flag from its sender
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.PriorityResult, error) {
	return f.service.Analyze(ctx, email, f.isVIP(email))
}

func (f *PostfixFilter) isVIP(email *core.Email) bool {
	if f.vip == nil {
		return false
	}
	if f.vip.IsVIP(email.From) {
		return true
	}
	if values := email.Headers["From"]; len(values) > 0 {
		return f.vip.IsVIP(values[0])
	}
	return false
}

// annotate prepends the priority headers to raw and, for High-band mail,
// prefixes the subject. The body is passed through untouched.
func (f *PostfixFilter) annotate(raw []byte, result *core.PriorityResult, analysisErr error) []byte {
	header, body := splitMessage(raw)

	var out bytes.Buffer
	if result != nil {
		fmt.Fprintf(&out, "%s: %d\r\n", f.headers.Score, result.Score)
		fmt.Fprintf(&out, "%s: %s\r\n", f.headers.Band, result.Band)
		fmt.Fprintf(&out, "%s: %s\r\n", f.headers.Breakdown, FormatBreakdown(result))
	}
	if analysisErr != nil {
		fmt.Fprintf(&out, "%s: %s\r\n", analysisErrorHeader, headerSafe(analysisErr.Error()))
	}

	if result != nil && result.Band == core.BandHigh && f.modifySubject && f.subjectPrefix != "" {
		header = prefixSubject(header, f.subjectPrefix)
	}

	out.Write(header)
	out.Write(body)
	return out.Bytes()
}

// splitMessage returns the header block including its terminating blank
// line, and the body
func splitMessage(raw []byte) ([]byte, []byte) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[:i+4], raw[i+4:]
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return raw[:i+2], raw[i+2:]
	}
	return raw, nil
}

// prefixSubject rewrites the Subject field of a raw header block, folding
// continuation lines into the new value
func prefixSubject(header []byte, prefix string) []byte {
	lines := strings.SplitAfter(string(header), "\n")

	var out strings.Builder
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) != name || !strings.EqualFold(name, "Subject") {
			out.WriteString(line)
			continue
		}

		value = strings.TrimRight(value, "\r\n")
		for i+1 < len(lines) && len(lines[i+1]) > 0 && (lines[i+1][0] == ' ' || lines[i+1][0] == '\t') {
			i++
			value += " " + strings.TrimSpace(lines[i])
		}

		subject := strings.TrimSpace(value)
		if decoded, err := decodeEncodedHeader(subject); err == nil {
			subject = decoded
		}
		if !strings.HasPrefix(subject, prefix) {
			subject = prefix + subject
		}

		fmt.Fprintf(&out, "%s: %s\r\n", name, encodeHeader(subject))
	}
	return []byte(out.String())
}

// headerSafe flattens a value onto a single header line
func headerSafe(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// FormatBreakdown renders the per-signal scores with two decimals
func FormatBreakdown(result *core.PriorityResult) string {
	return fmt.Sprintf("sentiment=%.2f; emotion=%.2f; urgency=%.2f; vip=%t",
		result.Sentiment, result.Emotion, result.Urgency, result.VIP)
}

// handle scores and forwards one message. It never rejects mail: analysis
// failures are recorded in a header instead.
func (f *PostfixFilter) handle(sender string, recipients []string, raw []byte) error {
	email := parseMessage(raw)
	if sender != "" {
		email.From = sender
	}
	email.To = recipients

	ctx, cancel := context.WithTimeout(context.Background(), f.analysisTimeout)
	defer cancel()

	result, analysisErr := f.ProcessEmail(ctx, email)
	if analysisErr != nil {
		f.logger.Error("Failed to analyze email",
			zap.Error(analysisErr),
			zap.String("sender", email.From))
		result = nil
	}

	annotated := f.annotate(raw, result, analysisErr)

	if f.postfixEnabled {
		if err := f.sendToPostfix(sender, recipients, annotated); err != nil {
			f.logger.Error("Failed to send email back to Postfix",
				zap.Error(err),
				zap.String("sender", email.From))
			return err
		}
	} else {
		f.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
	}

	if result != nil {
		f.logger.Info("Processed email",
			zap.String("from", email.From),
			zap.Int("score", result.Score),
			zap.String("band", string(result.Band)),
			zap.Bool("vip", result.VIP),
			zap.String("model", result.ModelUsed),
			zap.String("processing_id", result.ProcessingID))
	}

	return nil
}

// sendToPostfix sends the processed email back to Postfix on the configured port
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := net.JoinHostPort(f.postfixAddr, strconv.Itoa(f.postfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	// The message is already queued, so a failed QUIT is not an error
	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data reads the message and hands it to the filter
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}
	return s.filter.handle(s.sender, s.recipients, raw)
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
