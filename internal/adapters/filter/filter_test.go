package filter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/email-priority/internal/core"
	"github.com/mikey/email-priority/internal/vip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubClassifier struct {
	err error
}

func (s *stubClassifier) Name() string { return "stub" }

func (s *stubClassifier) ClassifySentiment(context.Context, string) (string, error) {
	return "negative", s.err
}

func (s *stubClassifier) ClassifyEmotion(context.Context, string) (core.EmotionDistribution, error) {
	if s.err != nil {
		return nil, s.err
	}
	return core.EmotionDistribution{"anger": 0.6, "fear": 0.2, "joy": 0.2}, nil
}

func newService(err error) *core.PriorityService {
	c := &stubClassifier{err: err}
	return core.NewPriorityService(c, c, nil, zap.NewNop(), core.HistoryOptions{})
}

var testHeaders = HeaderNames{
	Score:     "X-Priority-Score",
	Band:      "X-Priority-Band",
	Breakdown: "X-Priority-Breakdown",
}

const rawMessage = "From: Boss <boss@example.com>\r\n" +
	"To: support@shop.test\r\n" +
	"Subject: Server down\r\n" +
	"\r\n" +
	"Checkout is not working, please fix asap\r\n"

func newPostfixFilter(service *core.PriorityService, modifySubject bool) *PostfixFilter {
	return NewPostfixFilter(
		service,
		vip.NewChecker([]string{"example.com"}, nil, zap.NewNop()),
		zap.NewNop(),
		"127.0.0.1:0",
		testHeaders,
		time.Second,
		"127.0.0.1",
		0,
		false,
		"",
		modifySubject,
	)
}

func TestParseMessage(t *testing.T) {
	email := parseMessage([]byte(rawMessage))
	assert.Equal(t, "Server down", email.Subject)
	assert.Equal(t, "Boss <boss@example.com>", email.From)
	assert.Equal(t, []string{"support@shop.test"}, email.To)
	assert.Equal(t, "Checkout is not working, please fix asap\r\n", email.Body)
}

func TestParseMessagePlainText(t *testing.T) {
	email := parseMessage([]byte("Note: my order never arrived and I want a refund"))
	assert.Empty(t, email.Subject)
	assert.Equal(t, "Note: my order never arrived and I want a refund", email.Body)
}

func TestParseMessageEncodedSubject(t *testing.T) {
	email := parseMessage([]byte("Subject: =?utf-8?q?Caf=C3=A9_problem?=\r\n\r\nbody"))
	assert.Equal(t, "Café problem", email.Subject)
}

func TestParseMessageMultipart(t *testing.T) {
	raw := "From: a@b.com\r\n" +
		"Subject: multi\r\n" +
		"Content-Type: multipart/mixed; boundary=outer\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: multipart/alternative; boundary=inner\r\n" +
		"\r\n" +
		"--inner\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"refund =3D now\r\n" +
		"--inner\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>refund</p>\r\n" +
		"--inner--\r\n" +
		"--outer\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"Y3Jhc2ggcmVw\r\nb3J0\r\n" +
		"--outer--\r\n"

	email := parseMessage([]byte(raw))
	assert.Contains(t, email.Body, "refund = now")
	assert.Contains(t, email.Body, "crash report")
	assert.NotContains(t, email.Body, "<p>")
}

func TestParseMessageImageOnlyIsNotScored(t *testing.T) {
	raw := "From: a@b.com\r\n" +
		"Content-Type: multipart/mixed; boundary=b\r\n" +
		"\r\n" +
		"--b\r\n" +
		"Content-Type: image/png\r\n" +
		"\r\n" +
		"xyz\r\n" +
		"--b--\r\n"

	email := ParseInput([]byte(raw))
	assert.Empty(t, email.Body)

	_, err := newService(nil).Analyze(context.Background(), email, false)
	assert.ErrorIs(t, err, core.ErrEmptyEmail)
}

func TestParseMessageHTMLOnly(t *testing.T) {
	raw := "From: a@b.com\r\n" +
		"Content-Type: multipart/alternative; boundary=b\r\n" +
		"\r\n" +
		"--b\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><head><style>p { color: red }</style></head>" +
		"<body><p>URGENT refund, app crash, not working</p><script>var x = 1;</script>" +
		"<p>Tom &amp; Jerry</p></body></html>\r\n" +
		"--b--\r\n"

	email := ParseInput([]byte(raw))
	assert.Contains(t, email.Body, "URGENT refund, app crash, not working")
	assert.Contains(t, email.Body, "Tom & Jerry")
	assert.NotContains(t, email.Body, "<p>")
	assert.NotContains(t, email.Body, "color")
	assert.NotContains(t, email.Body, "var x")

	result, err := newService(nil).Analyze(context.Background(), email, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, result.Urgency, 1e-12)
	assert.Equal(t, 70, result.Score)
}

func TestParseMessageSinglePartHTML(t *testing.T) {
	raw := "Subject: hi\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<div>please help <b>asap</b></div>\r\n"

	assert.Equal(t, "please help asap\n", ParseInput([]byte(raw)).Body)
}

func TestAnnotateAddsHeadersAndKeepsBody(t *testing.T) {
	f := newPostfixFilter(newService(nil), false)
	result := &core.PriorityResult{Score: 62, Band: core.BandMedium, Sentiment: 1, Emotion: 0.8, Urgency: 0.2}

	out := string(f.annotate([]byte(rawMessage), result, nil))
	assert.True(t, strings.HasPrefix(out, "X-Priority-Score: 62\r\nX-Priority-Band: Medium\r\n"))
	assert.Contains(t, out, "X-Priority-Breakdown: sentiment=1.00; emotion=0.80; urgency=0.20; vip=false\r\n")
	assert.True(t, strings.HasSuffix(out, rawMessage))
}

func TestAnnotatePrefixesHighPrioritySubject(t *testing.T) {
	f := newPostfixFilter(newService(nil), true)

	out := string(f.annotate([]byte(rawMessage), &core.PriorityResult{Score: 82, Band: core.BandHigh}, nil))
	assert.Contains(t, out, "Subject: [HIGH PRIORITY] Server down\r\n")
	assert.NotContains(t, out, "Subject: Server down")

	again := string(f.annotate([]byte(out), &core.PriorityResult{Score: 82, Band: core.BandHigh}, nil))
	assert.Equal(t, 1, strings.Count(again, "[HIGH PRIORITY]"))

	low := string(f.annotate([]byte(rawMessage), &core.PriorityResult{Score: 10, Band: core.BandLow}, nil))
	assert.Contains(t, low, "Subject: Server down\r\n")
}

func TestAnnotateRecordsAnalysisError(t *testing.T) {
	f := newPostfixFilter(newService(nil), true)

	out := string(f.annotate([]byte(rawMessage), nil, errors.New("model\nunavailable")))
	assert.True(t, strings.HasPrefix(out, "X-Priority-Analysis-Error: model unavailable\r\n"))
	assert.NotContains(t, out, "X-Priority-Score")
	assert.True(t, strings.HasSuffix(out, rawMessage))
}

func TestPrefixSubjectFoldedAndEncoded(t *testing.T) {
	header := "Subject: =?utf-8?q?Caf=C3=A9?=\r\n is down\r\nX-Other: 1\r\n\r\n"
	out := string(prefixSubject([]byte(header), "[!] "))
	assert.Contains(t, out, "Subject: =?utf-8?q?")
	assert.Contains(t, out, "X-Other: 1\r\n\r\n")

	decoded, err := decodeEncodedHeader(strings.TrimSpace(strings.SplitN(strings.TrimPrefix(out, "Subject: "), "\r\n", 2)[0]))
	require.NoError(t, err)
	assert.Equal(t, "[!] Café is down", decoded)
}

func TestProcessEmailResolvesVIP(t *testing.T) {
	f := newPostfixFilter(newService(nil), false)

	result, err := f.ProcessEmail(context.Background(), parseMessage([]byte(rawMessage)))
	require.NoError(t, err)
	assert.True(t, result.VIP)
	assert.Equal(t, 82, result.Score)
	assert.Equal(t, core.BandHigh, result.Band)

	email := parseMessage([]byte(rawMessage))
	email.From = "someone@elsewhere.org"
	email.Headers["From"] = []string{"someone@elsewhere.org"}
	result, err = f.ProcessEmail(context.Background(), email)
	require.NoError(t, err)
	assert.False(t, result.VIP)
	assert.Equal(t, 62, result.Score)
}

// captureBackend records messages delivered to a local SMTP server
type captureBackend struct {
	mu       sync.Mutex
	from     string
	to       []string
	messages [][]byte
	received chan struct{}
}

func (b *captureBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &captureSession{b: b}, nil
}

type captureSession struct {
	b *captureBackend
}

func (s *captureSession) Reset() {}

func (s *captureSession) Logout() error { return nil }

func (s *captureSession) Mail(from string, _ *smtp.MailOptions) error {
	s.b.mu.Lock()
	s.b.from = from
	s.b.mu.Unlock()
	return nil
}

func (s *captureSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.b.mu.Lock()
	s.b.to = append(s.b.to, to)
	s.b.mu.Unlock()
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.b.mu.Lock()
	s.b.messages = append(s.b.messages, data)
	s.b.mu.Unlock()
	s.b.received <- struct{}{}
	return nil
}

func TestHandleForwardsToPostfix(t *testing.T) {
	backend := &captureBackend{received: make(chan struct{}, 1)}
	server := smtp.NewServer(backend)
	server.Domain = "localhost"
	server.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(l) }()
	t.Cleanup(func() { server.Close() })

	f := newPostfixFilter(newService(errors.New("inference down")), false)
	f.postfixEnabled = true
	f.postfixPort = l.Addr().(*net.TCPAddr).Port

	require.NoError(t, f.handle("boss@example.com", []string{"support@shop.test"}, []byte(rawMessage)))

	select {
	case <-backend.received:
	case <-time.After(5 * time.Second):
		t.Fatal("message was not forwarded")
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, "boss@example.com", backend.from)
	assert.Equal(t, []string{"support@shop.test"}, backend.to)
	require.Len(t, backend.messages, 1)
	assert.Contains(t, string(backend.messages[0]), "classification failed: inference down")
	assert.Contains(t, string(backend.messages[0]), "Checkout is not working")
}

func TestCliFilterPrintsBreakdown(t *testing.T) {
	var out bytes.Buffer
	f := NewCliFilter(newService(nil), nil, true, zap.NewNop(), &out, false)

	result, err := f.ProcessEmail(context.Background(), ParseInput([]byte(rawMessage)))
	require.NoError(t, err)
	assert.Equal(t, 82, result.Score)

	printed := out.String()
	assert.Contains(t, printed, "Priority: 82 / 100\n")
	assert.Contains(t, printed, "Band: High (escalate immediately)\n")
	assert.Contains(t, printed, "Sentiment score: 1.00")
	assert.Contains(t, printed, "Negative emotion score: 0.80\n")
	assert.Contains(t, printed, "Urgency score: 0.20\n")
	assert.Contains(t, printed, "VIP bonus applied: yes\n")
	assert.NotContains(t, printed, "Model used")
}

func TestCliFilterEmptyEmail(t *testing.T) {
	f := NewCliFilter(newService(nil), nil, false, zap.NewNop(), io.Discard, true)

	_, err := f.ProcessEmail(context.Background(), ParseInput([]byte("   ")))
	assert.ErrorIs(t, err, core.ErrEmptyEmail)
}

func TestWriteHistory(t *testing.T) {
	var out bytes.Buffer
	WriteHistory(&out, nil)
	assert.Equal(t, "No recorded decisions\n", out.String())

	out.Reset()
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	WriteHistory(&out, []*core.HistoryEntry{
		{ID: "b", Sender: "boss@example.com", Subject: "Server down", Score: 82, Band: core.BandHigh, Sentiment: 1, Emotion: 0.8, Urgency: 0.2, VIP: true, RecordedAt: at},
		{ID: "a", Sender: "someone@else.test", Subject: "Thanks", Score: 10, Band: core.BandLow, RecordedAt: at.Add(-time.Hour)},
	})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "2024-03-01T09:30:00Z  b   82  High"))
	assert.Contains(t, lines[0], "vip=yes  sentiment=1.00 emotion=0.80 urgency=0.20  boss@example.com  \"Server down\"")
	assert.Contains(t, lines[1], "vip=no")
}
