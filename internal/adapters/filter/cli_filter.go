package filter

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mikey/email-priority/internal/core"
	"github.com/mikey/email-priority/internal/vip"
	"go.uber.org/zap"
)

// CliFilter implements a command-line interface for priority scoring
type CliFilter struct {
	service  *core.PriorityService
	vip      *vip.Checker
	forceVIP bool
	logger   *zap.Logger
	out      io.Writer
	verbose  bool
}

// NewCliFilter creates a new CLI filter. forceVIP marks every email as
// coming from a VIP sender regardless of the configured lists.
func NewCliFilter(service *core.PriorityService, vipChecker *vip.Checker, forceVIP bool, logger *zap.Logger, out io.Writer, verbose bool) *CliFilter {
	return &CliFilter{
		service:  service,
		vip:      vipChecker,
		forceVIP: forceVIP,
		logger:   logger,
		out:      out,
		verbose:  verbose,
	}
}

// ParseInput builds an Email from an RFC 5322 message or plain text
func ParseInput(raw []byte) *core.Email {
	return parseMessage(raw)
}

// ProcessEmail scores an email and prints the results
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.PriorityResult, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.From))

	vipSender := f.forceVIP || (f.vip != nil && f.vip.IsVIP(email.From))

	fmt.Fprintf(f.out, "\n=== Email Summary ===\n")
	if email.From != "" {
		fmt.Fprintf(f.out, "From: %s\n", email.From)
	}
	if email.Subject != "" {
		fmt.Fprintf(f.out, "Subject: %s\n", email.Subject)
	}
	fmt.Fprintf(f.out, "Body length: %d bytes\n", len(email.Body))

	if f.verbose {
		preview := []rune(email.Body)
		if len(preview) > 500 {
			preview = append(preview[:500], []rune("...")...)
		}
		fmt.Fprintf(f.out, "\nBody preview:\n%s\n", string(preview))
	}

	startTime := time.Now()
	result, err := f.service.Analyze(ctx, email, vipSender)
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err))
		return nil, err
	}
	duration := time.Since(startTime)

	fmt.Fprintf(f.out, "\n=== Priority ===\n")
	fmt.Fprintf(f.out, "Priority: %d / 100\n", result.Score)
	fmt.Fprintf(f.out, "Band: %s (%s)\n", result.Band, result.Band.Action())

	fmt.Fprintf(f.out, "\n=== Breakdown ===\n")
	fmt.Fprintf(f.out, "Sentiment score: %.2f (1 = negative, 0 = positive)\n", result.Sentiment)
	fmt.Fprintf(f.out, "Negative emotion score: %.2f\n", result.Emotion)
	fmt.Fprintf(f.out, "Urgency score: %.2f\n", result.Urgency)
	fmt.Fprintf(f.out, "VIP bonus applied: %s\n", yesNo(result.VIP))

	if f.verbose {
		fmt.Fprintf(f.out, "\nSentiment label: %s\n", result.SentimentLabel)
		fmt.Fprintf(f.out, "Model used: %s\n", result.ModelUsed)
		fmt.Fprintf(f.out, "Processing time: %v\n", duration)
	}

	return result, nil
}

// WriteHistory prints recorded decisions, one per line, newest first
func WriteHistory(out io.Writer, entries []*core.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintf(out, "No recorded decisions\n")
		return
	}

	for _, e := range entries {
		fmt.Fprintf(out, "%s  %s  %3d  %-6s  vip=%s  sentiment=%.2f emotion=%.2f urgency=%.2f  %s  %q\n",
			e.RecordedAt.Format(time.RFC3339),
			e.ID,
			e.Score,
			e.Band,
			yesNo(e.VIP),
			e.Sentiment,
			e.Emotion,
			e.Urgency,
			e.Sender,
			e.Subject)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
