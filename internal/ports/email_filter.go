package ports

import (
	"context"

	"github.com/mikey/email-priority/internal/core"
)

// EmailFilter defines the interface for email priority transports
type EmailFilter interface {
	// ProcessEmail scores an email and returns the priority result
	ProcessEmail(ctx context.Context, email *core.Email) (*core.PriorityResult, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}
