package vip

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Checker decides whether a sender should receive the VIP bonus
type Checker struct {
	domains map[string]struct{}
	senders map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a new VIP checker from domain and full-address lists
func NewChecker(domains, senders []string, logger *zap.Logger) *Checker {
	c := &Checker{
		domains: normalize(domains),
		senders: normalize(senders),
		logger:  logger,
	}

	if (len(c.domains) > 0 || len(c.senders) > 0) && logger != nil {
		logger.Info("Initialized VIP checker",
			zap.Int("domains", len(c.domains)),
			zap.Int("senders", len(c.senders)))
	}

	return c
}

func normalize(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

// IsVIP checks the sender address, which may carry a display name,
// against the configured senders and domains
func (c *Checker) IsVIP(from string) bool {
	if len(c.domains) == 0 && len(c.senders) == 0 {
		return false
	}

	address := Address(from)
	if address == "" {
		return false
	}

	if _, ok := c.senders[address]; ok {
		c.debug("Sender is VIP", address)
		return true
	}

	at := strings.LastIndex(address, "@")
	if at < 0 {
		return false
	}
	if _, ok := c.domains[address[at+1:]]; ok {
		c.debug("Sender domain is VIP", address)
		return true
	}

	return false
}

func (c *Checker) debug(msg, address string) {
	if c.logger != nil {
		c.logger.Debug(msg, zap.String("email", address))
	}
}

// Address extracts the lowercased bare address from a From value
func Address(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return ""
	}
	if parsed, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(parsed.Address)
	}
	return strings.ToLower(strings.Trim(from, "<>"))
}
