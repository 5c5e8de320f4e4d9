package factory

import (
	"fmt"
	"os"

	"github.com/mikey/email-priority/internal/adapters/filter"
	"github.com/mikey/email-priority/internal/config"
	"github.com/mikey/email-priority/internal/core"
	"github.com/mikey/email-priority/internal/ports"
	"github.com/mikey/email-priority/internal/vip"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg             *config.Config
	logger          *zap.Logger
	priorityService *core.PriorityService
	vipChecker      *vip.Checker
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, priorityService *core.PriorityService, vipChecker *vip.Checker) *FilterFactory {
	return &FilterFactory{
		cfg:             cfg,
		logger:          logger,
		priorityService: priorityService,
		vipChecker:      vipChecker,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	filterType := f.cfg.GetString("server.filter_type")

	switch filterType {
	case "postfix":
		timeout, err := f.cfg.GetDuration("server.analysis_timeout")
		if err != nil {
			return nil, fmt.Errorf("invalid analysis timeout: %w", err)
		}
		return filter.NewPostfixFilter(
			f.priorityService,
			f.vipChecker,
			f.logger,
			f.cfg.GetString("server.listen_address"),
			filter.HeaderNames{
				Score:     f.cfg.GetString("server.headers.score"),
				Band:      f.cfg.GetString("server.headers.band"),
				Breakdown: f.cfg.GetString("server.headers.breakdown"),
			},
			timeout,
			f.cfg.GetString("server.postfix.address"),
			f.cfg.GetInt("server.postfix.port"),
			f.cfg.GetBool("server.postfix.enabled"),
			f.cfg.GetString("server.subject_prefix"),
			f.cfg.GetBool("server.modify_subject"),
		), nil
	case "cli":
		return filter.NewCliFilter(
			f.priorityService,
			f.vipChecker,
			f.cfg.GetBool("cli.vip"),
			f.logger,
			os.Stdout,
			f.cfg.GetBool("cli.verbose"),
		), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", filterType)
	}
}
