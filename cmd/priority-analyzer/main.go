package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mikey/email-priority/internal/adapters/filter"
	"github.com/mikey/email-priority/internal/core"
	"github.com/mikey/email-priority/internal/di"
	"github.com/mikey/email-priority/internal/factory"
	"github.com/mikey/email-priority/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Parse command line flags
	flags, err := di.ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	classifiers *factory.ClassifierFactory,
	history core.HistoryRepository,
) error {
	defer logger.Sync()
	defer classifiers.Close()

	// Stop the history store's cleanup task on exit
	if stopper, ok := history.(interface{ Stop() }); ok {
		defer stopper.Stop()
	}

	// Answer history queries without scoring anything
	if flags.Recent > 0 || flags.EntryID != "" {
		return showHistory(context.Background(), history, flags, os.Stdout)
	}

	// Read email from file or stdin
	raw, err := readInput(flags.InputFile, logger)
	if err != nil {
		return err
	}

	// Score and print
	_, err = emailFilter.ProcessEmail(context.Background(), filter.ParseInput(raw))
	return err
}

// showHistory prints either one recorded decision or the most recent ones
func showHistory(ctx context.Context, history core.HistoryRepository, flags *di.CLIFlags, out io.Writer) error {
	if history == nil {
		return errors.New("history is disabled; enable history in the file passed with -config")
	}

	if flags.EntryID != "" {
		entry, err := history.Get(ctx, flags.EntryID)
		if err != nil {
			return fmt.Errorf("failed to load decision %s: %w", flags.EntryID, err)
		}
		filter.WriteHistory(out, []*core.HistoryEntry{entry})
		return nil
	}

	entries, err := history.Recent(ctx, flags.Recent)
	if err != nil {
		return fmt.Errorf("failed to list recent decisions: %w", err)
	}
	filter.WriteHistory(out, entries)
	return nil
}

// readInput reads the message from path, or from stdin when path is empty
func readInput(path string, logger *zap.Logger) ([]byte, error) {
	if path == "" {
		logger.Debug("Reading email from stdin")
		return io.ReadAll(os.Stdin)
	}

	logger.Debug("Reading email from file", zap.String("file", path))
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return raw, nil
}
