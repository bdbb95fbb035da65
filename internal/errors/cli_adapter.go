package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Process exit codes returned by the pxbuild CLI.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitConfig   = 7
	ExitNetwork  = 8
	ExitInternal = 10
	ExitSource   = 11 // the project's sources did not bundle
	ExitOutput   = 12
	ExitRuntime  = 13
)

// CLIErrorAdapter turns build errors into a one-line message and an exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	pe, ok := As(err)
	if !ok {
		return ExitFailure
	}
	switch pe.Category {
	case CategoryValidation:
		return ExitUsage
	case CategoryConfig:
		return ExitConfig
	case CategoryNetwork:
		return ExitNetwork
	case CategoryResolve, CategoryTransform:
		return ExitSource
	case CategorySink, CategoryStorage:
		return ExitOutput
	case CategoryInvariant, CategoryInternal:
		return ExitInternal
	case CategoryRuntime:
		return ExitRuntime
	default:
		return ExitFailure
	}
}

// FormatError renders err for the terminal. Verbose mode prints the full chain.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	pe, ok := As(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return pe.Error()
	}

	switch pe.Category {
	case CategoryResolve:
		msg := fmt.Sprintf("cannot resolve %q", pe.Context["import"])
		if importer, _ := pe.Context["importer"].(string); importer != "" {
			msg += " from " + importer
		}
		return msg
	case CategoryTransform:
		unit, _ := pe.Context["unit"].(string)
		if pe.Cause == nil {
			return pe.Message
		}
		if unit == "" {
			return fmt.Sprintf("%s: %v", pe.Message, pe.Cause)
		}
		return fmt.Sprintf("%s [%s]: %v", pe.Message, unit, pe.Cause)
	case CategoryConfig, CategoryValidation:
		if field, _ := pe.Context["field"].(string); field != "" {
			return fmt.Sprintf("%s: %s: %v", pe.Message, field, pe.Context["reason"])
		}
		if path, _ := pe.Context["path"].(string); path != "" {
			return fmt.Sprintf("%s: %s", pe.Message, path)
		}
		return pe.Message
	case CategorySink:
		return fmt.Sprintf("%s: %v", pe.Message, pe.Cause)
	default:
		return fmt.Sprintf("%s: %s", pe.Category, pe.Message)
	}
}

// Report writes the formatted error to w, logs it when useful and returns
// the exit code.
func (a *CLIErrorAdapter) Report(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	_, _ = fmt.Fprintln(w, a.FormatError(err))
	return a.ExitCodeFor(err)
}

// HandleError reports err on stderr and exits the process.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	os.Exit(a.Report(os.Stderr, err))
}

// Source errors are already explained by the formatted message.
func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if pe, ok := As(err); ok {
		switch pe.Category {
		case CategoryInternal, CategoryInvariant, CategoryRuntime:
			return true
		}
		return false
	}
	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	pe, ok := As(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	attrs := []slog.Attr{slog.String("category", string(pe.Category))}
	for k, v := range pe.Context {
		attrs = append(attrs, slog.Any(k, v))
	}
	if pe.Cause != nil {
		attrs = append(attrs, slog.String("cause", pe.Cause.Error()))
	}
	a.logger.LogAttrs(context.Background(), levelFromSeverity(pe.Severity), pe.Message, attrs...)
}

func levelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
