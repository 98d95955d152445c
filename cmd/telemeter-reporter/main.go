package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/telemeter-reporter/internal/app"
	"github.com/ppiankov/telemeter-reporter/internal/directory"
	"github.com/ppiankov/telemeter-reporter/internal/logging"
	"github.com/ppiankov/telemeter-reporter/internal/reporter"
	"github.com/ppiankov/telemeter-reporter/internal/telemeter"
	"github.com/ppiankov/telemeter-reporter/pkg/config"
)

var (
	version    = "0.1.0"
	verbose    bool
	isFirstRun bool
)

// Exit codes for structured error reporting.
const (
	ExitSuccess    = 0
	ExitInternal   = 1
	ExitInvalidArg = 2
	ExitNotFound   = 3
	ExitAuth       = 4
	ExitNetwork    = 5
)

func main() {
	logging.Init(false)
	isFirstRun = app.IsFirstRun()

	root := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()

	if err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(classifyError(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "telemeter-reporter",
		Short: "SLI compliance reports for fleets of clusters",
		Long: `telemeter-reporter resolves a set of clusters from the cluster directory,
evaluates the configured SLI rules for each of them against Telemeter and
renders a compliance matrix of goals and measured performance.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(verbose)
			if isFirstRun {
				fmt.Fprintf(cmd.ErrOrStderr(), "First run: put your configuration in ./%s or pass --config\n",
					config.DefaultConfigFileYAML)
			}
		},
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")
	root.SilenceUsage = true
	root.SilenceErrors = true

	root.AddCommand(NewReportCmd())
	root.AddCommand(NewClustersCmd())
	root.AddCommand(NewServeCmd())
	root.AddCommand(NewDeployCmd())
	root.AddCommand(NewVersionCmd())

	return root
}

func classifyError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, directory.ErrTokenExchange) ||
		errors.Is(err, directory.ErrUnauthorized) ||
		errors.Is(err, directory.ErrInvalidToken) ||
		telemeter.IsAuthError(err) {
		return ExitAuth
	}

	if errors.Is(err, config.ErrInvalidConfig) || errors.Is(err, reporter.ErrUnknownFormat) {
		return ExitInvalidArg
	}

	if errors.Is(err, os.ErrNotExist) {
		return ExitNotFound
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "not a directory") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "no such file") ||
		strings.Contains(msg, "not found") {
		return ExitNotFound
	}

	if strings.Contains(msg, "dial") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable") {
		return ExitNetwork
	}

	if strings.Contains(msg, "required") ||
		strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "must be") ||
		strings.Contains(msg, "expected") {
		return ExitInvalidArg
	}

	return ExitInternal
}
