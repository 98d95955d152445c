package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/telemeter-reporter/internal/logging"
	"github.com/ppiankov/telemeter-reporter/internal/models"
	"github.com/ppiankov/telemeter-reporter/internal/report"
	"github.com/ppiankov/telemeter-reporter/internal/reporter"
	"github.com/ppiankov/telemeter-reporter/internal/scorer"
	"github.com/ppiankov/telemeter-reporter/internal/telemeter"
	"github.com/ppiankov/telemeter-reporter/pkg/config"
)

const toolName = "telemeter-reporter"

// reportFlags holds raw flag values that need parsing in PreRunE
type reportFlags struct {
	queryTimeout string
	at           string
	noColor      bool
	noAdjust     bool
}

// NewReportCmd creates the report command
func NewReportCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	var flags reportFlags

	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"generate"},
		Short:   "Generate the SLI compliance report",
		Long: `Resolve the clusters matching the search, evaluate every configured
rule for each cluster and print the compliance matrix.

Durations accept the d suffix for days (e.g. 7d). --at takes an RFC3339
timestamp or a duration meaning "that long ago".`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return prepareReport(cfg, flags, time.Now())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), cfg, cmd.Flags().Changed("format"), cmd.Flags().Changed("color"),
				cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&cfg.ConfigPath, "config", "", "Path to config file")
	cmd.Flags().StringVar(&cfg.Search, "search", "", "Cluster directory search expression")
	cmd.Flags().StringSliceVar(&cfg.ExcludeClusters, "exclude", nil, "Cluster name patterns to skip (glob)")

	// Output flags
	cmd.Flags().StringVar(&cfg.Format, "format", cfg.Format, "Output format ("+reporter.FormatNames()+")")
	cmd.Flags().BoolVar(&cfg.Color, "color", cfg.Color, "Colour SLI values by status")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "Disable colour")
	cmd.Flags().BoolVar(&cfg.Tooltips, "tooltips", false, "Show rule descriptions as header tooltips (html)")
	cmd.Flags().StringVar(&cfg.Title, "title", "", "Report title (html)")
	cmd.Flags().StringVar(&cfg.Footer, "footer", "", "Report footer (html)")
	cmd.Flags().StringVar(&cfg.OutputDir, "output-dir", "", "Also write report.<ext> into this directory")

	// Query flags
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Queries run in parallel")
	cmd.Flags().StringVar(&flags.queryTimeout, "query-timeout", "2m", "Per-query timeout (e.g., 30s, 2m)")
	cmd.Flags().IntVar(&cfg.QueryRate, "query-rate", cfg.QueryRate, "Maximum queries per second (0 = unlimited)")
	cmd.Flags().StringVar(&flags.at, "at", "", "Reference time: RFC3339 or a duration ago (e.g., 7d)")
	cmd.Flags().BoolVar(&flags.noAdjust, "no-adjust-duration", false, "Do not cap durations at cluster age")

	// Operational flags
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Print the generated queries without running them")

	return cmd
}

// prepareReport validates flags before any remote call
func prepareReport(cfg *config.Config, flags reportFlags, now time.Time) error {
	var err error

	if _, err := reporter.ParseFormat(cfg.Format); err != nil {
		return fmt.Errorf("invalid --format value: %w", err)
	}

	if flags.queryTimeout != "" {
		cfg.QueryTimeout, err = config.ParseDuration(flags.queryTimeout)
		if err != nil {
			return fmt.Errorf("%w: invalid --query-timeout duration: %v", config.ErrInvalidConfig, err)
		}
	}

	if flags.at != "" {
		at, err := config.ParseReferenceTime(flags.at, now)
		if err != nil {
			return fmt.Errorf("%w: invalid --at value: %v", config.ErrInvalidConfig, err)
		}
		cfg.ReferenceTime = &at
	}

	if cfg.Concurrency < 1 {
		return fmt.Errorf("%w: --concurrency must be at least 1", config.ErrInvalidConfig)
	}
	if cfg.QueryRate < 0 {
		return fmt.Errorf("%w: --query-rate must not be negative", config.ErrInvalidConfig)
	}

	if flags.noColor {
		cfg.Color = false
	}
	cfg.AdjustDuration = !flags.noAdjust

	return nil
}

// runReport executes the report workflow
func runReport(ctx context.Context, cfg *config.Config, formatSet, colorSet bool, out, progress io.Writer) error {
	startTime := time.Now()

	fc, err := loadFileConfig(cfg)
	if err != nil {
		return err
	}

	if !formatSet && fc.Format != "" {
		cfg.Format = fc.Format
	}
	format, err := reporter.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	rules := fc.ModelRules()
	globals := fc.ModelGlobalVars()

	clusters, err := searchClusters(ctx, cfg, fc)
	if err != nil {
		return err
	}
	fmt.Fprintf(progress, "Found %d clusters matching %q\n", len(clusters), cfg.Search)

	opts := report.Options{
		ReferenceTime:  cfg.ReferenceTime,
		AdjustDuration: cfg.AdjustDuration,
	}

	if cfg.DryRun {
		gen := report.NewGenerator(nil, logging.Component("report"), cfg.Concurrency)
		matrix, err := gen.Plan(clusters, rules, globals, opts)
		if err != nil {
			return fmt.Errorf("failed to plan report: %w", err)
		}
		writePlan(out, matrix)
		return nil
	}

	client, err := telemeter.NewClient(telemeter.Options{
		URL:     fc.API.Telemeter.URL,
		Token:   fc.API.Telemeter.Token,
		CAFile:  fc.API.Telemeter.CAFile,
		Timeout: cfg.QueryTimeout,
		Rate:    cfg.QueryRate,
		Logger:  logging.Component("telemeter"),
	})
	if err != nil {
		return fmt.Errorf("failed to create telemeter client: %w", err)
	}

	gen := report.NewGenerator(client, logging.Component("report"), cfg.Concurrency)
	matrix, err := gen.Generate(ctx, clusters, rules, globals, opts)
	if err != nil {
		return err
	}

	summary := scorer.Summarize(matrix)
	fmt.Fprintf(progress, "Evaluated %d cells: %d success, %d caution, %d danger, %d unavailable\n",
		summary.Total(), summary.Success, summary.Caution, summary.Danger, summary.Unavailable)

	renderOpts := reporter.NewOptions(cfg, format)
	renderOpts.Report = buildReport(cfg, rules, matrix, startTime)
	if format.IsText() && !colorSet && !reporter.IsTerminal(out) {
		renderOpts.Color = false
	}

	headers := reporter.Headers(rules, cfg.Tooltips && format == reporter.FormatHTML)
	rendered, err := reporter.Render(headers, matrix, renderOpts)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	fmt.Fprint(out, rendered)

	if cfg.OutputDir != "" {
		if format.IsText() && renderOpts.Color {
			renderOpts.Color = false
			if rendered, err = reporter.Render(headers, matrix, renderOpts); err != nil {
				return fmt.Errorf("failed to render report: %w", err)
			}
		}
		path, err := reporter.Write(cfg.OutputDir, format, rendered)
		if err != nil {
			return err
		}
		fmt.Fprintf(progress, "Report written to: %s\n", path)
	}

	slog.Debug("report complete",
		slog.Int("clusters", len(clusters)),
		slog.Int("rules", len(rules)),
		slog.Duration("elapsed", time.Since(startTime).Round(time.Millisecond)),
	)
	return nil
}

// buildReport constructs the JSON envelope
func buildReport(cfg *config.Config, rules []models.Rule, matrix *models.Matrix, startTime time.Time) *models.Report {
	generatedAt := time.Now().UTC()
	clusterCount := 0
	if matrix != nil {
		clusterCount = len(matrix.Rows)
	}

	return &models.Report{
		Tool:      toolName,
		Version:   version,
		Timestamp: generatedAt.Format(time.RFC3339),
		Metadata: models.Metadata{
			GeneratedAt:        generatedAt,
			ReferenceTime:      cfg.ReferenceTime,
			Search:             cfg.Search,
			ClusterCount:       clusterCount,
			RuleCount:          len(rules),
			FailedQueries:      matrix.FailedCells(),
			GenerationDuration: time.Since(startTime).Round(time.Second).String(),
		},
		Rules: rules,
	}
}

// writePlan prints the query of every cell, one per line
func writePlan(out io.Writer, matrix *models.Matrix) {
	for _, row := range matrix.Rows {
		for _, cell := range row.Cells {
			if cell.Query == "" {
				fmt.Fprintf(out, "%s\t%s\t-- %s\n", row.DisplayName, cell.Rule, cell.Error)
				continue
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", row.DisplayName, cell.Rule, cell.Query)
		}
	}
}
