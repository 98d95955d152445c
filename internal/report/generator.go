// Package report builds the cluster by rule compliance matrix.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/telemeter-reporter/internal/models"
	"github.com/ppiankov/telemeter-reporter/internal/query"
	"github.com/ppiankov/telemeter-reporter/internal/telemeter"
	"github.com/ppiankov/telemeter-reporter/internal/window"
)

// CappedSuffix marks clusters whose global window was shortened
const CappedSuffix = "*"

var errNotEvaluated = errors.New("query not evaluated")

// Querier runs instant queries against the metrics store
type Querier interface {
	InstantQuery(ctx context.Context, query string, at *time.Time) ([]telemeter.Sample, error)
}

// Options control a single report generation
type Options struct {
	// ReferenceTime is the instant the report describes. Nil means now.
	ReferenceTime *time.Time
	// AdjustDuration caps duration variables at cluster age.
	AdjustDuration bool
}

// Generator resolves every rule for every cluster
type Generator struct {
	querier     Querier
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewGenerator creates a generator running up to concurrency queries at once
func NewGenerator(querier Querier, logger *slog.Logger, concurrency int) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Generator{
		querier:     querier,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

type pendingQuery struct {
	row, col int
	query    string
}

// Plan builds the matrix skeleton and the concrete query for every cell
// without contacting the metrics store. Cells whose query cannot be built
// already carry their failure; all other cells are marked not evaluated.
func (g *Generator) Plan(clusters []models.Cluster, rules []models.Rule, globals models.GlobalVars, opts Options) (*models.Matrix, error) {
	m, _, err := g.plan(clusters, rules, globals, opts)
	return m, err
}

func (g *Generator) plan(clusters []models.Cluster, rules []models.Rule, globals models.GlobalVars, opts Options) (*models.Matrix, []pendingQuery, error) {
	reference := window.Reference(opts.ReferenceTime, g.now)

	globalDays, hasGlobal, err := globals.Duration()
	if err != nil {
		return nil, nil, err
	}

	matrix := &models.Matrix{Rows: make([]models.Row, len(clusters))}
	pending := make([]pendingQuery, 0, len(clusters)*len(rules))

	for i, cluster := range clusters {
		row := models.Row{
			Cluster:     cluster,
			DisplayName: cluster.Name,
			Cells:       make([]models.Cell, len(rules)),
		}

		var clusterOverride *int
		if hasGlobal {
			row.EffectiveDuration = globalDays
			if opts.AdjustDuration {
				if adjusted, capped := window.Adjust(globalDays, reference, cluster.CreationTimestamp); capped {
					row.DisplayName = cluster.WithSuffix(CappedSuffix).Name
					row.Capped = true
					row.EffectiveDuration = adjusted
					clusterOverride = &adjusted
					g.logger.Warn("cluster younger than report window, duration capped",
						slog.String("cluster", cluster.Name),
						slog.Int("requested_days", globalDays),
						slog.Int("effective_days", adjusted),
					)
				}
			}
		}

		selector := query.Selector(cluster.ExternalID)
		for j, rule := range rules {
			cell := models.Cell{
				Rule: rule.Name,
				Goal: rule.GoalPercent(),
				SLI:  models.SLIFailure(errNotEvaluated),
			}

			override, err := g.ruleOverride(rule, cluster, reference, opts, clusterOverride)
			if err != nil {
				row.Cells[j] = failedCell(cell, err)
				g.logger.Warn("failed to resolve rule duration",
					slog.String("cluster", cluster.Name),
					slog.String("rule", rule.Name),
					slog.String("error", err.Error()),
				)
				continue
			}

			q, err := query.Build(rule, query.BuildVars(globals, rule.Vars, selector, override))
			if err != nil {
				row.Cells[j] = failedCell(cell, err)
				g.logger.Warn("failed to build query",
					slog.String("cluster", cluster.Name),
					slog.String("rule", rule.Name),
					slog.String("error", err.Error()),
				)
				continue
			}

			cell.Query = q
			row.Cells[j] = cell
			pending = append(pending, pendingQuery{row: i, col: j, query: q})
		}

		matrix.Rows[i] = row
	}

	return matrix, pending, nil
}

// ruleOverride picks the duration forced into a rule's variables. A rule's
// own duration wins over the cluster-level cap.
func (g *Generator) ruleOverride(rule models.Rule, cluster models.Cluster, reference time.Time, opts Options, clusterOverride *int) (*int, error) {
	days, ok, err := rule.Duration()
	if err != nil {
		return nil, err
	}
	if !ok {
		return clusterOverride, nil
	}
	if !opts.AdjustDuration {
		return &days, nil
	}
	if adjusted, capped := window.Adjust(days, reference, cluster.CreationTimestamp); capped {
		g.logger.Warn("cluster younger than rule window, duration capped",
			slog.String("cluster", cluster.Name),
			slog.String("rule", rule.Name),
			slog.Int("requested_days", days),
			slog.Int("effective_days", adjusted),
		)
		return &adjusted, nil
	}
	return &days, nil
}

// Generate resolves every (cluster, rule) pair. Individual query failures
// are recorded in their cells; an error is returned only for invalid input
// or when ctx is cancelled.
func (g *Generator) Generate(ctx context.Context, clusters []models.Cluster, rules []models.Rule, globals models.GlobalVars, opts Options) (*models.Matrix, error) {
	matrix, pending, err := g.plan(clusters, rules, globals, opts)
	if err != nil {
		return nil, err
	}

	pool := NewWorkerPool(g.concurrency, g.logger)
	pool.Start(ctx)

	for _, p := range pending {
		row := &matrix.Rows[p.row]
		cell := &row.Cells[p.col]
		clusterName := row.DisplayName
		ok := pool.Submit(func(ctx context.Context) {
			g.logger.Info("resolving rule",
				slog.String("cluster", clusterName),
				slog.String("rule", cell.Rule),
			)
			g.logger.Debug("query", slog.String("promql", p.query))

			value, err := g.resolve(ctx, p.query, opts.ReferenceTime)
			if err != nil {
				*cell = failedCell(*cell, err)
				g.logger.Warn("failed to resolve rule",
					slog.String("cluster", clusterName),
					slog.String("rule", cell.Rule),
					slog.String("error", err.Error()),
				)
				return
			}
			cell.SLI = models.SLIValue(value)
			cell.Error = ""
		})
		if !ok {
			break
		}
	}

	pool.Stop()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("report generation interrupted: %w", err)
	}
	return matrix, nil
}

func (g *Generator) resolve(ctx context.Context, q string, at *time.Time) (float64, error) {
	samples, err := g.querier.InstantQuery(ctx, q, at)
	if err != nil {
		return 0, err
	}
	v, err := telemeter.FirstValue(samples)
	if err != nil {
		return 0, err
	}
	return v * 100, nil
}

func failedCell(cell models.Cell, err error) models.Cell {
	cell.SLI = models.SLIFailure(err)
	cell.Error = err.Error()
	return cell
}
