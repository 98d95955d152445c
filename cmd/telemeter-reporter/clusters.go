package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ppiankov/telemeter-reporter/internal/directory"
	"github.com/ppiankov/telemeter-reporter/internal/logging"
	"github.com/ppiankov/telemeter-reporter/internal/models"
	"github.com/ppiankov/telemeter-reporter/pkg/config"
)

// NewClustersCmd creates the clusters command
func NewClustersCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "List the clusters matching a search",
		Long: `Query the cluster directory with the configured search and list the
clusters a report would cover, after exclusions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClusters(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cfg.ConfigPath, "config", "", "Path to config file")
	cmd.Flags().StringVar(&cfg.Search, "search", "", "Cluster directory search expression")
	cmd.Flags().StringSliceVar(&cfg.ExcludeClusters, "exclude", nil, "Cluster name patterns to skip (glob)")

	return cmd
}

func runClusters(ctx context.Context, cfg *config.Config, out io.Writer) error {
	fc, err := loadFileConfig(cfg)
	if err != nil {
		return err
	}

	clusters, err := searchClusters(ctx, cfg, fc)
	if err != nil {
		return err
	}

	writeClusterTable(out, clusters, time.Now().UTC())
	return nil
}

// loadFileConfig loads --config or the first discovered config file and
// merges its search and exclusions into cfg.
func loadFileConfig(cfg *config.Config) (*config.FileConfig, error) {
	var (
		fc   *config.FileConfig
		path string
		err  error
	)

	if strings.TrimSpace(cfg.ConfigPath) != "" {
		path = cfg.ConfigPath
		fc, err = config.LoadFile(path)
	} else {
		fc, path, err = config.AutoLoadFile()
	}
	if err != nil {
		return nil, err
	}
	if fc == nil {
		return nil, fmt.Errorf("no configuration file found, create ./%s or pass --config: %w",
			config.DefaultConfigFileYAML, os.ErrNotExist)
	}
	slog.Debug("configuration loaded", slog.String("path", path))

	cfg.File = fc
	if strings.TrimSpace(cfg.Search) == "" {
		cfg.Search = fc.Search
	}
	cfg.ExcludeClusters = append(cfg.ExcludeClusters, fc.ExcludeClusters...)
	cfg.Normalize()

	if cfg.Search == "" {
		return nil, fmt.Errorf("%w: a cluster search is required (--search or search in config)", config.ErrInvalidConfig)
	}
	return fc, nil
}

// searchClusters resolves the cluster set and drops excluded names
func searchClusters(ctx context.Context, cfg *config.Config, fc *config.FileConfig) ([]models.Cluster, error) {
	logger := logging.Component("directory")

	client, err := directory.NewClient(ctx, directory.Options{
		URL:       fc.API.UHC.URL,
		Token:     fc.API.UHC.Token,
		PublicKey: fc.API.UHC.PublicKey,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create directory client: %w", err)
	}

	found, err := client.SearchClusters(ctx, cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("failed to search clusters: %w", err)
	}

	clusters := make([]models.Cluster, 0, len(found))
	for _, c := range found {
		if cfg.IsClusterExcluded(c.Name) {
			logger.Debug("cluster excluded", slog.String("cluster", c.Name))
			continue
		}
		clusters = append(clusters, c)
	}

	logger.Info("clusters resolved",
		slog.Int("found", len(found)),
		slog.Int("selected", len(clusters)),
	)
	return clusters, nil
}

func writeClusterTable(out io.Writer, clusters []models.Cluster, now time.Time) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Name", "ID", "External ID", "Created", "Age (days)"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	for _, c := range clusters {
		created, age := "-", "-"
		if !c.CreationTimestamp.IsZero() {
			created = c.CreationTimestamp.Format(time.RFC3339)
			age = strconv.Itoa(int(c.Age(now).Hours() / 24))
		}
		table.Append([]string{c.Name, c.ID, c.ExternalID, created, age})
	}

	table.Render()
	fmt.Fprintf(out, "%d clusters\n", len(clusters))
}
