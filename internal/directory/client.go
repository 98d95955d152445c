package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ppiankov/telemeter-reporter/internal/models"
)

const (
	clustersPath    = "/api/clusters_mgmt/v1/clusters"
	defaultPageSize = 100
	maxErrorBody    = 512
)

var (
	// ErrTokenExchange is returned when the offline token cannot be
	// exchanged for an access token.
	ErrTokenExchange = errors.New("access token exchange failed")
	// ErrUnauthorized is returned when the directory rejects the access token.
	ErrUnauthorized = errors.New("directory request unauthorized")
)

// Options configures a Client
type Options struct {
	URL       string
	Token     string
	PublicKey string
	// HTTPClient is used for both the token exchange and API calls.
	HTTPClient *http.Client
	PageSize   int
	Logger     *slog.Logger
}

// Client searches the cluster directory
type Client struct {
	baseURL  string
	token    *OfflineToken
	tokens   oauth2.TokenSource
	http     *http.Client
	pageSize int
	logger   *slog.Logger
}

// NewClient decodes the offline token and prepares the token exchange.
// No request is made until the first search.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("directory url is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	token, err := ParseOfflineToken(opts.Token, opts.PublicKey, logger)
	if err != nil {
		return nil, err
	}

	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}

	conf := &oauth2.Config{
		ClientID: token.ClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  token.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	// TokenSource caches the access token until it expires.
	tokens := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: token.Raw})

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Client{
		baseURL:  baseURL,
		token:    token,
		tokens:   tokens,
		http:     oauth2.NewClient(ctx, tokens),
		pageSize: pageSize,
		logger:   logger,
	}, nil
}

type clusterList struct {
	Kind  string        `json:"kind"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Total int           `json:"total"`
	Items []clusterItem `json:"items"`
}

type clusterItem struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ExternalID        string `json:"external_id"`
	CreationTimestamp string `json:"creation_timestamp"`
}

// SearchClusters returns every cluster matching the search expression,
// in the order the directory returns them.
func (c *Client) SearchClusters(ctx context.Context, search string) ([]models.Cluster, error) {
	c.logger.Info("searching clusters", slog.String("search", search))

	if _, err := c.tokens.Token(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTokenExchange, c.token.TokenURL(), err)
	}

	var clusters []models.Cluster
	for page := 1; ; page++ {
		list, err := c.fetchPage(ctx, search, page)
		if err != nil {
			return nil, err
		}

		for _, item := range list.Items {
			cluster, ok := c.toCluster(item)
			if ok {
				clusters = append(clusters, cluster)
			}
		}

		seen := (page-1)*c.pageSize + len(list.Items)
		if len(list.Items) == 0 || len(list.Items) < c.pageSize || (list.Total > 0 && seen >= list.Total) {
			break
		}
	}

	c.logger.Info("cluster search complete", slog.Int("clusters", len(clusters)))
	return clusters, nil
}

func (c *Client) fetchPage(ctx context.Context, search string, page int) (*clusterList, error) {
	params := url.Values{}
	params.Set("search", search)
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+clustersPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build cluster search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cluster search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := fmt.Errorf("cluster search failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil, err
	}

	var list clusterList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode cluster search response: %w", err)
	}
	return &list, nil
}

func (c *Client) toCluster(item clusterItem) (models.Cluster, bool) {
	if strings.TrimSpace(item.ExternalID) == "" {
		c.logger.Warn("skipping cluster without external id",
			slog.String("id", item.ID),
			slog.String("name", item.Name),
		)
		return models.Cluster{}, false
	}

	var created time.Time
	if ts := strings.TrimSpace(item.CreationTimestamp); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			c.logger.Warn("ignoring unparsable creation timestamp",
				slog.String("cluster", item.Name),
				slog.String("creation_timestamp", ts),
			)
		} else {
			created = parsed.UTC()
		}
	}

	return models.Cluster{
		ID:                item.ID,
		Name:              item.Name,
		ExternalID:        item.ExternalID,
		CreationTimestamp: created,
	}, true
}
