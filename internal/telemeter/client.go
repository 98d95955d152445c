package telemeter

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/config"
	"github.com/prometheus/common/model"
)

var (
	// ErrEmptyResult is returned when a query yields no samples.
	ErrEmptyResult = errors.New("query returned no samples")
	// ErrNonNumeric is returned when a sample value is NaN or infinite.
	ErrNonNumeric = errors.New("query returned a non-numeric value")
	// ErrUnsupportedResult is returned for result types other than vector or scalar.
	ErrUnsupportedResult = errors.New("unsupported query result type")
)

// Sample is one instant-query result element
type Sample struct {
	Labels    map[string]string
	Value     float64
	Timestamp time.Time
}

// Options configures a Client
type Options struct {
	URL    string
	Token  string
	CAFile string
	// Timeout bounds a single query including retries. Zero means no bound.
	Timeout time.Duration
	// Rate is the maximum number of queries per second. Zero disables limiting.
	Rate   int
	Logger *slog.Logger
}

// Client runs PromQL instant queries against the telemeter API
type Client struct {
	api     v1.API
	limiter *RateLimiter
	retry   retryConfig
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a metrics client authenticated with a bearer token
func NewClient(opts Options) (*Client, error) {
	address := strings.TrimSpace(opts.URL)
	if address == "" {
		return nil, fmt.Errorf("telemeter url is required")
	}

	transport, err := newTransport(opts.CAFile)
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(api.Config{
		Address: address,
		RoundTripper: config.NewAuthorizationCredentialsRoundTripper(
			"Bearer", config.NewInlineSecret(opts.Token), transport,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telemeter client: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		api:     v1.NewAPI(client),
		limiter: NewRateLimiter(opts.Rate),
		retry:   defaultRetryConfig(),
		timeout: opts.Timeout,
		logger:  logger,
	}, nil
}

func newTransport(caFile string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	caFile = strings.TrimSpace(caFile)
	if caFile == "" {
		return transport, nil
	}

	caBundle, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA bundle %q: %w", caFile, err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(caBundle) {
		return nil, fmt.Errorf("failed to parse CA bundle %q: no certificates found", caFile)
	}

	transport.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    pool,
	}
	return transport, nil
}

// InstantQuery evaluates query at the given instant, or now when at is nil.
func (c *Client) InstantQuery(ctx context.Context, query string, at *time.Time) ([]Sample, error) {
	ctx, cancel := withQueryTimeout(ctx, c.timeout)
	defer cancel()

	var ts time.Time
	if at != nil {
		ts = *at
	}

	var opts []v1.Option
	if c.timeout > 0 {
		opts = append(opts, v1.WithTimeout(c.timeout))
	}

	var result model.Value
	err := executeWithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		res, warnings, err := c.api.Query(ctx, query, ts, opts...)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			c.logger.Debug("query warning", slog.String("query", query), slog.String("warning", w))
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("instant query failed: %w", err)
	}

	return toSamples(result)
}

func toSamples(value model.Value) ([]Sample, error) {
	if value == nil {
		return nil, ErrEmptyResult
	}

	switch v := value.(type) {
	case model.Vector:
		samples := make([]Sample, 0, len(v))
		for _, s := range v {
			labels := make(map[string]string, len(s.Metric))
			for name, val := range s.Metric {
				labels[string(name)] = string(val)
			}
			samples = append(samples, Sample{
				Labels:    labels,
				Value:     float64(s.Value),
				Timestamp: s.Timestamp.Time().UTC(),
			})
		}
		return samples, nil
	case *model.Scalar:
		return []Sample{{
			Labels:    map[string]string{},
			Value:     float64(v.Value),
			Timestamp: v.Timestamp.Time().UTC(),
		}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedResult, value.Type())
	}
}

// FirstValue returns the value of the first sample. Empty results and
// NaN or infinite values are errors.
func FirstValue(samples []Sample) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmptyResult
	}
	v := samples[0].Value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNonNumeric, v)
	}
	return v, nil
}
