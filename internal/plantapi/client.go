package plantapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/septivank/plant-metrics-pipeline/internal/metrics"
)

const (
	// DefaultTimeout is the default per-request timeout
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum accepted response body size (1MB)
	MaxResponseSize = 1 << 20
)

// Fetch outcomes, also used as metric label values.
const (
	OutcomeOK           = "ok"
	OutcomeHTTPStatus   = "http_status"
	OutcomeNetworkError = "network_error"
	OutcomeDecodeError  = "decode_error"
)

// ErrUnexpectedStatus is returned by FetchPlant for any non-200 response.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Config holds client construction parameters.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxConcurrency int
}

// FetchStats summarises one FetchRange call.
type FetchStats struct {
	Requested     int
	Succeeded     int
	HTTPFailures  int
	NetworkErrors int
	DecodeErrors  int
}

// Dropped returns the number of ids that produced no record.
func (s FetchStats) Dropped() int {
	return s.HTTPFailures + s.NetworkErrors + s.DecodeErrors
}

// Client fetches plant records from the upstream API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	limit      int
	logger     *zap.Logger
}

// NewClient creates a new plant API client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = 1
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		timeout:    timeout,
		limit:      limit,
		logger:     logger,
	}
}

// FetchRange requests every id in [first, last] with at most MaxConcurrency requests
// in flight. Failed ids are logged and left out; they are never returned as errors.
// The returned records are in no particular order.
func (c *Client) FetchRange(ctx context.Context, first, last int) ([]RawRecord, FetchStats) {
	if last < first {
		return nil, FetchStats{}
	}

	n := last - first + 1
	results := make([]*RawRecord, n)

	var httpFailures, networkErrors, decodeErrors atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)

	for i := 0; i < n; i++ {
		id := first + i
		slot := i
		g.Go(func() error {
			record, outcome, err := c.fetchOne(gctx, id)
			metrics.FetchRequestsTotal.WithLabelValues(outcome).Inc()

			switch outcome {
			case OutcomeOK:
				results[slot] = record
				c.logger.Debug("fetched plant record", zap.Int("plant_id", id))
			case OutcomeHTTPStatus:
				httpFailures.Add(1)
				c.logger.Warn("plant request failed", zap.Int("plant_id", id), zap.Error(err))
			case OutcomeDecodeError:
				decodeErrors.Add(1)
				c.logger.Error("failed to decode plant record", zap.Int("plant_id", id), zap.Error(err))
			default:
				networkErrors.Add(1)
				c.logger.Error("error fetching plant record", zap.Int("plant_id", id), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	records := make([]RawRecord, 0, n)
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}

	stats := FetchStats{
		Requested:     n,
		Succeeded:     len(records),
		HTTPFailures:  int(httpFailures.Load()),
		NetworkErrors: int(networkErrors.Load()),
		DecodeErrors:  int(decodeErrors.Load()),
	}
	return records, stats
}

// FetchPlant retrieves a single plant record.
func (c *Client) FetchPlant(ctx context.Context, id int) (*RawRecord, error) {
	record, _, err := c.fetchOne(ctx, id)
	return record, err
}

func (c *Client) fetchOne(ctx context.Context, id int) (*RawRecord, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.baseURL + "/plants/" + strconv.Itoa(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, OutcomeNetworkError, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.FetchRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, OutcomeNetworkError, fmt.Errorf("request plant %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))
		return nil, OutcomeHTTPStatus, fmt.Errorf("%w %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, OutcomeNetworkError, fmt.Errorf("read plant %d body: %w", id, err)
	}
	if len(body) > MaxResponseSize {
		return nil, OutcomeDecodeError, fmt.Errorf("response body too large (max %d bytes)", MaxResponseSize)
	}

	var record RawRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, OutcomeDecodeError, fmt.Errorf("decode payload: %w", err)
	}

	return &record, OutcomeOK, nil
}
