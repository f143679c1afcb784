// Package analytics fetches computed analytics payloads from the upstream
// analytics service.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/kiranshivaraju/tablelens/pkg/models"
)

// Sentinel errors for analytics client failures.
var (
	ErrAnalyticsUnreachable = errors.New("analytics service unreachable")
	ErrAnalyticsResponse    = errors.New("analytics service error")
	ErrAnalyticsTimeout     = errors.New("analytics request timeout")
	ErrNoAnalysis           = errors.New("no analysis available")
)

// Client is the interface for reading analytics results.
type Client interface {
	// LatestAnalysis returns the most recent completed run for clientID.
	LatestAnalysis(ctx context.Context, clientID string) (*models.AnalysisPayload, error)
	Ready(ctx context.Context) error
}

// HTTPClient implements Client over the analytics service's HTTP API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a new analytics HTTP client.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) LatestAnalysis(ctx context.Context, clientID string) (*models.AnalysisPayload, error) {
	u := fmt.Sprintf("%s/api/clients/%s/analysis/latest", c.baseURL, url.PathEscape(clientID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoAnalysis
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrAnalyticsResponse, resp.StatusCode)
	}

	var body analysisResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding analysis: %v", ErrAnalyticsResponse, err)
	}

	payload := body.Result
	if payload.KPIs == nil {
		payload.KPIs = map[string]float64{}
	}
	if payload.Tables == nil {
		payload.Tables = map[string][]models.Row{}
	}
	return &payload, nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	u := fmt.Sprintf("%s/health", c.baseURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAnalyticsUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: analytics not ready (status %d)", ErrAnalyticsUnreachable, resp.StatusCode)
	}

	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrAnalyticsTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrAnalyticsTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrAnalyticsUnreachable, err)
}

// --- analytics response types ---

type analysisResponse struct {
	RunID       string                 `json:"run_id"`
	CompletedAt time.Time              `json:"completed_at"`
	Result      models.AnalysisPayload `json:"result"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
