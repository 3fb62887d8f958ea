// Package forecast is the HTTP client for the external forecast compute service.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/salescope/salescope/pkg/models"
)

// Sentinel errors for forecast service failures.
var (
	ErrGatewayUnavailable = errors.New("forecast service unreachable")
	ErrGatewayError       = errors.New("forecast service error")
	ErrGatewayTimeout     = errors.New("forecast request timeout")
	ErrInvalidResponse    = errors.New("forecast service returned invalid response")
)

// Client is the interface for requesting forecasts.
type Client interface {
	Forecast(ctx context.Context, req Request) (*Result, error)
}

// Request defines parameters for a forecast run. DatasetURL must be a
// retrievable location, typically a presigned object-store URL.
type Request struct {
	DatasetURL  string
	Kind        string
	Horizon     int
	Granularity string
}

// Result holds the predictions and accuracy metrics for a completed run.
type Result struct {
	Predictions []models.Prediction
	Metrics     models.Metrics
}

// HTTPClient implements Client against the forecast service's HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a forecast client. The timeout bounds the entire
// request; exceeding it is reported as ErrGatewayTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Forecast(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(forecastRequest{
		DatasetURL:  req.DatasetURL,
		ModelType:   req.Kind,
		Horizon:     req.Horizon,
		Granularity: req.Granularity,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/forecast", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrGatewayError, resp.StatusCode)
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(fr.Predictions) == 0 {
		return nil, fmt.Errorf("%w: empty predictions", ErrInvalidResponse)
	}

	return &Result{
		Predictions: fr.Predictions,
		Metrics:     fr.Metrics,
	}, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

// --- wire types ---

type forecastRequest struct {
	DatasetURL  string `json:"datasetUrl"`
	ModelType   string `json:"modelType"`
	Horizon     int    `json:"horizon"`
	Granularity string `json:"granularity"`
}

type forecastResponse struct {
	Predictions []models.Prediction `json:"predictions"`
	Metrics     models.Metrics      `json:"metrics"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
