package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 5 * 1024 * 1024 // 5MB max response
)

var (
	// ErrProviderUnavailable means the data provider could not be reached
	ErrProviderUnavailable = errors.New("lookup: provider unavailable")
	// ErrRequestFailed means the provider rejected or failed the request
	ErrRequestFailed = errors.New("lookup: request failed")
)

// Config holds the data provider connection settings
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Validate validates the lookup configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("lookup: base URL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("lookup: timeout must be positive")
	}
	return nil
}

// Result is the outcome of one sub-service lookup against a company document
type Result struct {
	Code      string
	Payload   []byte
	CacheHit  bool
	ElapsedMs int64
}

// HTTPClient queries the upstream company-data provider. One call fetches
// one sub-service result for one company document; the consultation flow
// fans calls out per requested code.
type HTTPClient struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient creates a new provider client
func NewHTTPClient(config *Config, logger *zap.Logger) (*HTTPClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &HTTPClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}, nil
}

// providerResponse is the provider's envelope for a single lookup
type providerResponse struct {
	Status   string          `json:"status"`
	CacheHit bool            `json:"cache_hit"`
	Data     json.RawMessage `json:"data"`
	Message  string          `json:"message,omitempty"`
}

// Fetch retrieves one sub-service result for a company document. The
// returned payload is the provider's raw data document; callers store it
// as-is and never interpret it.
func (c *HTTPClient) Fetch(ctx context.Context, companyDoc, code string) (*Result, error) {
	start := time.Now()

	endpoint := fmt.Sprintf("%s/v1/companies/%s/%s",
		c.config.BaseURL, url.PathEscape(companyDoc), url.PathEscape(code))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("lookup: failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Provider request failed",
			zap.String("code", code),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("lookup: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("Provider returned error status",
			zap.String("code", code),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: HTTP %d", ErrRequestFailed, resp.StatusCode)
	}

	var envelope providerResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("lookup: failed to parse response: %w", err)
	}

	if envelope.Status != "ok" {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, envelope.Message)
	}

	return &Result{
		Code:      code,
		Payload:   envelope.Data,
		CacheHit:  envelope.CacheHit,
		ElapsedMs: time.Since(start).Milliseconds(),
	}, nil
}
