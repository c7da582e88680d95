// Package optimizer calls the hour-ahead optimization service over HTTP.
package optimizer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kilianp07/homebattery/auth"
	coreopt "github.com/kilianp07/homebattery/core/optimizer"
	"github.com/kilianp07/homebattery/infra/logger"
)

// Config defines the optimizer endpoint.
type Config struct {
	URL            string    `json:"url"`
	Path           string    `json:"path"`
	TimeoutSeconds float64   `json:"timeout_seconds"`
	RetryCount     int       `json:"retry_count"`
	Auth           auth.Conf `json:"auth"`
}

// SetDefaults fills the request path and timeout.
func (c *Config) SetDefaults() {
	if c.Path == "" {
		c.Path = "/optimize"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 5
	}
}

// Validate checks the endpoint settings.
func (c Config) Validate() error {
	if c.URL != "" && !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("optimizer url must be http(s), got %q", c.URL)
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("optimizer retry_count must not be negative")
	}
	if c.Auth.Enabled() && c.Auth.TokenURL == "" {
		return fmt.Errorf("optimizer auth requires token_url")
	}
	return nil
}

// Timeout returns the configured timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// HTTPClient implements core/optimizer.Client with resty.
type HTTPClient struct {
	rc   *resty.Client
	path string
	log  logger.Logger
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// NewHTTPClient creates a client for cfg.URL. When client credentials are
// configured every request carries a bearer token.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("optimizer url required")
	}
	log := logger.New("optimizer")
	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.URL, "/")).
		SetTimeout(cfg.Timeout()).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.Auth.Enabled() {
		cred := auth.NewClientCred(cfg.Auth)
		rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			tok, err := cred.GetToken(req.Context())
			if err != nil {
				return err
			}
			req.SetAuthToken(tok)
			return nil
		})
		rc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			if resp.StatusCode() == http.StatusUnauthorized {
				cred.Invalidate()
			}
			return nil
		})
	}
	return &HTTPClient{rc: rc, path: cfg.Path, log: log}, nil
}

// Optimize posts the request and decodes the response. Any failure is
// reported as ErrOptimizerUnavailable.
func (c *HTTPClient) Optimize(ctx context.Context, req coreopt.Request) (coreopt.Response, error) {
	var out coreopt.Response
	var apiErr errorBody
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post(c.path)
	if err != nil {
		return coreopt.Response{}, fmt.Errorf("%w: %v", coreopt.ErrOptimizerUnavailable, err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = apiErr.Detail
		}
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return coreopt.Response{}, fmt.Errorf("%w: status %d: %s", coreopt.ErrOptimizerUnavailable, resp.StatusCode(), msg)
	}
	c.log.Debugf("optimizer answered in %s: status %q", resp.Time(), out.SolverStatus)
	if out.ActionNextHour == nil {
		return coreopt.Response{}, fmt.Errorf("%w: missing action_next_hour", coreopt.ErrOptimizerUnavailable)
	}
	return out, nil
}
