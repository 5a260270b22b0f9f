// Package graph provides a mail transport backed by the Microsoft Graph sendMail API.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"production-report/internal/config"
	"production-report/internal/model"
)

const (
	defaultLoginEndpoint = "https://login.microsoftonline.com"
	defaultEndpoint      = "https://graph.microsoft.com"
	graphScope           = "https://graph.microsoft.com/.default"

	// tokenSkew renews tokens shortly before they expire.
	tokenSkew = time.Minute
)

// Client sends report mails through Microsoft Graph using the client
// credentials flow.
type Client struct {
	tenantID     string
	clientID     string
	clientSecret string
	sender       string
	timeout      time.Duration
	retry        config.RetryConfig
	login        *resty.Client // token endpoint, retried
	api          *resty.Client // sendMail, never retried
	logger       zerolog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

// NewClient creates a new Graph mail client.
func NewClient(cfg *config.GraphConfig, retryCfg *config.RetryConfig, logger zerolog.Logger) *Client {
	// Set default timeout if not specified
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	// Set default retry config if not specified
	retry := config.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
	}
	if retryCfg != nil {
		retry = *retryCfg
	}

	loginEndpoint := cfg.LoginEndpoint
	if loginEndpoint == "" {
		loginEndpoint = defaultLoginEndpoint
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	login := resty.New().
		SetBaseURL(strings.TrimRight(loginEndpoint, "/")).
		SetTimeout(timeout).
		SetRetryCount(retry.MaxRetries).
		SetRetryWaitTime(retry.BaseDelay).
		SetRetryMaxWaitTime(retry.BaseDelay * 8). // Max wait time for exponential backoff
		AddRetryCondition(retryCondition)

	// sendMail is never retried
	api := resty.New().
		SetBaseURL(strings.TrimRight(endpoint, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)

	return &Client{
		tenantID:     cfg.TenantID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		sender:       cfg.Sender,
		timeout:      timeout,
		retry:        retry,
		login:        login,
		api:          api,
		logger:       logger.With().Str("component", "graph-client").Logger(),
		now:          time.Now,
	}
}

// retryCondition determines whether a token request should be retried.
// Only retry on timeout, 5xx errors, 429 or connection failures.
func retryCondition(resp *resty.Response, err error) bool {
	// Retry on error (timeout, connection failure, etc.)
	if err != nil {
		return true
	}

	if resp != nil && (resp.StatusCode() >= 500 || resp.StatusCode() == http.StatusTooManyRequests) {
		return true
	}

	// Do not retry on other 4xx client errors
	return false
}

// Name identifies the transport in logs and errors.
func (c *Client) Name() string {
	return "graph"
}

// Send delivers msg as the configured sender.
func (c *Client) Send(ctx context.Context, msg *model.Message) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}
	if len(msg.Recipients()) == 0 {
		return fmt.Errorf("message has no recipients")
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	c.logger.Debug().
		Str("sender", c.sender).
		Int("recipients", len(msg.Recipients())).
		Int("attachments", len(msg.Attachments)).
		Msg("sending mail")

	resp, err := c.api.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(NewSendMailRequest(msg)).
		Post("/v1.0/users/" + url.PathEscape(c.sender) + "/sendMail")
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to call sendMail")
		return fmt.Errorf("failed to call sendMail: %w", err)
	}

	if resp.StatusCode() != http.StatusAccepted {
		c.logger.Error().
			Int("status_code", resp.StatusCode()).
			Str("body", string(resp.Body())).
			Msg("sendMail returned unexpected status")
		return fmt.Errorf("sendMail returned status %d: %s", resp.StatusCode(), apiError(resp))
	}

	c.logger.Info().Str("sender", c.sender).Msg("mail accepted by Graph")
	return nil
}

// accessToken returns a cached token or requests a new one.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	var result TokenResponse
	resp, err := c.login.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     c.clientID,
			"client_secret": c.clientSecret,
			"scope":         graphScope,
			"grant_type":    "client_credentials",
		}).
		SetResult(&result).
		Post("/" + url.PathEscape(c.tenantID) + "/oauth2/v2.0/token")
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to request access token")
		return "", fmt.Errorf("failed to request access token: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		c.logger.Error().
			Int("status_code", resp.StatusCode()).
			Msg("token endpoint returned non-200 status")
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode(), apiError(resp))
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	c.token = result.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(result.ExpiresIn)*time.Second - tokenSkew)

	c.logger.Debug().Time("expires_at", c.tokenExpiry).Msg("access token acquired")
	return c.token, nil
}

// apiError extracts the error message from a Graph or login error body.
func apiError(resp *resty.Response) string {
	body := resp.Body()
	var graphErr ErrorResponse
	if err := json.Unmarshal(body, &graphErr); err == nil && graphErr.Error.Message != "" {
		return graphErr.Error.Code + ": " + graphErr.Error.Message
	}
	var loginErr struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &loginErr); err == nil && loginErr.Error != "" {
		return loginErr.Error + ": " + loginErr.Description
	}
	return string(body)
}
