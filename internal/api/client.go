// Package api is the gateway to the résumé analyzer backend. Every method
// issues at most one HTTP request and returns either a decoded response or an
// *errs.Error.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	userAgent      = "spigell/resume-matcher"

	defaultTimeout = 30 * time.Second
)

// TokenSource is the view of the session store the client needs.
type TokenSource interface {
	AccessToken() (string, bool)
	Clear() error
}

type authPolicy int

const (
	// authNone never sends the user token.
	authNone authPolicy = iota
	// authOptional sends the token when there is one.
	authOptional
	// authRequired fails without a token and clears the session on 401.
	authRequired
)

func (p authPolicy) String() string {
	switch p {
	case authOptional:
		return "optional"
	case authRequired:
		return "required"
	default:
		return "none"
	}
}

type Client struct {
	credentials TokenSource
	logger      *zap.Logger
	validate    *validator.Validate

	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, baseURL string, credentials TokenSource) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		credentials: credentials,
		logger:      logger,
		validate:    newValidator(),
		APIURL:      baseURL,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		UserAgent: userAgent,
	}
}

func (c *Client) token() (string, bool) {
	if c.credentials == nil {
		return "", false
	}
	return c.credentials.AccessToken()
}

// invalidate drops the stored session after the backend rejected the token.
func (c *Client) invalidate(endpoint string) {
	if c.credentials == nil {
		return
	}

	if err := c.credentials.Clear(); err != nil {
		c.logger.Warn("failed to clear rejected session", zap.String("endpoint", endpoint), zap.Error(err))
		return
	}

	c.logger.Warn("session rejected by backend, signed out", zap.String("endpoint", endpoint))
}
