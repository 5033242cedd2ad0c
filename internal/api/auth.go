package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/spigell/resume-matcher/internal/errs"
)

const (
	pathSignup                   = "/api/auth/signup"
	pathLogin                    = "/api/auth/login"
	pathMe                       = "/api/auth/me"
	pathSubscription             = "/api/auth/subscription"
	pathVerifyEmail              = "/api/auth/verify-email"
	pathRequestEmailVerification = "/api/auth/request-email-verification"

	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

type Credentials struct {
	Email    string `json:"email" validate:"basicemail"`
	Password string `json:"password" validate:"min=8"`
}

// normalize trims the email and lower-cases it, as the backend stores it.
func (c Credentials) normalize() Credentials {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return c
}

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type User struct {
	ID         int    `json:"id"`
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
	CreatedAt  string `json:"created_at"`
}

type Tier string

type Subscription struct {
	Plan             string  `json:"plan"`
	TrialUsed        bool    `json:"trial_used"`
	RemainingCredits int     `json:"remaining_credits"`
	ExpiresAt        *string `json:"expires_at"`
}

func (s *Subscription) Tier() Tier {
	if s == nil {
		return TierFree
	}

	plan := strings.ToLower(strings.TrimSpace(s.Plan))
	if plan == "" || plan == string(TierFree) {
		return TierFree
	}
	return TierPaid
}

// Message is the generic {"message": "..."} acknowledgement.
type Message struct {
	Message string `json:"message"`
}

func (c *Client) Login(ctx context.Context, creds Credentials) (*Tokens, error) {
	return c.authenticate(ctx, pathLogin, creds)
}

func (c *Client) Signup(ctx context.Context, creds Credentials) (*Tokens, error) {
	return c.authenticate(ctx, pathSignup, creds)
}

func (c *Client) authenticate(ctx context.Context, path string, creds Credentials) (*Tokens, error) {
	creds = creds.normalize()
	if err := c.Validate(creds); err != nil {
		return nil, err
	}

	var tokens Tokens
	if err := c.postJSON(ctx, path, authNone, creds, &tokens); err != nil {
		return nil, err
	}

	if tokens.AccessToken == "" {
		return nil, errs.New(errs.KindNetworkOrServer, "authentication response has no access token")
	}

	return &tokens, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, pathMe, authRequired, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Subscription(ctx context.Context) (*Subscription, error) {
	var sub Subscription
	if err := c.getJSON(ctx, pathSubscription, authRequired, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *Client) VerifyEmail(ctx context.Context, token string) (*Message, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errs.Validation("Verification token is required", map[string]string{"token": "token is required"})
	}

	return c.postQuery(ctx, pathVerifyEmail, url.Values{"token": {token}})
}

func (c *Client) RequestEmailVerification(ctx context.Context, email string) (*Message, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !basicEmail.MatchString(email) {
		return nil, errs.Validation(messages["Credentials.Email"], map[string]string{"email": messages["Credentials.Email"]})
	}

	return c.postQuery(ctx, pathRequestEmailVerification, url.Values{"email": {email}})
}

func (c *Client) postQuery(ctx context.Context, path string, q url.Values) (*Message, error) {
	var msg Message
	if err := c.do(ctx, call{method: http.MethodPost, path: path, query: q, auth: authNone}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
