package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-matcher/internal/errs"
)

func TestLoginNormalizesEmail(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathLogin, r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user@example.com", body.Email)
		assert.Equal(t, "password123", body.Password)

		writeJSON(t, w, http.StatusOK, Tokens{AccessToken: "access", RefreshToken: "refresh", TokenType: "bearer"})
	}, &fakeTokens{token: "previous"})

	tokens, err := c.Login(context.Background(), Credentials{Email: "  User@Example.COM ", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "access", tokens.AccessToken)
	assert.Equal(t, "refresh", tokens.RefreshToken)
}

func TestCredentialValidation(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		field   string
		message string
	}{
		{name: "bad email", creds: Credentials{Email: "not-an-email", Password: "password123"}, field: "email", message: "Please enter a valid email address"},
		{name: "short password", creds: Credentials{Email: "a@b.co", Password: "short"}, field: "password", message: "Password must be at least 8 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("no request expected")
			}, nil)

			_, err := c.Signup(context.Background(), tt.creds)
			require.Error(t, err)

			var e *errs.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, errs.KindValidation, e.Kind)
			assert.Equal(t, tt.message, e.Message)
			assert.Equal(t, tt.message, e.Fields[tt.field])
			assert.Zero(t, atomic.LoadInt32(hits))
		})
	}
}

func TestSignupConflict(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusConflict, map[string]string{"detail": "Email already registered"})
	}, nil)

	_, err := c.Signup(context.Background(), Credentials{Email: "a@b.co", Password: "password123"})
	require.True(t, errors.Is(err, errs.ErrConflict))
	assert.Equal(t, "Email already registered", errs.Message(err))
}

func TestLoginRejectsMissingToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]string{"token_type": "bearer"})
	}, nil)

	_, err := c.Login(context.Background(), Credentials{Email: "a@b.co", Password: "password123"})
	assert.True(t, errors.Is(err, errs.ErrNetworkOrServer))
}

func TestSubscriptionTier(t *testing.T) {
	tests := []struct {
		plan string
		want Tier
	}{
		{plan: "", want: TierFree},
		{plan: "free", want: TierFree},
		{plan: " FREE ", want: TierFree},
		{plan: "pro", want: TierPaid},
		{plan: "premium", want: TierPaid},
	}

	for _, tt := range tests {
		t.Run(tt.plan, func(t *testing.T) {
			assert.Equal(t, tt.want, (&Subscription{Plan: tt.plan}).Tier())
		})
	}

	var nilSub *Subscription
	assert.Equal(t, TierFree, nilSub.Tier())
}

func TestMeAndSubscription(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case pathMe:
			writeJSON(t, w, http.StatusOK, User{ID: 7, Email: "a@b.co", IsVerified: true, CreatedAt: "2024-05-01T10:00:00"})
		case pathSubscription:
			writeJSON(t, w, http.StatusOK, map[string]interface{}{"plan": "free", "trial_used": true, "remaining_credits": 0, "expires_at": nil})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, &fakeTokens{token: "tok"})

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, user.ID)
	assert.True(t, user.IsVerified)

	sub, err := c.Subscription(context.Background())
	require.NoError(t, err)
	assert.True(t, sub.TrialUsed)
	assert.Nil(t, sub.ExpiresAt)
	assert.Equal(t, TierFree, sub.Tier())
}

func TestEmailVerification(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case pathVerifyEmail:
			assert.Equal(t, "abc", r.URL.Query().Get("token"))
			writeJSON(t, w, http.StatusOK, Message{Message: "Email verified successfully"})
		case pathRequestEmailVerification:
			assert.Equal(t, "user@example.com", r.URL.Query().Get("email"))
			writeJSON(t, w, http.StatusOK, Message{Message: "Verification email sent"})
		}
	}, &fakeTokens{token: "tok"})

	msg, err := c.VerifyEmail(context.Background(), " abc ")
	require.NoError(t, err)
	assert.Equal(t, "Email verified successfully", msg.Message)

	msg, err = c.RequestEmailVerification(context.Background(), "User@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "Verification email sent", msg.Message)

	_, err = c.VerifyEmail(context.Background(), "  ")
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = c.RequestEmailVerification(context.Background(), "nope")
	assert.True(t, errors.Is(err, errs.ErrValidation))
}
