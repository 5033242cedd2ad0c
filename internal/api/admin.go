package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/spigell/resume-matcher/internal/errs"
)

const (
	pathHealth  = "/api/health"
	pathRetrain = "/api/admin/retrain"
)

type Health struct {
	Status       string `json:"status"`
	ModelLoaded  bool   `json:"model_loaded"`
	ModelVersion string `json:"model_version"`
}

type RetrainResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Version   string `json:"version"`
	NumDocs   int    `json:"num_docs"`
	TrainedAt string `json:"trained_at"`
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.getJSON(ctx, pathHealth, authNone, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Retrain triggers model retraining. It authenticates with the operator token only
// and never touches the user session.
func (c *Client) Retrain(ctx context.Context, operatorToken string) (*RetrainResult, error) {
	operatorToken = strings.TrimSpace(operatorToken)
	if operatorToken == "" {
		return nil, errs.Validation("Operator token is required", map[string]string{"operator_token": "operator_token is required"})
	}

	var res RetrainResult
	err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    pathRetrain,
		auth:    authNone,
		headers: map[string]string{headerAdminToken: operatorToken},
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
