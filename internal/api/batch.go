package api

import (
	"context"
	"encoding/json"
	"os"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/resume-matcher/internal/errs"
)

type BatchResult struct {
	TotalProcessed        int        `json:"total_processed"`
	Successful            int        `json:"successful"`
	Failed                int        `json:"failed"`
	Results               []BatchRow `json:"results"`
	ProcessingTimeSeconds float64    `json:"processing_time_seconds"`
}

// BatchRow is one résumé/job pair. Score and token counts are set only when it succeeded.
type BatchRow struct {
	Index        int      `json:"index"`
	Success      bool     `json:"success"`
	MatchScore   *float64 `json:"match_score,omitempty"`
	ResumeTokens *int     `json:"resume_tokens,omitempty"`
	JobTokens    *int     `json:"job_tokens,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// batchEnvelope keeps rows loosely typed; the backend shape differs between success and failure rows.
type batchEnvelope struct {
	TotalProcessed        int                      `json:"total_processed"`
	Successful            int                      `json:"successful"`
	Failed                int                      `json:"failed"`
	Results               []map[string]interface{} `json:"results"`
	ProcessingTimeSeconds float64                  `json:"processing_time_seconds"`
}

func (c *Client) BatchMatch(ctx context.Context, req BatchMatch) (*BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var envelope batchEnvelope
	if err := c.postJSON(ctx, pathBatchMatch, authOptional, req, &envelope); err != nil {
		return nil, err
	}

	rows, err := decodeBatchRows(envelope.Results)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetworkOrServer, "unexpected batch response", err)
	}

	return &BatchResult{
		TotalProcessed:        envelope.TotalProcessed,
		Successful:            envelope.Successful,
		Failed:                envelope.Failed,
		Results:               rows,
		ProcessingTimeSeconds: envelope.ProcessingTimeSeconds,
	}, nil
}

func decodeBatchRows(items []map[string]interface{}) ([]BatchRow, error) {
	rows := make([]BatchRow, 0, len(items))

	for _, item := range items {
		var row BatchRow
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			Result:           &row,
		})
		if err != nil {
			return nil, err
		}

		if err := decoder.Decode(item); err != nil {
			return nil, err
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// DumpToTmpFile writes the result as indented JSON to a temp file and returns its path.
func (r *BatchResult) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "batch_match_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}
