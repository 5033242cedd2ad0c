package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/resume-matcher/internal/document"
	"github.com/spigell/resume-matcher/internal/errs"
)

const (
	pathMatch         = "/api/match"
	pathUploadResume  = "/api/upload/resume"
	pathUploadMatch   = "/api/upload/match"
	pathBatchMatch    = "/api/batch/match"
	pathMultiJobMatch = "/api/match/multi-job"
)

// MatchRequest is one of TextMatch, FileMatch, BatchMatch or MultiJobMatch.
type MatchRequest interface {
	Validate() error
	matchRequest()
}

type TextMatch struct {
	ResumeText     string `json:"resume_text" validate:"notblank"`
	JobDescription string `json:"job_description" validate:"notblank"`
}

type FileMatch struct {
	Resume         *document.Document `json:"-"`
	JobDescription string             `json:"job_description" validate:"notblank"`
}

type BatchMatch struct {
	Resumes         []string `json:"resumes" validate:"min=1,dive,notblank"`
	JobDescriptions []string `json:"job_descriptions" validate:"min=1,dive,notblank"`
}

type MultiJobMatch struct {
	ResumeText      string   `json:"resume_text" validate:"notblank"`
	JobDescriptions []string `json:"job_descriptions" validate:"min=1,dive,notblank"`
	// TopK limits the number of ranked matches. Zero means unset.
	TopK int `json:"top_k,omitempty" validate:"gte=0"`
}

func (TextMatch) matchRequest()     {}
func (FileMatch) matchRequest()     {}
func (BatchMatch) matchRequest()    {}
func (MultiJobMatch) matchRequest() {}

var requestValidator = newValidator()

func (m TextMatch) Validate() error {
	if strings.TrimSpace(m.ResumeText) == "" || strings.TrimSpace(m.JobDescription) == "" {
		return errs.Validation("Please fill in both fields", blankFields(map[string]string{
			"resume_text":     m.ResumeText,
			"job_description": m.JobDescription,
		}))
	}
	return validateStruct(requestValidator, m)
}

func (m FileMatch) Validate() error {
	if m.Resume == nil || len(m.Resume.Data) == 0 || strings.TrimSpace(m.JobDescription) == "" {
		fields := blankFields(map[string]string{"job_description": m.JobDescription})
		if m.Resume == nil || len(m.Resume.Data) == 0 {
			fields["resume_file"] = "resume_file is required"
		}
		return errs.Validation("Please upload a PDF and enter job description", fields)
	}

	if m.Resume.Size() > document.MaxSize {
		return errs.Validation(fmt.Sprintf("File too large. Max size: %dMB", document.MaxSize>>20),
			map[string]string{"resume_file": "file too large"})
	}

	if ct := m.Resume.ContentType; ct != "" && ct != document.ContentTypePDF {
		return errs.Validation("Only PDF files are supported",
			map[string]string{"resume_file": fmt.Sprintf("unsupported content type %s", ct)})
	}

	return validateStruct(requestValidator, m)
}

func (m BatchMatch) Validate() error {
	if err := validateStruct(requestValidator, m); err != nil {
		return err
	}

	if len(m.Resumes) != len(m.JobDescriptions) {
		msg := fmt.Sprintf("Number of resumes (%d) must match number of job descriptions (%d)", len(m.Resumes), len(m.JobDescriptions))
		return errs.Validation(msg, map[string]string{"job_descriptions": msg})
	}

	return nil
}

func (m MultiJobMatch) Validate() error {
	if err := validateStruct(requestValidator, m); err != nil {
		return err
	}

	if m.TopK > len(m.JobDescriptions) {
		msg := fmt.Sprintf("top_k must be between 1 and %d", len(m.JobDescriptions))
		return errs.Validation(msg, map[string]string{"top_k": msg})
	}

	return nil
}

func blankFields(values map[string]string) map[string]string {
	fields := make(map[string]string)
	for name, v := range values {
		if strings.TrimSpace(v) == "" {
			fields[name] = fmt.Sprintf("%s is required", name)
		}
	}
	return fields
}

type MatchResult struct {
	MatchScore            float64 `json:"match_score"`
	ProcessedResumeTokens int     `json:"processed_resume_tokens"`
	ProcessedJobTokens    int     `json:"processed_job_tokens"`
}

func (r *MatchResult) check() error {
	if r.ProcessedResumeTokens < 0 || r.ProcessedJobTokens < 0 {
		return errs.New(errs.KindNetworkOrServer, "match response has negative token counts")
	}
	return nil
}

type UploadedResume struct {
	Filename            string                 `json:"filename"`
	SizeBytes           int64                  `json:"size_bytes"`
	ExtractedTextLength int                    `json:"extracted_text_length"`
	Metadata            map[string]interface{} `json:"metadata"`
}

type JobMatch struct {
	JobIndex   int     `json:"job_index"`
	MatchScore float64 `json:"match_score"`
	JobPreview string  `json:"job_preview"`
}

type MultiJobResult struct {
	TotalJobs int        `json:"total_jobs"`
	Matches   []JobMatch `json:"matches"`
}

// MatchResponse is what Match returns; exactly one field is set, matching the request variant.
type MatchResponse struct {
	Single   *MatchResult
	Batch    *BatchResult
	MultiJob *MultiJobResult
}

// Match dispatches req to its endpoint.
func (c *Client) Match(ctx context.Context, req MatchRequest) (*MatchResponse, error) {
	switch r := req.(type) {
	case TextMatch:
		res, err := c.MatchText(ctx, r)
		if err != nil {
			return nil, err
		}
		return &MatchResponse{Single: res}, nil
	case FileMatch:
		res, err := c.UploadAndMatch(ctx, r)
		if err != nil {
			return nil, err
		}
		return &MatchResponse{Single: res}, nil
	case BatchMatch:
		res, err := c.BatchMatch(ctx, r)
		if err != nil {
			return nil, err
		}
		return &MatchResponse{Batch: res}, nil
	case MultiJobMatch:
		res, err := c.MultiJobMatch(ctx, r)
		if err != nil {
			return nil, err
		}
		return &MatchResponse{MultiJob: res}, nil
	case nil:
		return nil, errs.Validation("match request is required", nil)
	default:
		return nil, errs.Validation(fmt.Sprintf("unsupported match request %T", req), nil)
	}
}

func (c *Client) MatchText(ctx context.Context, req TextMatch) (*MatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var res MatchResult
	if err := c.postJSON(ctx, pathMatch, authOptional, req, &res); err != nil {
		return nil, err
	}

	if err := res.check(); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UploadAndMatch(ctx context.Context, req FileMatch) (*MatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var res MatchResult
	err := c.postFormData(ctx, pathUploadMatch, authOptional,
		map[string]string{"job_description": req.JobDescription},
		[]filePart{resumePart("resume_file", req.Resume)},
		&res,
	)
	if err != nil {
		return nil, err
	}

	if err := res.check(); err != nil {
		return nil, err
	}
	return &res, nil
}

// UploadResume sends the résumé alone and returns what the backend extracted from it.
func (c *Client) UploadResume(ctx context.Context, doc *document.Document) (*UploadedResume, error) {
	if doc == nil || len(doc.Data) == 0 {
		return nil, errs.Validation("Please select a PDF file", map[string]string{"file": "file is required"})
	}
	if doc.Size() > document.MaxSize {
		return nil, errs.Validation(fmt.Sprintf("File too large. Max size: %dMB", document.MaxSize>>20),
			map[string]string{"file": "file too large"})
	}

	var res UploadedResume
	if err := c.postFormData(ctx, pathUploadResume, authOptional, nil, []filePart{resumePart("file", doc)}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) MultiJobMatch(ctx context.Context, req MultiJobMatch) (*MultiJobResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var res MultiJobResult
	if err := c.postJSON(ctx, pathMultiJobMatch, authOptional, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func resumePart(field string, doc *document.Document) filePart {
	ct := doc.ContentType
	if ct == "" {
		ct = document.ContentTypePDF
	}

	return filePart{
		field:       field,
		filename:    doc.Name,
		contentType: ct,
		data:        doc.Data,
	}
}
