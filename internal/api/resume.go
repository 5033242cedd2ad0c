package api

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spigell/resume-matcher/internal/errs"
)

const (
	pathTemplates      = "/api/resume/templates"
	pathGenerateResume = "/api/resume/generate"
	pathDownloadResume = "/api/resume/download/%d"
	pathMyResumes      = "/api/resume/my-resumes"
	pathPreviewResume  = "/api/resume/preview/%d"

	DefaultTemplate = "ats-friendly-1"
)

type Template struct {
	Name            string `json:"name"`
	DisplayName     string `json:"display_name"`
	Description     string `json:"description"`
	ATSOptimized    bool   `json:"ats_optimized"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
}

type Education struct {
	School      string `json:"school" validate:"notblank"`
	Degree      string `json:"degree" validate:"notblank"`
	Field       string `json:"field" validate:"notblank"`
	StartDate   string `json:"start_date" validate:"notblank"`
	EndDate     string `json:"end_date" validate:"notblank"`
	Description string `json:"description,omitempty"`
}

type Experience struct {
	Company     string `json:"company" validate:"notblank"`
	JobTitle    string `json:"job_title" validate:"notblank"`
	StartDate   string `json:"start_date" validate:"notblank"`
	EndDate     string `json:"end_date" validate:"notblank"`
	Description string `json:"description" validate:"notblank"`
}

type ResumeForm struct {
	FullName   string       `json:"full_name" validate:"notblank"`
	Email      string       `json:"email" validate:"basicemail"`
	Phone      string       `json:"phone" validate:"notblank"`
	Location   string       `json:"location" validate:"notblank"`
	Summary    string       `json:"summary,omitempty"`
	Education  []Education  `json:"education" validate:"dive"`
	Experience []Experience `json:"experience" validate:"dive"`
	Skills     []string     `json:"skills" validate:"dive,notblank"`
	Template   string       `json:"template"`
}

type GeneratedResume struct {
	ResumeID     int     `json:"resume_id"`
	TemplateUsed string  `json:"template_used"`
	ATSScore     float64 `json:"ats_score"`
	DownloadURL  string  `json:"download_url"`
	PreviewHTML  string  `json:"preview_html"`
}

type StoredResume struct {
	ID        int     `json:"id"`
	Template  string  `json:"template"`
	ATSScore  float64 `json:"ats_score"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type ResumePreview struct {
	ResumeID int     `json:"resume_id"`
	HTML     string  `json:"html"`
	ATSScore float64 `json:"ats_score"`
}

// Download is an opaque file returned by the backend.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (c *Client) Templates(ctx context.Context) ([]Template, error) {
	var templates []Template
	if err := c.getJSON(ctx, pathTemplates, authRequired, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (c *Client) GenerateResume(ctx context.Context, form ResumeForm) (*GeneratedResume, error) {
	if strings.TrimSpace(form.Template) == "" {
		form.Template = DefaultTemplate
	}
	form.Email = strings.TrimSpace(form.Email)

	if err := c.Validate(form); err != nil {
		return nil, err
	}

	var res GeneratedResume
	if err := c.postJSON(ctx, pathGenerateResume, authRequired, form, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DownloadResume(ctx context.Context, id int) (*Download, error) {
	if id <= 0 {
		return nil, errs.Validation("Resume id must be positive", map[string]string{"resume_id": "must be positive"})
	}

	resp, err := c.execute(ctx, call{
		method: http.MethodGet,
		path:   fmt.Sprintf(pathDownloadResume, id),
		auth:   authRequired,
	})
	if err != nil {
		return nil, err
	}

	return &Download{
		Filename:    attachmentName(resp.header.Get("Content-Disposition")),
		ContentType: resp.header.Get("Content-Type"),
		Data:        resp.body,
	}, nil
}

func (c *Client) MyResumes(ctx context.Context) ([]StoredResume, error) {
	var resumes []StoredResume
	if err := c.getJSON(ctx, pathMyResumes, authRequired, &resumes); err != nil {
		return nil, err
	}
	return resumes, nil
}

func (c *Client) PreviewResume(ctx context.Context, id int) (*ResumePreview, error) {
	if id <= 0 {
		return nil, errs.Validation("Resume id must be positive", map[string]string{"resume_id": "must be positive"})
	}

	var preview ResumePreview
	if err := c.getJSON(ctx, fmt.Sprintf(pathPreviewResume, id), authRequired, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

// attachmentName extracts a safe base file name from a Content-Disposition header.
func attachmentName(header string) string {
	if header == "" {
		return ""
	}

	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}

	name := filepath.Base(strings.TrimSpace(params["filename"]))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
