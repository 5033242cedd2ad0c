// Package builder generates, lists and downloads résumés built from a form.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/api"
	"github.com/spigell/resume-matcher/internal/errs"
)

const noCreditsMessage = "No credits available. Please upgrade your subscription."

type Gateway interface {
	Subscription(ctx context.Context) (*api.Subscription, error)
	Templates(ctx context.Context) ([]api.Template, error)
	GenerateResume(ctx context.Context, form api.ResumeForm) (*api.GeneratedResume, error)
	DownloadResume(ctx context.Context, id int) (*api.Download, error)
	MyResumes(ctx context.Context) ([]api.StoredResume, error)
	PreviewResume(ctx context.Context, id int) (*api.ResumePreview, error)
}

type Service struct {
	gateway Gateway
	logger  *zap.Logger
}

func New(gateway Gateway, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gateway: gateway, logger: logger}
}

func (s *Service) Templates(ctx context.Context) ([]api.Template, error) {
	return s.gateway.Templates(ctx)
}

func (s *Service) List(ctx context.Context) ([]api.StoredResume, error) {
	return s.gateway.MyResumes(ctx)
}

// Generate builds a résumé. The plan is checked first so an account without
// credits gets PaymentRequired without spending a generate call.
func (s *Service) Generate(ctx context.Context, form api.ResumeForm) (*api.GeneratedResume, error) {
	if strings.TrimSpace(form.Template) == "" {
		form.Template = api.DefaultTemplate
	}

	sub, err := s.gateway.Subscription(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking subscription: %w", err)
	}

	if sub.RemainingCredits <= 0 {
		s.logger.Info("resume generation blocked",
			zap.String("plan", sub.Plan),
			zap.String("tier", string(sub.Tier())),
		)
		return nil, &errs.Error{Kind: errs.KindPaymentRequired, Message: noCreditsMessage}
	}

	res, err := s.gateway.GenerateResume(ctx, form)
	if err != nil {
		return nil, err
	}

	s.logger.Info("resume generated",
		zap.Int("resume_id", res.ResumeID),
		zap.String("template", res.TemplateUsed),
		zap.Float64("ats_score", res.ATSScore),
	)
	return res, nil
}

// Download saves the résumé into dir and returns the written path.
func (s *Service) Download(ctx context.Context, id int, dir string) (string, error) {
	dl, err := s.gateway.DownloadResume(ctx, id)
	if err != nil {
		return "", err
	}

	name := dl.Filename
	if name == "" {
		name = fmt.Sprintf("resume_%d.pdf", id)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, dl.Data, 0o644); err != nil {
		return "", fmt.Errorf("writing resume: %w", err)
	}

	s.logger.Debug("resume saved", zap.String("path", path), zap.Int("bytes", len(dl.Data)))
	return path, nil
}

// PreviewText fetches the HTML preview and returns its readable text.
func (s *Service) PreviewText(ctx context.Context, id int) (string, *api.ResumePreview, error) {
	preview, err := s.gateway.PreviewResume(ctx, id)
	if err != nil {
		return "", nil, err
	}

	text, err := HTMLText(preview.HTML)
	if err != nil {
		return "", nil, err
	}
	return text, preview, nil
}

// HTMLText drops scripts and styles and returns the body text, one block per line.
func HTMLText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, head").Remove()

	var lines []string
	doc.Find("h1, h2, h3, h4, p, li").Each(func(_ int, sel *goquery.Selection) {
		if line := cleanWhitespace(sel.Text()); line != "" {
			lines = append(lines, line)
		}
	})

	if len(lines) == 0 {
		return cleanWhitespace(doc.Find("body").Text()), nil
	}
	return strings.Join(lines, "\n"), nil
}

func cleanWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
