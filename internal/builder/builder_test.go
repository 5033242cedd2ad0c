package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/api"
	"github.com/spigell/resume-matcher/internal/errs"
)

type fakeGateway struct {
	sub       *api.Subscription
	subErr    error
	generated *api.GeneratedResume
	download  *api.Download
	preview   *api.ResumePreview

	generateCalls int
	gotForm       api.ResumeForm
}

func (f *fakeGateway) Subscription(ctx context.Context) (*api.Subscription, error) {
	return f.sub, f.subErr
}

func (f *fakeGateway) Templates(ctx context.Context) ([]api.Template, error) {
	return []api.Template{{Name: api.DefaultTemplate}}, nil
}

func (f *fakeGateway) GenerateResume(ctx context.Context, form api.ResumeForm) (*api.GeneratedResume, error) {
	f.generateCalls++
	f.gotForm = form
	return f.generated, nil
}

func (f *fakeGateway) DownloadResume(ctx context.Context, id int) (*api.Download, error) {
	return f.download, nil
}

func (f *fakeGateway) MyResumes(ctx context.Context) ([]api.StoredResume, error) {
	return []api.StoredResume{{ID: 1}}, nil
}

func (f *fakeGateway) PreviewResume(ctx context.Context, id int) (*api.ResumePreview, error) {
	return f.preview, nil
}

func TestGenerateWithoutCreditsSkipsCall(t *testing.T) {
	gw := &fakeGateway{sub: &api.Subscription{Plan: "free", TrialUsed: true, RemainingCredits: 0}}
	svc := New(gw, zap.NewNop())

	_, err := svc.Generate(context.Background(), api.ResumeForm{FullName: "Jane"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPaymentRequired))
	assert.Equal(t, noCreditsMessage, errs.Message(err))
	assert.Zero(t, gw.generateCalls)
}

func TestGenerateDefaultsTemplate(t *testing.T) {
	gw := &fakeGateway{
		sub:       &api.Subscription{Plan: "free", RemainingCredits: 1},
		generated: &api.GeneratedResume{ResumeID: 9, TemplateUsed: api.DefaultTemplate, ATSScore: 0.9},
	}
	svc := New(gw, nil)

	res, err := svc.Generate(context.Background(), api.ResumeForm{FullName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, 9, res.ResumeID)
	assert.Equal(t, 1, gw.generateCalls)
	assert.Equal(t, api.DefaultTemplate, gw.gotForm.Template)
}

func TestGenerateSubscriptionError(t *testing.T) {
	gw := &fakeGateway{subErr: errs.New(errs.KindUnauthorized, "Not authenticated")}
	svc := New(gw, nil)

	_, err := svc.Generate(context.Background(), api.ResumeForm{})
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))
	assert.Zero(t, gw.generateCalls)
}

func TestDownload(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		download *api.Download
		want     string
	}{
		{name: "server name", download: &api.Download{Filename: "resume_jane_20240501.pdf", Data: []byte("%PDF")}, want: "resume_jane_20240501.pdf"},
		{name: "fallback name", download: &api.Download{Data: []byte("%PDF")}, want: "resume_5.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(&fakeGateway{download: tt.download}, nil)

			path, err := svc.Download(context.Background(), 5, filepath.Join(dir, tt.name))
			require.NoError(t, err)
			assert.Equal(t, tt.want, filepath.Base(path))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, []byte("%PDF"), data)
		})
	}
}

func TestHTMLText(t *testing.T) {
	html := `<html><head><title>x</title><style>p{color:red}</style></head>
<body><script>alert(1)</script><h1>Jane  Doe</h1><p>Berlin
 · jane@example.com</p><ul><li>Go</li><li>SQL</li></ul></body></html>`

	text, err := HTMLText(html)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nBerlin · jane@example.com\nGo\nSQL", text)

	text, err = HTMLText(`<div>plain   body</div>`)
	require.NoError(t, err)
	assert.Equal(t, "plain body", text)
}

func TestPreviewText(t *testing.T) {
	svc := New(&fakeGateway{preview: &api.ResumePreview{ResumeID: 2, HTML: "<p>Hello</p>", ATSScore: 0.75}}, nil)

	text, preview, err := svc.PreviewText(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.InDelta(t, 0.75, preview.ATSScore, 1e-9)
}

func TestPassThrough(t *testing.T) {
	svc := New(&fakeGateway{}, nil)

	templates, err := svc.Templates(context.Background())
	require.NoError(t, err)
	assert.Len(t, templates, 1)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
