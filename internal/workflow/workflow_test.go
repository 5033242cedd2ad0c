package workflow

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/resume-matcher/internal/api"
	"github.com/spigell/resume-matcher/internal/classifier"
	"github.com/spigell/resume-matcher/internal/document"
	"github.com/spigell/resume-matcher/internal/errs"
	"github.com/spigell/resume-matcher/internal/session"
)

type fakeGateway struct {
	mu        sync.Mutex
	textCalls []api.TextMatch
	fileCalls []api.FileMatch

	result *api.MatchResult
	err    error

	// started is closed when a call begins; release unblocks it.
	started chan struct{}
	release chan struct{}
	// during runs inside the call, before it returns.
	during func()
}

func (f *fakeGateway) MatchText(ctx context.Context, req api.TextMatch) (*api.MatchResult, error) {
	f.mu.Lock()
	f.textCalls = append(f.textCalls, req)
	f.mu.Unlock()
	return f.respond()
}

func (f *fakeGateway) UploadAndMatch(ctx context.Context, req api.FileMatch) (*api.MatchResult, error) {
	f.mu.Lock()
	f.fileCalls = append(f.fileCalls, req)
	f.mu.Unlock()
	return f.respond()
}

func (f *fakeGateway) respond() (*api.MatchResult, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if f.during != nil {
		f.during()
	}
	return f.result, f.err
}

func (f *fakeGateway) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.textCalls) + len(f.fileCalls)
}

func signedInStore(t *testing.T) *session.Store {
	t.Helper()
	store := session.New(session.NewMemory(), zap.NewNop())
	require.NoError(t, store.Set("access", "refresh"))
	return store
}

func samplePDF() *document.Document {
	return &document.Document{
		Name:        "cv.pdf",
		ContentType: document.ContentTypePDF,
		Data:        []byte("%PDF-1.4\n%%EOF\n"),
	}
}

func TestSubmitRejectsEmptyJobDescription(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		prepare func(c *Controller)
		message string
	}{
		{
			name: "text mode",
			mode: ModeText,
			prepare: func(c *Controller) {
				c.SetResumeText("Go developer")
				c.SetJobDescription("   ")
			},
			message: "Please fill in both fields",
		},
		{
			name: "upload mode",
			mode: ModeUpload,
			prepare: func(c *Controller) {
				c.SelectFile(samplePDF())
				c.SetJobDescription("\t")
			},
			message: "Please upload a PDF and enter job description",
		},
		{
			name: "upload mode without file",
			mode: ModeUpload,
			prepare: func(c *Controller) {
				c.SetJobDescription("Looking for Go")
			},
			message: "Please upload a PDF and enter job description",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			gw := &fakeGateway{result: &api.MatchResult{MatchScore: 0.5}}
			c := New(gw, signedInStore(t), zap.New(core))

			require.NoError(t, c.SetMode(tt.mode))
			tt.prepare(c)

			state, err := c.Submit(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrValidation))
			assert.Equal(t, tt.message, errs.Message(err))

			assert.Equal(t, StatusIdle, state.Status)
			assert.Equal(t, StatusIdle, c.State().Status)
			assert.Zero(t, gw.calls())
			assert.Zero(t, logs.Len(), "validation failures are not logged as failures")
		})
	}
}

func TestSubmitClassifiesSuccess(t *testing.T) {
	gw := &fakeGateway{result: &api.MatchResult{MatchScore: 0.82, ProcessedResumeTokens: 5, ProcessedJobTokens: 4}}
	c := New(gw, signedInStore(t), zap.NewNop())

	c.SetResumeText("  Python developer with 5 years ")
	c.SetJobDescription("Looking for Python developer")

	state, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, state.Status)
	require.NotNil(t, state.Result)
	assert.Nil(t, state.Err)
	assert.Equal(t, classifier.LabelExcellent, state.Result.Label)
	assert.Equal(t, classifier.ColorGreen, state.Result.Color)
	assert.InDelta(t, 0.82, state.Result.MatchScore, 1e-9)

	require.Len(t, gw.textCalls, 1)
	assert.Equal(t, "Python developer with 5 years", gw.textCalls[0].ResumeText)
}

func TestSubmitUploadMode(t *testing.T) {
	gw := &fakeGateway{result: &api.MatchResult{MatchScore: 0.65}}
	c := New(gw, signedInStore(t), zap.NewNop())

	require.NoError(t, c.SetMode(ModeUpload))
	c.SelectFile(samplePDF())
	c.SetJobDescription("Looking for Go")

	state, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeUpload, state.Mode)
	assert.Equal(t, classifier.LabelGood, state.Result.Label)
	require.Len(t, gw.fileCalls, 1)
	assert.Empty(t, gw.textCalls)
	assert.Equal(t, "cv.pdf", gw.fileCalls[0].Resume.Name)

	c.ClearFile()
	_, err = c.Submit(context.Background())
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Equal(t, StatusSucceeded, c.State().Status, "a rejected submit keeps the previous outcome")
}

func TestSubmitFailure(t *testing.T) {
	tests := []struct {
		name   string
		result *api.MatchResult
		err    error
		kind   errs.Kind
	}{
		{name: "gateway error", err: errs.New(errs.KindBadRequest, "Resume text is empty"), kind: errs.KindBadRequest},
		{name: "score out of range", result: &api.MatchResult{MatchScore: 1.5}, kind: errs.KindInvalidScore},
		{name: "nan score", result: &api.MatchResult{MatchScore: math.NaN()}, kind: errs.KindInvalidScore},
		{name: "transport error", err: errors.New("connection refused"), kind: errs.KindNetworkOrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeGateway{result: tt.result, err: tt.err}, signedInStore(t), zap.NewNop())
			c.SetResumeText("a")
			c.SetJobDescription("b")

			state, err := c.Submit(context.Background())
			require.Error(t, err)
			assert.Equal(t, StatusFailed, state.Status)
			require.NotNil(t, state.Err)
			assert.Equal(t, tt.kind, state.Err.Kind)
			assert.NotEmpty(t, state.Err.Message)
			assert.Nil(t, state.Result)
		})
	}
}

func TestSubmitWhileSubmittingIsRejected(t *testing.T) {
	gw := &fakeGateway{
		result:  &api.MatchResult{MatchScore: 0.3},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := New(gw, signedInStore(t), zap.NewNop())
	c.SetResumeText("a")
	c.SetJobDescription("b")

	done := make(chan State)
	go func() {
		s, _ := c.Submit(context.Background())
		done <- s
	}()

	<-gw.started
	assert.Equal(t, StatusSubmitting, c.State().Status)

	state, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, StatusSubmitting, state.Status)
	assert.ErrorIs(t, c.SetMode(ModeUpload), ErrBusy)
	assert.ErrorIs(t, c.Reset(), ErrBusy)

	close(gw.release)
	final := <-done

	assert.Equal(t, StatusSucceeded, final.Status)
	assert.Equal(t, classifier.LabelWeak, final.Result.Label)
	assert.Equal(t, 1, gw.calls())
}

func TestLateResponseAfterLogoutIsDiscarded(t *testing.T) {
	store := signedInStore(t)
	gw := &fakeGateway{result: &api.MatchResult{MatchScore: 0.9}}
	gw.during = func() { _ = store.Clear() }

	c := New(gw, store, zap.NewNop())
	c.SetResumeText("a")
	c.SetJobDescription("b")

	state, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, StatusIdle, state.Status)
	assert.Nil(t, state.Result)
}

func TestLateResponseAfterSessionSwapIsDiscarded(t *testing.T) {
	store := signedInStore(t)
	gw := &fakeGateway{result: &api.MatchResult{MatchScore: 0.9}}
	gw.during = func() { _ = store.Set("someone-else", "") }

	c := New(gw, store, zap.NewNop())
	c.SetResumeText("a")
	c.SetJobDescription("b")

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrStale)
}

func TestResubmitFromTerminalStates(t *testing.T) {
	gw := &fakeGateway{err: errs.New(errs.KindNetworkOrServer, "boom")}
	c := New(gw, signedInStore(t), zap.NewNop())
	c.SetResumeText("a")
	c.SetJobDescription("b")

	state, _ := c.Submit(context.Background())
	assert.Equal(t, StatusFailed, state.Status)

	gw.err = nil
	gw.result = &api.MatchResult{MatchScore: 0.45}
	state, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, state.Status)
	assert.Equal(t, classifier.LabelModerate, state.Result.Label)
	assert.Nil(t, state.Err)

	require.NoError(t, c.Reset())
	assert.Equal(t, StatusIdle, c.State().Status)
	assert.Equal(t, 2, gw.calls())
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "text", ModeText.String())
	assert.Equal(t, "upload", ModeUpload.String())
	assert.Equal(t, "submitting", StatusSubmitting.String())
}

func TestInputIsKeptAcrossModes(t *testing.T) {
	c := New(&fakeGateway{}, signedInStore(t), nil)

	c.SetResumeText("Go developer")
	c.SetJobDescription("Looking for Go")
	require.NoError(t, c.SetMode(ModeUpload))
	c.SelectFile(samplePDF())

	in := c.Input()
	assert.Equal(t, ModeUpload, in.Mode)
	assert.Equal(t, "Go developer", in.ResumeText)
	assert.Equal(t, "Looking for Go", in.JobDescription)
	require.NotNil(t, in.File)
	assert.Equal(t, "cv.pdf", in.File.Name)
}
