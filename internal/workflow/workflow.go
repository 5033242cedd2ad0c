// Package workflow drives one match submission at a time and records its outcome.
package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/api"
	"github.com/spigell/resume-matcher/internal/classifier"
	"github.com/spigell/resume-matcher/internal/document"
	"github.com/spigell/resume-matcher/internal/errs"
)

var (
	// ErrBusy is returned while a submission is in flight.
	ErrBusy = errors.New("a match is already being submitted")
	// ErrStale is returned when the session changed while the request was in flight.
	ErrStale = errors.New("session changed during submission, result discarded")
)

type Mode int

const (
	ModeText Mode = iota
	ModeUpload
)

func (m Mode) String() string {
	if m == ModeUpload {
		return "upload"
	}
	return "text"
}

type Status int

const (
	StatusIdle Status = iota
	StatusSubmitting
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSubmitting:
		return "submitting"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Result is a backend match annotated with its bucket.
type Result struct {
	api.MatchResult
	classifier.Classification
}

type ErrorInfo struct {
	Kind    errs.Kind
	Message string
}

// State is a snapshot. Result is set only when Succeeded, Err only when Failed.
type State struct {
	Status Status
	Mode   Mode
	Result *Result
	Err    *ErrorInfo
}

// Gateway is the subset of the api client the controller calls.
type Gateway interface {
	MatchText(ctx context.Context, req api.TextMatch) (*api.MatchResult, error)
	UploadAndMatch(ctx context.Context, req api.FileMatch) (*api.MatchResult, error)
}

// Authority reports the session the submission was made under.
type Authority interface {
	IsAuthenticated() bool
	Generation() uint64
}

type Controller struct {
	gateway   Gateway
	authority Authority
	logger    *zap.Logger

	mu             sync.Mutex
	mode           Mode
	resumeText     string
	jobDescription string
	file           *document.Document
	state          State
}

func New(gateway Gateway, authority Authority, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		gateway:   gateway,
		authority: authority,
		logger:    logger,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) snapshot() State {
	s := c.state
	s.Mode = c.mode
	return s
}

func (c *Controller) SetMode(m Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status == StatusSubmitting {
		return ErrBusy
	}
	c.mode = m
	return nil
}

func (c *Controller) SetResumeText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumeText = text
}

func (c *Controller) SetJobDescription(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobDescription = text
}

func (c *Controller) SelectFile(doc *document.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = doc
}

func (c *Controller) ClearFile() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = nil
}

// Input is a copy of what the next Submit would send.
type Input struct {
	Mode           Mode
	ResumeText     string
	JobDescription string
	File           *document.Document
}

func (c *Controller) Input() Input {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Input{
		Mode:           c.mode,
		ResumeText:     c.resumeText,
		JobDescription: c.jobDescription,
		File:           c.file,
	}
}

// Reset drops the last outcome and returns to Idle. Inputs are kept.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status == StatusSubmitting {
		return ErrBusy
	}
	c.state = State{Status: StatusIdle}
	return nil
}

// Submit validates the inputs of the active mode, makes exactly one gateway
// call and records the outcome. Validation failures leave the state untouched.
func (c *Controller) Submit(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.state.Status == StatusSubmitting {
		s := c.snapshot()
		c.mu.Unlock()
		return s, ErrBusy
	}

	mode := c.mode
	text := api.TextMatch{ResumeText: c.resumeText, JobDescription: c.jobDescription}
	file := api.FileMatch{Resume: c.file, JobDescription: c.jobDescription}

	var verr error
	if mode == ModeUpload {
		verr = file.Validate()
	} else {
		verr = text.Validate()
	}
	if verr != nil {
		s := c.snapshot()
		c.mu.Unlock()
		c.logger.Debug("match not submitted", zap.Stringer("mode", mode), zap.String("reason", errs.Message(verr)))
		return s, verr
	}

	generation, authenticated := c.session()
	c.state = State{Status: StatusSubmitting}
	c.mu.Unlock()

	c.logger.Debug("submitting match", zap.Stringer("mode", mode))

	var (
		res *api.MatchResult
		err error
	)
	if mode == ModeUpload {
		res, err = c.gateway.UploadAndMatch(ctx, file)
	} else {
		res, err = c.gateway.MatchText(ctx, api.TextMatch{
			ResumeText:     strings.TrimSpace(text.ResumeText),
			JobDescription: strings.TrimSpace(text.JobDescription),
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.superseded(generation, authenticated) {
		c.state = State{Status: StatusIdle}
		c.logger.Info("discarding match response for a superseded session")
		return c.snapshot(), ErrStale
	}

	if err == nil && res == nil {
		err = errs.New(errs.KindNetworkOrServer, "empty match response")
	}
	if err != nil {
		return c.fail(err), err
	}

	class, err := classifier.Classify(res.MatchScore)
	if err != nil {
		return c.fail(err), err
	}

	c.state = State{
		Status: StatusSucceeded,
		Result: &Result{MatchResult: *res, Classification: class},
	}
	c.logger.Info("match completed",
		zap.Float64("score", res.MatchScore),
		zap.String("label", class.Label),
	)

	return c.snapshot(), nil
}

// fail records err. c.mu must be held.
func (c *Controller) fail(err error) State {
	c.state = State{
		Status: StatusFailed,
		Err:    &ErrorInfo{Kind: errs.KindOf(err), Message: errs.Message(err)},
	}
	c.logger.Warn("match failed", zap.String("kind", errs.KindOf(err).String()), zap.Error(err))
	return c.snapshot()
}

func (c *Controller) session() (uint64, bool) {
	if c.authority == nil {
		return 0, false
	}
	return c.authority.Generation(), c.authority.IsAuthenticated()
}

// superseded reports whether the session the request was made under is gone.
func (c *Controller) superseded(generation uint64, authenticated bool) bool {
	if c.authority == nil {
		return false
	}
	if c.authority.Generation() != generation {
		return true
	}
	return authenticated && !c.authority.IsAuthenticated()
}
