// Package advisor produces optional résumé tailoring suggestions for a finished match.
// Advice never changes the score or its classification.
package advisor

import (
	"context"
	"errors"
	"strings"
)

var ErrDisabled = errors.New("advisor is disabled")

type Input struct {
	ResumeText     string
	JobDescription string
	Score          float64
	Label          string
}

func (in Input) Validate() error {
	if strings.TrimSpace(in.ResumeText) == "" {
		return errors.New("resume text is required for advice")
	}
	if strings.TrimSpace(in.JobDescription) == "" {
		return errors.New("job description is required for advice")
	}
	return nil
}

type Advice struct {
	Summary     string
	Suggestions []string
	Raw         string
}

type Advisor interface {
	Advise(ctx context.Context, in Input) (*Advice, error)
}

// Disabled is used when no AI backend is configured.
type Disabled struct{}

func (Disabled) Advise(context.Context, Input) (*Advice, error) {
	return nil, ErrDisabled
}
