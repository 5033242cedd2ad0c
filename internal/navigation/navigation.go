// Package navigation decides which view is active and gates views behind sign-in.
package navigation

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/session"
)

var ErrLoginRequired = errors.New("sign in to open this view")

type View int

const (
	ViewHome View = iota
	ViewMatching
	ViewBuilder
	ViewPricing
)

func (v View) String() string {
	switch v {
	case ViewMatching:
		return "matching"
	case ViewBuilder:
		return "builder"
	case ViewPricing:
		return "pricing"
	default:
		return "home"
	}
}

// Gated reports whether v needs a signed-in user. Only Home is public.
func (v View) Gated() bool {
	return v != ViewHome
}

// LoginPrompter asks the user to sign in. It is given the view that was refused.
type LoginPrompter interface {
	PromptLogin(requested View)
}

type PrompterFunc func(requested View)

func (f PrompterFunc) PromptLogin(requested View) { f(requested) }

// Session is the part of the session store navigation depends on.
type Session interface {
	IsAuthenticated() bool
	Clear() error
	OnChange(fn func(session.Session))
}

type AccessState struct {
	Authenticated bool
	ActiveView    View
}

type Controller struct {
	session  Session
	prompter LoginPrompter
	logger   *zap.Logger

	mu     sync.Mutex
	active View
}

// New starts at Home and follows the session: when it disappears the active view falls back to Home.
func New(s Session, prompter LoginPrompter, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		session:  s,
		prompter: prompter,
		logger:   logger,
		active:   ViewHome,
	}

	s.OnChange(func(cur session.Session) {
		if cur.Empty() {
			c.goHome("session ended")
		}
	})

	return c
}

// Navigate opens v. A gated view without a session prompts for sign-in once,
// stays on Home and returns ErrLoginRequired.
func (c *Controller) Navigate(v View) (View, error) {
	if v.Gated() && !c.session.IsAuthenticated() {
		c.mu.Lock()
		c.active = ViewHome
		c.mu.Unlock()

		c.logger.Debug("navigation refused, sign-in required", zap.Stringer("view", v))
		if c.prompter != nil {
			c.prompter.PromptLogin(v)
		}
		return ViewHome, ErrLoginRequired
	}

	c.mu.Lock()
	c.active = v
	c.mu.Unlock()

	c.logger.Debug("navigated", zap.Stringer("view", v))
	return v, nil
}

// LoggedIn lands on Home. The view refused before sign-in is not reopened.
func (c *Controller) LoggedIn() View {
	c.goHome("signed in")
	return ViewHome
}

// Logout clears the session and returns to Home. The view changes even if clearing fails.
func (c *Controller) Logout() (View, error) {
	err := c.session.Clear()
	c.goHome("signed out")
	return ViewHome, err
}

func (c *Controller) State() AccessState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return AccessState{
		Authenticated: c.session.IsAuthenticated(),
		ActiveView:    c.active,
	}
}

func (c *Controller) goHome(reason string) {
	c.mu.Lock()
	prev := c.active
	c.active = ViewHome
	c.mu.Unlock()

	if prev != ViewHome {
		c.logger.Debug("returned to home", zap.String("reason", reason), zap.Stringer("from", prev))
	}
}
