package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/advisor"
	"github.com/spigell/resume-matcher/internal/builder"
	"github.com/spigell/resume-matcher/internal/document"
	"github.com/spigell/resume-matcher/internal/errs"
	"github.com/spigell/resume-matcher/internal/navigation"
	"github.com/spigell/resume-matcher/internal/workflow"
)

const (
	PromptMatching = "Match résumé"
	PromptBuilder  = "Resume builder"
	PromptPricing  = "Pricing"
	PromptLogin    = "Log in"
	PromptSignup   = "Sign up"
	PromptLogout   = "Log out"
	PromptExit     = "Exit"
	PromptBack     = "back"
	PromptYes      = "Yes"
	PromptNo       = "No"

	PromptTextMode   = "Paste résumé text"
	PromptUploadMode = "Upload PDF résumé"
	PromptAdvice     = "Ask for tailoring advice"

	PromptTemplates = "List templates"
	PromptGenerate  = "Generate from form file"
	PromptMyResumes = "My résumés"
	PromptPreview   = "Preview résumé"
	PromptDownload  = "Download résumé"
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive session",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	runCmd.Flags().String("out", ".", "directory for downloaded résumés")
	rootCmd.AddCommand(runCmd)
}

type interactive struct {
	ctx      context.Context
	app      *application
	nav      *navigation.Controller
	workflow *workflow.Controller
	outDir   string
}

func run(cmd *cobra.Command) {
	a := newApplication()
	outDir, _ := cmd.Flags().GetString("out")

	s := &interactive{
		ctx:      cmd.Context(),
		app:      a,
		workflow: a.workflow(),
		outDir:   outDir,
	}
	s.nav = navigation.New(a.store, navigation.PrompterFunc(func(v navigation.View) {
		a.logger.Warn("sign in to open this view", zap.Stringer("view", v))
	}), a.logger.Named("navigation"))

	if s.nav.State().Authenticated {
		a.logger.Info("using stored session")
	}

	for {
		err := s.home()
		if errors.Is(err, errExit) {
			return
		}
		if err != nil {
			a.logger.Error("interactive session failed", zap.Error(err))
			return
		}
	}
}

func (s *interactive) home() error {
	items := []string{PromptMatching, PromptBuilder, PromptPricing}
	if s.nav.State().Authenticated {
		items = append(items, PromptLogout)
	} else {
		items = append(items, PromptLogin, PromptSignup)
	}
	items = append(items, PromptExit)

	choice, err := choose("resume-matcher", items)
	if err != nil {
		return err
	}

	switch choice {
	case PromptMatching:
		return s.open(navigation.ViewMatching, s.matching)
	case PromptBuilder:
		return s.open(navigation.ViewBuilder, s.builder)
	case PromptPricing:
		return s.open(navigation.ViewPricing, s.pricing)
	case PromptLogin, PromptSignup:
		s.signIn(choice == PromptSignup)
	case PromptLogout:
		if _, err := s.nav.Logout(); err != nil {
			s.app.logger.Warn("signing out", zap.Error(err))
		}
		s.app.logger.Info("signed out")
	case PromptExit:
		return errExit
	}
	return nil
}

// open navigates to v and runs its loop. A refused view offers a sign-in.
func (s *interactive) open(v navigation.View, loop func() error) error {
	if _, err := s.nav.Navigate(v); err != nil {
		if !errors.Is(err, navigation.ErrLoginRequired) {
			return err
		}
		if ok, err := confirm("Sign in now?"); err != nil || !ok {
			return err
		}
		s.signIn(false)
		return nil
	}
	return loop()
}

func (s *interactive) signIn(signup bool) {
	if err := interactiveLogin(s.ctx, s.app, signup); err != nil {
		if isAbort(err) {
			return
		}
		s.app.logger.Error("signing in failed", zap.String("reason", userMessage(err)))
		return
	}
	s.nav.LoggedIn()
	s.app.logger.Info("signed in")
}

// active reports whether v is still on screen; a rejected session moves navigation away.
func (s *interactive) active(v navigation.View) bool {
	return s.nav.State().ActiveView == v
}

func (s *interactive) matching() error {
	for s.active(navigation.ViewMatching) {
		items := []string{PromptTextMode, PromptUploadMode}
		if st := s.workflow.State(); st.Status == workflow.StatusSucceeded && s.app.config.AI.Enabled {
			items = append(items, PromptAdvice)
		}
		items = append(items, PromptBack)

		choice, err := choose("Matching", items)
		if err != nil {
			return ignoreAbort(err)
		}

		switch choice {
		case PromptTextMode:
			err = s.matchText()
		case PromptUploadMode:
			err = s.matchUpload()
		case PromptAdvice:
			s.advise()
		case PromptBack:
			return nil
		}
		if err != nil {
			return ignoreAbort(err)
		}
	}
	return nil
}

func (s *interactive) matchText() error {
	if err := s.workflow.SetMode(workflow.ModeText); err != nil {
		return err
	}

	resume, err := ask("Résumé (text or @file)")
	if err != nil {
		return err
	}
	job, err := ask("Job description (text or @file)")
	if err != nil {
		return err
	}

	s.workflow.SetResumeText(resume)
	s.workflow.SetJobDescription(job)
	s.submit()
	return nil
}

func (s *interactive) matchUpload() error {
	if err := s.workflow.SetMode(workflow.ModeUpload); err != nil {
		return err
	}

	path, err := (&promptui.Prompt{Label: "PDF résumé path"}).Run()
	if err != nil {
		return err
	}
	s.workflow.ClearFile()
	if strings.TrimSpace(path) != "" {
		doc, err := document.Open(strings.TrimSpace(path))
		if err != nil {
			s.app.logger.Error("cannot use this file", zap.String("reason", errs.Message(err)))
			return nil
		}
		s.workflow.SelectFile(doc)
	}

	job, err := ask("Job description (text or @file)")
	if err != nil {
		return err
	}
	s.workflow.SetJobDescription(job)
	s.submit()
	return nil
}

func (s *interactive) submit() {
	state, err := s.workflow.Submit(s.ctx)
	switch {
	case err == nil:
		fmt.Println()
		printResult(state.Result)
		fmt.Println()
	case errs.KindOf(err) == errs.KindValidation:
		s.app.logger.Warn(errs.Message(err))
	case errors.Is(err, workflow.ErrStale):
		s.app.logger.Warn("the session changed while matching, result discarded")
	default:
		s.app.logger.Error("match failed", zap.String("reason", userMessage(err)))
	}
}

func (s *interactive) advise() {
	st := s.workflow.State()
	if st.Result == nil {
		return
	}

	in := s.workflow.Input()
	if in.Mode == workflow.ModeUpload && in.File != nil {
		text, err := in.File.Text()
		if err != nil {
			s.app.logger.Warn("cannot extract résumé text for advice", zap.Error(err))
			return
		}
		in.ResumeText = text
	}

	printAdvice(s.ctx, s.app, advisor.Input{
		ResumeText:     in.ResumeText,
		JobDescription: in.JobDescription,
		Score:          st.Result.MatchScore,
		Label:          st.Result.Label,
	})
}

func (s *interactive) builder() error {
	items := []string{PromptTemplates, PromptGenerate, PromptMyResumes, PromptPreview, PromptDownload, PromptBack}

	for s.active(navigation.ViewBuilder) {
		choice, err := choose("Resume builder", items)
		if err != nil {
			return ignoreAbort(err)
		}

		switch choice {
		case PromptTemplates:
			err = s.listTemplates()
		case PromptGenerate:
			err = s.generate()
		case PromptMyResumes:
			err = s.listResumes()
		case PromptPreview:
			err = s.preview()
		case PromptDownload:
			err = s.download()
		case PromptBack:
			return nil
		}

		if isAbort(err) {
			continue
		}
		if err != nil {
			s.app.logger.Error(choice+" failed", zap.String("reason", userMessage(err)))
		}
	}
	return nil
}

func (s *interactive) listTemplates() error {
	templates, err := s.app.builder.Templates(s.ctx)
	if err != nil {
		return err
	}
	printTemplates(templates)
	return nil
}

func (s *interactive) generate() error {
	path, err := (&promptui.Prompt{Label: "Form file (JSON)"}).Run()
	if err != nil {
		return err
	}

	form, err := builder.LoadForm(strings.TrimSpace(path))
	if err != nil {
		return err
	}

	generated, err := s.app.builder.Generate(s.ctx, *form)
	if err != nil {
		return err
	}
	s.app.logger.Info("résumé generated", zap.Int("id", generated.ResumeID), zap.String("template", generated.TemplateUsed), zap.Float64("ats_score", generated.ATSScore))
	return nil
}

func (s *interactive) listResumes() error {
	resumes, err := s.app.builder.List(s.ctx)
	if err != nil {
		return err
	}
	printResumes(resumes)
	return nil
}

func (s *interactive) preview() error {
	id, err := askID()
	if err != nil {
		return err
	}

	text, preview, err := s.app.builder.PreviewText(s.ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("\nrésumé #%d, ATS score %.0f\n\n%s\n\n", preview.ResumeID, preview.ATSScore, text)
	return nil
}

func (s *interactive) download() error {
	id, err := askID()
	if err != nil {
		return err
	}

	path, err := s.app.builder.Download(s.ctx, id, s.outDir)
	if err != nil {
		return err
	}
	s.app.logger.Info("résumé saved", zap.String("path", path))
	return nil
}

func (s *interactive) pricing() error {
	sub, err := s.app.account.Subscription(s.ctx)
	if err != nil {
		s.app.logger.Error("getting subscription", zap.String("reason", userMessage(err)))
		return nil
	}
	fmt.Println()
	printSubscription(sub)
	fmt.Println()
	return nil
}

func choose(label string, items []string) (string, error) {
	p := promptui.Select{
		Label: label,
		Items: items,
		Size:  len(items),
	}
	_, choice, err := p.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return "", errExit
	}
	return choice, err
}

func confirm(label string) (bool, error) {
	choice, err := choose(label, []string{PromptYes, PromptNo})
	if err != nil {
		return false, err
	}
	return choice == PromptYes, nil
}

// ask reads free text. A value starting with @ names a file to read instead.
func ask(label string) (string, error) {
	value, err := (&promptui.Prompt{Label: label}).Run()
	if err != nil {
		return "", err
	}

	if path, ok := strings.CutPrefix(strings.TrimSpace(value), "@"); ok {
		return readText(path)
	}
	return value, nil
}

func askID() (int, error) {
	p := promptui.Prompt{
		Label: "Résumé ID",
		Validate: func(s string) error {
			if id, err := strconv.Atoi(strings.TrimSpace(s)); err != nil || id <= 0 {
				return errors.New("enter a positive number")
			}
			return nil
		},
	}

	value, err := p.Run()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(value))
}

func isAbort(err error) bool {
	return errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, errExit)
}

// ignoreAbort turns Ctrl+C inside a view into a return to Home.
func ignoreAbort(err error) error {
	if isAbort(err) {
		fmt.Fprintln(os.Stderr)
		return nil
	}
	return err
}
