package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/resume-matcher/internal/advisor"
	"github.com/spigell/resume-matcher/internal/api"
	"github.com/spigell/resume-matcher/internal/classifier"
	"github.com/spigell/resume-matcher/internal/document"
	"github.com/spigell/resume-matcher/internal/errs"
	"github.com/spigell/resume-matcher/internal/utils"
	"github.com/spigell/resume-matcher/internal/workflow"
)

const jobPreviewLength = 80

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score résumés against job descriptions",
}

var matchTextCmd = &cobra.Command{
	Use:   "text",
	Short: "Match résumé text against a job description",
	Run: func(cmd *cobra.Command, _ []string) {
		a := newApplication()

		resume, err := textInput(cmd, "resume-text", "resume")
		if err != nil {
			a.logger.Fatal("reading résumé", zap.Error(err))
		}
		job, err := textInput(cmd, "job-text", "job")
		if err != nil {
			a.logger.Fatal("reading job description", zap.Error(err))
		}

		wf := a.workflow()
		wf.SetResumeText(resume)
		wf.SetJobDescription(job)

		submitAndPrint(cmd, a, wf, resume, job)
	},
}

var matchUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a PDF résumé and match it against a job description",
	Run: func(cmd *cobra.Command, _ []string) {
		a := newApplication()

		path, _ := cmd.Flags().GetString("resume")
		doc, err := document.Open(path)
		if err != nil {
			a.logger.Fatal("opening résumé", zap.Error(err))
		}
		job, err := textInput(cmd, "job-text", "job")
		if err != nil {
			a.logger.Fatal("reading job description", zap.Error(err))
		}

		wf := a.workflow()
		if err := wf.SetMode(workflow.ModeUpload); err != nil {
			a.logger.Fatal("switching mode", zap.Error(err))
		}
		wf.SelectFile(doc)
		wf.SetJobDescription(job)

		resumeText := ""
		if advise, _ := cmd.Flags().GetBool("advise"); advise {
			if resumeText, err = doc.Text(); err != nil {
				a.logger.Warn("cannot extract résumé text for advice", zap.Error(err))
			}
		}

		submitAndPrint(cmd, a, wf, resumeText, job)
	},
}

var matchBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Match résumé files against job description files pairwise",
	Run: func(cmd *cobra.Command, _ []string) {
		a := newApplication()
		ctx := cmd.Context()

		resumePaths, _ := cmd.Flags().GetStringSlice("resume")
		jobPaths, _ := cmd.Flags().GetStringSlice("job")

		resumes, jobs, err := loadPairs(ctx, resumePaths, jobPaths)
		if err != nil {
			a.logger.Fatal("reading batch inputs", zap.Error(err))
		}

		res, err := a.client.Match(ctx, api.BatchMatch{Resumes: resumes, JobDescriptions: jobs})
		if err != nil {
			a.logger.Fatal("batch match failed", zap.String("reason", userMessage(err)), zap.Error(err))
		}
		batch := res.Batch

		a.logger.Info("batch finished",
			zap.Int("processed", batch.TotalProcessed),
			zap.Int("successful", batch.Successful),
			zap.Int("failed", batch.Failed),
			zap.Float64("seconds", batch.ProcessingTimeSeconds),
		)

		for _, row := range batch.Results {
			name := fmt.Sprintf("#%d", row.Index)
			if row.Index >= 0 && row.Index < len(resumePaths) {
				name = fmt.Sprintf("%s ↔ %s", resumePaths[row.Index], jobPaths[row.Index])
			}
			if !row.Success || row.MatchScore == nil {
				fmt.Printf("%-50s  failed: %s\n", name, row.Error)
				continue
			}
			fmt.Printf("%-50s  %s\n", name, scoreLine(*row.MatchScore))
		}

		if dump, _ := cmd.Flags().GetBool("dump"); dump {
			filename, err := batch.DumpToTmpFile()
			if err != nil {
				a.logger.Fatal("dump results to file", zap.Error(err))
			}
			a.logger.Info("dumping result to file", zap.String("filename", filename))
		}
	},
}

var matchMultiCmd = &cobra.Command{
	Use:   "multi",
	Short: "Rank several job descriptions for one résumé",
	Run: func(cmd *cobra.Command, _ []string) {
		a := newApplication()
		ctx := cmd.Context()

		resume, err := textInput(cmd, "resume-text", "resume")
		if err != nil {
			a.logger.Fatal("reading résumé", zap.Error(err))
		}

		jobPaths, _ := cmd.Flags().GetStringSlice("job")
		jobs, err := readFiles(ctx, jobPaths)
		if err != nil {
			a.logger.Fatal("reading job descriptions", zap.Error(err))
		}

		topK, _ := cmd.Flags().GetInt("top-k")
		res, err := a.client.Match(ctx, api.MultiJobMatch{ResumeText: resume, JobDescriptions: jobs, TopK: topK})
		if err != nil {
			a.logger.Fatal("multi-job match failed", zap.String("reason", userMessage(err)), zap.Error(err))
		}

		a.logger.Info("jobs ranked", zap.Int("total_jobs", res.MultiJob.TotalJobs))
		for rank, m := range res.MultiJob.Matches {
			name := fmt.Sprintf("job #%d", m.JobIndex)
			if m.JobIndex >= 0 && m.JobIndex < len(jobPaths) {
				name = jobPaths[m.JobIndex]
			}
			fmt.Printf("%2d. %-40s %s\n    %s\n", rank+1, name, scoreLine(m.MatchScore), utils.Preview(m.JobPreview, jobPreviewLength))
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{matchTextCmd, matchMultiCmd} {
		c.Flags().StringP("resume", "r", "", "file with the résumé text ('-' for stdin)")
		c.Flags().String("resume-text", "", "résumé text")
	}
	for _, c := range []*cobra.Command{matchTextCmd, matchUploadCmd} {
		c.Flags().String("job", "", "file with the job description ('-' for stdin)")
		c.Flags().String("job-text", "", "job description text")
		c.Flags().Bool("advise", false, "ask the AI advisor for tailoring suggestions (needs ai.enabled)")
	}

	matchUploadCmd.Flags().StringP("resume", "r", "", "PDF résumé to upload (max 10 MB)")

	matchBatchCmd.Flags().StringSlice("resume", nil, "résumé text files, in order")
	matchBatchCmd.Flags().StringSlice("job", nil, "job description files, paired with --resume by position")
	matchBatchCmd.Flags().Bool("dump", false, "dump the full result to a temporary JSON file")

	matchMultiCmd.Flags().StringSlice("job", nil, "job description files")
	matchMultiCmd.Flags().Int("top-k", 0, "return only the best k jobs")

	matchCmd.AddCommand(matchTextCmd, matchUploadCmd, matchBatchCmd, matchMultiCmd)
	rootCmd.AddCommand(matchCmd)
}

func submitAndPrint(cmd *cobra.Command, a *application, wf *workflow.Controller, resumeText, job string) {
	ctx := cmd.Context()

	state, err := wf.Submit(ctx)
	if err != nil {
		switch {
		case errs.KindOf(err) == errs.KindValidation:
			a.logger.Fatal(errs.Message(err))
		case errors.Is(err, workflow.ErrStale):
			a.logger.Fatal("session changed during the request", zap.Error(err))
		default:
			a.logger.Fatal("match failed", zap.String("reason", userMessage(err)), zap.Error(err))
		}
	}

	printResult(state.Result)

	if advise, _ := cmd.Flags().GetBool("advise"); advise {
		printAdvice(ctx, a, advisor.Input{
			ResumeText:     resumeText,
			JobDescription: job,
			Score:          state.Result.MatchScore,
			Label:          state.Result.Label,
		})
	}
}

func printResult(r *workflow.Result) {
	fmt.Println(scoreLine(r.MatchScore))
	fmt.Printf("tokens: résumé %d, job %d\n", r.ProcessedResumeTokens, r.ProcessedJobTokens)
	fmt.Println(r.Recommendation)
}

func scoreLine(score float64) string {
	class, err := classifier.Classify(score)
	if err != nil {
		return fmt.Sprintf("invalid score %v", score)
	}
	return fmt.Sprintf("%5.1f%%  %s (%s)", classifier.Percent(score), class.Label, class.Color)
}

func printAdvice(ctx context.Context, a *application, in advisor.Input) {
	adv, err := a.newAdvisor(ctx)
	if err != nil {
		a.logger.Warn("advisor unavailable", zap.Error(err))
		return
	}

	advice, err := adv.Advise(ctx, in)
	if err != nil {
		if errors.Is(err, advisor.ErrDisabled) {
			a.logger.Warn("advisor is disabled", zap.String("hint", "set ai.enabled and ai.gemini.api-key-file"))
			return
		}
		a.logger.Warn("getting advice failed", zap.Error(err))
		return
	}

	fmt.Println()
	if advice.Summary != "" {
		fmt.Println(advice.Summary)
	}
	for _, s := range advice.Suggestions {
		fmt.Printf("  - %s\n", s)
	}
}

// textInput returns the inline flag value, or the content of the file flag.
func textInput(cmd *cobra.Command, inlineFlag, fileFlag string) (string, error) {
	if inline, _ := cmd.Flags().GetString(inlineFlag); strings.TrimSpace(inline) != "" {
		return inline, nil
	}

	path, _ := cmd.Flags().GetString(fileFlag)
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	return readText(path)
}

func readText(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	if doc, err := document.Open(path); err == nil {
		return doc.Text()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// readFiles loads every path concurrently, keeping the input order.
func readFiles(ctx context.Context, paths []string) ([]string, error) {
	out := make([]string, len(paths))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			text, err := readText(p)
			if err != nil {
				return err
			}
			out[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func loadPairs(ctx context.Context, resumePaths, jobPaths []string) ([]string, []string, error) {
	if len(resumePaths) != len(jobPaths) {
		return nil, nil, fmt.Errorf("number of résumés (%d) must match number of job descriptions (%d)", len(resumePaths), len(jobPaths))
	}

	var resumes, jobs []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		resumes, err = readFiles(gctx, resumePaths)
		return err
	})
	g.Go(func() (err error) {
		jobs, err = readFiles(gctx, jobPaths)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return resumes, jobs, nil
}
