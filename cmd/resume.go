package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/api"
	"github.com/spigell/resume-matcher/internal/builder"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Build résumés from a form and manage the generated ones",
}

var resumeTemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List résumé templates",
	Run: func(cmd *cobra.Command, _ []string) {
		a := newApplication()

		templates, err := a.builder.Templates(cmd.Context())
		if err != nil {
			a.logger.Fatal("getting templates", zap.String("reason", userMessage(err)), zap.Error(err))
		}
		printTemplates(templates)
	},
}

var resumeGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a résumé from a JSON form file (uses one credit)",
	Run: func(cmd *cobra.Command, _ []string) {
		a := newApplication()

		path, _ := cmd.Flags().GetString("form")
		form, err := builder.LoadForm(path)
		if err != nil {
			a.logger.Fatal("reading form", zap.String("reason", userMessage(err)), zap.Error(err))
		}
		if template, _ := cmd.Flags().GetString("template"); template != "" {
			form.Template = template
		}

		generated, err := a.builder.Generate(cmd.Context(), *form)
		if err != nil {
			a.logger.Fatal("generating résumé", zap.String("reason", userMessage(err)), zap.Error(err))
		}

		a.logger.Info("résumé generated",
			zap.Int("id", generated.ResumeID),
			zap.String("template", generated.TemplateUsed),
			zap.Float64("ats_score", generated.ATSScore),
		)
	},
}

var resumeDownloadCmd = &cobra.Command{
	Use:   "download <id>",
	Short: "Download a generated résumé as PDF",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := newApplication()

		id, err := strconv.Atoi(args[0])
		if err != nil {
			a.logger.Fatal("résumé id must be a number", zap.String("id", args[0]))
		}
		out, _ := cmd.Flags().GetString("out")

		path, err := a.builder.Download(cmd.Context(), id, out)
		if err != nil {
			a.logger.Fatal("downloading résumé", zap.String("reason", userMessage(err)), zap.Error(err))
		}
		a.logger.Info("résumé saved", zap.String("path", path))
	},
}

var resumeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your generated résumés",
	Run: func(cmd *cobra.Command, _ []string) {
		a := newApplication()

		resumes, err := a.builder.List(cmd.Context())
		if err != nil {
			a.logger.Fatal("listing résumés", zap.String("reason", userMessage(err)), zap.Error(err))
		}
		printResumes(resumes)
	},
}

var resumePreviewCmd = &cobra.Command{
	Use:   "preview <id>",
	Short: "Print a generated résumé as plain text",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := newApplication()

		id, err := strconv.Atoi(args[0])
		if err != nil {
			a.logger.Fatal("résumé id must be a number", zap.String("id", args[0]))
		}

		text, preview, err := a.builder.PreviewText(cmd.Context(), id)
		if err != nil {
			a.logger.Fatal("previewing résumé", zap.String("reason", userMessage(err)), zap.Error(err))
		}
		if html, _ := cmd.Flags().GetBool("html"); html {
			fmt.Println(preview.HTML)
			return
		}
		fmt.Println(text)
	},
}

func init() {
	resumeGenerateCmd.Flags().StringP("form", "f", "", "JSON file with the résumé form")
	resumeGenerateCmd.Flags().StringP("template", "t", "", "template name (default "+api.DefaultTemplate+")")
	_ = resumeGenerateCmd.MarkFlagRequired("form")

	resumeDownloadCmd.Flags().StringP("out", "o", ".", "directory to save the PDF into")
	resumePreviewCmd.Flags().Bool("html", false, "print the raw HTML instead of text")

	resumeCmd.AddCommand(resumeTemplatesCmd, resumeGenerateCmd, resumeDownloadCmd, resumeListCmd, resumePreviewCmd)
	rootCmd.AddCommand(resumeCmd)
}

func printTemplates(templates []api.Template) {
	for _, t := range templates {
		ats := ""
		if t.ATSOptimized {
			ats = " [ATS]"
		}
		fmt.Printf("%-20s %s%s\n    %s\n", t.Name, t.DisplayName, ats, t.Description)
	}
}

func printResumes(resumes []api.StoredResume) {
	if len(resumes) == 0 {
		fmt.Println("no résumés yet")
		return
	}
	for _, r := range resumes {
		fmt.Printf("#%-5d %-20s ATS %3.0f  created %s\n", r.ID, r.Template, r.ATSScore, r.CreatedAt)
	}
}
