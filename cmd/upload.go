package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/document"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Upload a PDF résumé and show what the service extracted",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := newApplication()

		doc, err := document.Open(args[0])
		if err != nil {
			a.logger.Fatal("opening résumé", zap.String("reason", userMessage(err)), zap.Error(err))
		}
		if pages, err := doc.Pages(); err == nil {
			a.logger.Debug("local document", zap.String("file", doc.Name), zap.Int("pages", pages), zap.Int64("size", doc.Size()))
		}

		uploaded, err := a.client.UploadResume(cmd.Context(), doc)
		if err != nil {
			a.logger.Fatal("uploading résumé", zap.String("reason", userMessage(err)), zap.Error(err))
		}

		fmt.Printf("file:            %s\n", uploaded.Filename)
		fmt.Printf("size:            %d bytes\n", uploaded.SizeBytes)
		fmt.Printf("extracted chars: %d\n", uploaded.ExtractedTextLength)
		for k, v := range uploaded.Metadata {
			fmt.Printf("  %s: %v\n", k, v)
		}
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
