package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the service is up and the model is loaded",
	Run: func(cmd *cobra.Command, _ []string) {
		a := newApplication()

		health, err := a.client.Health(cmd.Context())
		if err != nil {
			a.logger.Fatal("checking health", zap.String("reason", userMessage(err)), zap.Error(err))
		}

		fmt.Printf("status:        %s\n", health.Status)
		fmt.Printf("model loaded:  %t\n", health.ModelLoaded)
		if health.ModelVersion != "" {
			fmt.Printf("model version: %s\n", health.ModelVersion)
		}
	},
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator commands",
}

var retrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Retrain the matching model (needs the operator token)",
	Run: func(cmd *cobra.Command, _ []string) {
		a := newApplication()

		token, err := a.operatorToken()
		if err != nil {
			a.logger.Fatal("loading operator token", zap.Error(err), zap.String("hint", "set operator-token-file or "+envPrefix+"_OPERATOR_TOKEN_FILE"))
		}

		res, err := a.client.Retrain(cmd.Context(), token)
		if err != nil {
			a.logger.Fatal("retraining model", zap.String("reason", userMessage(err)), zap.Error(err))
		}

		a.logger.Info("model retrained",
			zap.String("status", res.Status),
			zap.String("version", res.Version),
			zap.Int("documents", res.NumDocs),
			zap.String("trained_at", res.TrainedAt),
		)
		if res.Message != "" {
			fmt.Println(res.Message)
		}
	},
}

func init() {
	adminCmd.AddCommand(retrainCmd)
	rootCmd.AddCommand(healthCmd, adminCmd)
}
