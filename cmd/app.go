package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/account"
	"github.com/spigell/resume-matcher/internal/advisor"
	"github.com/spigell/resume-matcher/internal/advisor/gemini"
	"github.com/spigell/resume-matcher/internal/api"
	"github.com/spigell/resume-matcher/internal/builder"
	"github.com/spigell/resume-matcher/internal/logger"
	"github.com/spigell/resume-matcher/internal/secrets"
	"github.com/spigell/resume-matcher/internal/session"
	"github.com/spigell/resume-matcher/internal/workflow"
)

// application holds everything a command needs, built once per invocation.
type application struct {
	config  *Config
	logger  *zap.Logger
	store   *session.Store
	client  *api.Client
	account *account.Service
	builder *builder.Service
}

func newApplication() *application {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	sessionPath := strings.TrimSpace(config.SessionFile)
	if sessionPath == "" {
		sessionPath, err = session.DefaultPath()
		if err != nil {
			logger.Fatal("resolving session file", zap.Error(err), zap.String("hint", "set --session-file or RESUME_MATCHER_SESSION_FILE"))
		}
	}

	store := session.New(session.NewFile(sessionPath), logger.Named("session"))

	client := api.New(logger.Named("api"), config.BaseURL, store)
	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}
	if config.Timeout > 0 {
		client.HTTPClient.Timeout = config.Timeout
	}

	return &application{
		config:  config,
		logger:  logger,
		store:   store,
		client:  client,
		account: account.New(client, store, logger.Named("account")),
		builder: builder.New(client, logger.Named("builder")),
	}
}

func (a *application) workflow() *workflow.Controller {
	return workflow.New(a.client, a.store, a.logger.Named("workflow"))
}

func (a *application) operatorToken() (string, error) {
	return secrets.Load(secrets.Source{
		Name:  "operator token",
		Value: a.config.OperatorToken,
		File:  a.config.OperatorTokenFile,
		Env:   envPrefix + "_OPERATOR_TOKEN",
	})
}

// newAdvisor returns the configured advisor, or advisor.Disabled when AI is off.
func (a *application) newAdvisor(ctx context.Context) (advisor.Advisor, error) {
	cfg := a.config.AI
	if cfg == nil || !cfg.Enabled {
		return advisor.Disabled{}, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
	if err != nil {
		return nil, err
	}

	advisorLogger := logger.WithFields(a.logger,
		logger.StringFields(
			logger.StringField{Key: "provider", Value: "gemini"},
			logger.StringField{Key: "model", Value: generator.Model()},
		)...,
	)

	return gemini.NewAdvisor(generator, advisorLogger, cfg.Gemini.MaxLogLength), nil
}

// redacted copies config with secrets masked for debug output.
func redacted(config *Config) *Config {
	if config == nil {
		return nil
	}

	c := *config
	if c.OperatorToken != "" {
		c.OperatorToken = "***"
	}
	if c.AI != nil && c.AI.Gemini != nil && c.AI.Gemini.APIKey != "" {
		ai := *c.AI
		g := *ai.Gemini
		g.APIKey = "***"
		ai.Gemini = &g
		c.AI = &ai
	}
	return &c
}
