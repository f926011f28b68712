package cmd

import (
	"context"

	"github.com/shiplog/shiplog/internal/changeset"
	"github.com/shiplog/shiplog/internal/config"
	"github.com/shiplog/shiplog/internal/distribute"
	"github.com/shiplog/shiplog/internal/errors"
	"github.com/shiplog/shiplog/internal/github"
	"github.com/shiplog/shiplog/internal/llm"
	"github.com/shiplog/shiplog/internal/logging"
	"github.com/shiplog/shiplog/internal/notes"
	"github.com/shiplog/shiplog/internal/orchestrator"
	"github.com/shiplog/shiplog/internal/secrets"
	"github.com/shiplog/shiplog/internal/store"
)

// app holds the wired pipeline shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	store  *store.Store
	orch   *orchestrator.Orchestrator
}

// buildApp loads configuration and wires the pipeline stages together.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}

	logger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return nil, errors.Wrap(err, "initialize logging")
	}

	st, err := store.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		_ = logger.Close()
		return nil, errors.Wrap(err, "connect to database")
	}

	vault, err := secrets.NewVault(cfg.Crypto.Key)
	if err != nil {
		_ = st.Close()
		_ = logger.Close()
		return nil, err
	}

	gh := github.NewClient(
		github.WithBaseURL(cfg.GitHub.APIBaseURL),
		github.WithTimeout(cfg.GitHub.RequestTimeout()),
	)

	textClient, err := llm.NewClient(llm.Options{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Timeout:     cfg.OpenAI.RequestTimeout(),
	})
	if err != nil {
		_ = st.Close()
		_ = logger.Close()
		return nil, err
	}

	chat := distribute.NewChatSender(cfg.Distribution.PerTargetTimeout())
	email := distribute.NewEmailSender(cfg.Email.APIKey, cfg.Email.BaseURL,
		cfg.Email.From, cfg.Distribution.PerTargetTimeout())

	orch := orchestrator.New(
		st,
		vault,
		changeset.NewAggregator(gh, logger),
		notes.NewGenerator(textClient, logger),
		distribute.NewDistributor(chat, email, cfg.Distribution.PerTargetTimeout(), logger),
		gh,
		logger,
	)

	return &app{cfg: cfg, logger: logger, store: st, orch: orch}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	_ = a.store.Close()
	_ = a.logger.Close()
}
