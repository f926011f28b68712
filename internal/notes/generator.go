package notes

import (
	"context"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/shiplog/shiplog/internal/changeset"
	"github.com/shiplog/shiplog/internal/errors"
	"github.com/shiplog/shiplog/internal/llm"
	"github.com/shiplog/shiplog/internal/logging"
)

// TextClient is the slice of the text-generation provider the generator
// needs. All three audiences run against the same client, so the model
// identifier is shared per invocation.
type TextClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*llm.Result, error)
	Model() string
}

// Generator produces the three audience documents for a release.
type Generator struct {
	client TextClient
	logger *logging.Logger
}

// NewGenerator creates a Generator over the given text client.
func NewGenerator(client TextClient, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Generator{client: client, logger: logger}
}

// Generate produces one document per audience from the change-set.
//
// The three generation calls run concurrently and are awaited jointly: a
// failure in any one cancels the others and fails the whole operation, so a
// partial document set is never returned. An empty change-set still produces
// three documents.
func (g *Generator) Generate(ctx context.Context, tag string, cs *changeset.ChangeSet, style StyleConfig) (*DocumentSet, error) {
	user := userPrompt(tag, cs)

	var results [3]*llm.Result

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	for i, audience := range Audiences() {
		p.Go(func(ctx context.Context) error {
			res, err := g.client.Complete(ctx, systemPrompt(audience, style), user)
			if err != nil {
				return errors.NewGenerationError("completion failed", err).
					WithAudience(string(audience)).WithModel(g.client.Model())
			}
			if strings.TrimSpace(res.Text) == "" {
				return errors.NewGenerationError("completion succeeded with no content", errors.ErrEmptyDocument).
					WithAudience(string(audience)).WithModel(res.Model)
			}
			results[i] = res
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		var genErr *errors.GenerationError
		if errors.As(err, &genErr) {
			return nil, genErr
		}
		return nil, errors.NewGenerationError("generation canceled", err)
	}

	docs := &DocumentSet{
		CustomerText:    results[0].Text,
		DeveloperText:   results[1].Text,
		StakeholderText: results[2].Text,
		TokensUsed:      results[0].TokensUsed + results[1].TokensUsed + results[2].TokensUsed,
		Model:           results[0].Model,
	}

	g.logger.Info("documents generated",
		"tag", tag,
		"model", docs.Model,
		"tokens_used", docs.TokensUsed)

	return docs, nil
}
