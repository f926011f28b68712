package distribute

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/shiplog/shiplog/internal/logging"
	"github.com/shiplog/shiplog/internal/notes"
)

// chatDeliverer sends a document to a chat webhook.
type chatDeliverer interface {
	Send(ctx context.Context, webhookURL string, summary Summary, document string) error
}

// emailDeliverer sends a document to an email address.
type emailDeliverer interface {
	Send(ctx context.Context, address string, summary Summary, document string) error
}

// Distributor attempts delivery to every target independently.
type Distributor struct {
	chat             chatDeliverer
	email            emailDeliverer
	perTargetTimeout time.Duration
	logger           *logging.Logger
	now              func() time.Time
}

// NewDistributor creates a Distributor. perTargetTimeout bounds each chat and
// email delivery so one slow channel cannot stall the others.
func NewDistributor(chat *ChatSender, email *EmailSender, perTargetTimeout time.Duration, logger *logging.Logger) *Distributor {
	if perTargetTimeout == 0 {
		perTargetTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Distributor{
		chat:             chat,
		email:            email,
		perTargetTimeout: perTargetTimeout,
		logger:           logger,
		now:              time.Now,
	}
}

// Distribute fans the documents out to every target concurrently and returns
// one Outcome per target, same length and order as targets. It never returns
// an error: each target's failure is captured on its outcome row.
func (d *Distributor) Distribute(ctx context.Context, summary Summary, docs *notes.DocumentSet, targets []Target) []Outcome {
	outcomes := iter.Map(targets, func(t *Target) Outcome {
		return d.deliver(ctx, summary, docs, *t)
	})

	succeeded := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
		}
	}
	d.logger.Info("distribution complete",
		"repo", summary.RepoFullName,
		"tag", summary.TagName,
		"targets", len(targets),
		"succeeded", succeeded)

	return outcomes
}

// deliver attempts a single target and converts the result into an Outcome.
func (d *Distributor) deliver(ctx context.Context, summary Summary, docs *notes.DocumentSet, t Target) Outcome {
	outcome := Outcome{
		Audience: t.Audience(),
		Channel:  t.Kind(),
	}

	document := docs.ForAudience(t.Audience())

	var err error
	switch t.Kind() {
	case KindHosted:
		// The hosted page serves persisted notes directly; nothing to send.
	case KindChat:
		sendCtx, cancel := context.WithTimeout(ctx, d.perTargetTimeout)
		err = d.chat.Send(sendCtx, t.webhookURL, summary, document)
		cancel()
	case KindEmail:
		sendCtx, cancel := context.WithTimeout(ctx, d.perTargetTimeout)
		err = d.email.Send(sendCtx, t.address, summary, document)
		cancel()
	}

	respondedAt := d.now().UTC()
	outcome.RespondedAt = &respondedAt

	if err != nil {
		outcome.Success = false
		outcome.ErrorDetail = err.Error()
		d.logger.WithChannel(string(t.Kind())).Warn("delivery failed",
			"audience", t.Audience(),
			"error", err)
		return outcome
	}

	outcome.Success = true
	return outcome
}
