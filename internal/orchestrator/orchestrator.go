// Package orchestrator drives a release through its lifecycle: webhook intake,
// change-set aggregation, document generation, persistence, and distribution.
// A release moves received -> processing -> ready -> published, or to failed
// when aggregation or generation breaks.
package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/shiplog/shiplog/internal/changeset"
	"github.com/shiplog/shiplog/internal/distribute"
	"github.com/shiplog/shiplog/internal/errors"
	"github.com/shiplog/shiplog/internal/github"
	"github.com/shiplog/shiplog/internal/logging"
	"github.com/shiplog/shiplog/internal/notes"
	"github.com/shiplog/shiplog/internal/signature"
	"github.com/shiplog/shiplog/internal/store"
)

// Storage is the slice of the persistence layer the orchestrator uses.
type Storage interface {
	CreateRepo(ctx context.Context, repo *store.Repo) error
	GetRepoByFullName(ctx context.Context, fullName string) (*store.Repo, error)
	GetRepoByID(ctx context.Context, id string) (*store.Repo, error)
	SetRepoHookID(ctx context.Context, repoID string, hookID int64) error
	SetRepoActive(ctx context.Context, repoID string, active bool) error
	AddChannel(ctx context.Context, ch *store.Channel) error
	ListEnabledChannels(ctx context.Context, repoID string) ([]store.Channel, error)

	CreateRelease(ctx context.Context, release *store.Release) error
	GetReleaseByTag(ctx context.Context, repoID, tagName string) (*store.Release, error)
	GetReleaseByID(ctx context.Context, id string) (*store.Release, error)
	ListReleaseTags(ctx context.Context, repoID string) (map[string]bool, error)
	UpdateReleaseStatus(ctx context.Context, releaseID string, status store.ReleaseStatus, errMsg string) error
	SetReleaseURL(ctx context.Context, releaseID, url string) error

	UpsertNotes(ctx context.Context, n *store.ReleaseNotes) error
	GetNotes(ctx context.Context, releaseID string) (*store.ReleaseNotes, error)
	InsertOutcomes(ctx context.Context, outcomes []store.Outcome) error
}

// Aggregator builds the change-set for a tag.
type Aggregator interface {
	Aggregate(ctx context.Context, owner, repo, tag, token string) (*changeset.ChangeSet, error)
}

// Generator produces the audience documents from a change-set.
type Generator interface {
	Generate(ctx context.Context, tag string, cs *changeset.ChangeSet, style notes.StyleConfig) (*notes.DocumentSet, error)
}

// Distributor fans documents out to delivery targets.
type Distributor interface {
	Distribute(ctx context.Context, summary distribute.Summary, docs *notes.DocumentSet, targets []distribute.Target) []distribute.Outcome
}

// SourceAPI is the slice of the source-repository client used outside the
// aggregator: release paging for backfill and webhook lifecycle for
// connect/disconnect.
type SourceAPI interface {
	ListReleases(ctx context.Context, token, owner, repo string, perPage int) ([]github.Release, error)
	CreateWebhook(ctx context.Context, token, owner, repo, callbackURL, secret string) (int64, error)
	DeleteWebhook(ctx context.Context, token, owner, repo string, hookID int64) error
}

// CredentialVault seals and opens the stored repository credential.
type CredentialVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	store       Storage
	vault       CredentialVault
	aggregator  Aggregator
	generator   Generator
	distributor Distributor
	source      SourceAPI
	logger      *logging.Logger
}

// New creates an Orchestrator.
func New(st Storage, vault CredentialVault, agg Aggregator, gen Generator, dist Distributor, source SourceAPI, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Orchestrator{
		store:       st,
		vault:       vault,
		aggregator:  agg,
		generator:   gen,
		distributor: dist,
		source:      source,
		logger:      logger,
	}
}

// WebhookRequest is a raw webhook delivery as received on the wire.
type WebhookRequest struct {
	// Body is the unmodified request body; the signature covers these bytes.
	Body []byte
	// Signature is the X-Hub-Signature-256 header value.
	Signature string
	// Event is the X-GitHub-Event header value.
	Event string
}

// Ignore reasons returned on the webhook path.
const (
	ReasonEventIgnored     = "event_ignored"
	ReasonActionIgnored    = "action_ignored"
	ReasonRepoNotConnected = "repo_not_connected"
	ReasonRepoInactive     = "repo_inactive"
	ReasonDuplicateRelease = "duplicate_release"
)

// WebhookResult reports what happened to one webhook delivery.
type WebhookResult struct {
	// Status is "processed" or "ignored".
	Status string
	// Reason explains an ignored delivery.
	Reason string
	// ReleaseID is set when a release record was created.
	ReleaseID string
	// Delivered and Failed count distribution outcomes for processed deliveries.
	Delivered int
	Failed    int
}

func ignored(reason string) *WebhookResult {
	return &WebhookResult{Status: "ignored", Reason: reason}
}

// releaseEvent is the slice of the webhook payload the pipeline reads.
type releaseEvent struct {
	Action  string `json:"action"`
	Release struct {
		TagName string `json:"tag_name"`
		HTMLURL string `json:"html_url"`
	} `json:"release"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// HandleWebhook runs the full webhook path: payload parsing, subscription
// lookup, signature verification, duplicate suppression, then the processing
// pipeline. Nothing is written to the store before the signature verifies.
//
// A delivery that is not a published release event, targets an unknown or
// inactive repository, or repeats an already-recorded tag is ignored rather
// than failed; redelivery of the same tag is expected and must be harmless.
func (o *Orchestrator) HandleWebhook(ctx context.Context, req WebhookRequest) (*WebhookResult, error) {
	if req.Event != "release" {
		o.logger.Debug("ignoring webhook event", "event", req.Event)
		return ignored(ReasonEventIgnored), nil
	}

	var event releaseEvent
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return nil, errors.NewValidationError("malformed webhook payload").WithCause(err)
	}
	if event.Repository.FullName == "" || event.Release.TagName == "" {
		return nil, errors.NewValidationError("webhook payload missing repository or tag")
	}
	if event.Action != "published" {
		o.logger.Debug("ignoring release action",
			"repo", event.Repository.FullName,
			"action", event.Action)
		return ignored(ReasonActionIgnored), nil
	}

	log := o.logger.WithRepo(event.Repository.FullName)

	repo, err := o.store.GetRepoByFullName(ctx, event.Repository.FullName)
	if errors.Is(err, errors.ErrRepoNotConnected) {
		log.Info("webhook for unconnected repository")
		return ignored(ReasonRepoNotConnected), nil
	}
	if err != nil {
		return nil, err
	}
	if !repo.Active {
		log.Info("webhook for inactive repository")
		return ignored(ReasonRepoInactive), nil
	}

	if !signature.Verify(req.Body, req.Signature, repo.WebhookSecret) {
		log.Warn("webhook signature verification failed")
		return nil, errors.ErrInvalidSignature
	}

	tag := event.Release.TagName

	// Pre-check for redelivery. A concurrent insert can still race past this;
	// CreateRelease catches that with the unique constraint.
	if _, err := o.store.GetReleaseByTag(ctx, repo.ID, tag); err == nil {
		log.Info("duplicate release delivery", "tag", tag)
		return ignored(ReasonDuplicateRelease), nil
	} else if !errors.Is(err, errors.ErrReleaseNotFound) {
		return nil, err
	}

	release := &store.Release{
		RepoID:     repo.ID,
		TagName:    tag,
		Status:     store.StatusReceived,
		ReleaseURL: event.Release.HTMLURL,
	}
	if err := o.store.CreateRelease(ctx, release); err != nil {
		if errors.Is(err, errors.ErrDuplicateRelease) {
			log.Info("duplicate release delivery lost insert race", "tag", tag)
			return ignored(ReasonDuplicateRelease), nil
		}
		return nil, err
	}

	delivered, failed, err := o.process(ctx, repo, release, true)
	if err != nil {
		return nil, err
	}

	return &WebhookResult{
		Status:    "processed",
		ReleaseID: release.ID,
		Delivered: delivered,
		Failed:    failed,
	}, nil
}

// process runs a release from received through published. When fanOut is
// false the live chat and email channels are skipped and only synthetic
// hosted outcomes are recorded; backfilled history must not re-notify
// subscribers.
//
// An aggregation or generation failure moves the release to failed with the
// error message recorded, then propagates.
func (o *Orchestrator) process(ctx context.Context, repo *store.Repo, release *store.Release, fanOut bool) (delivered, failed int, err error) {
	log := o.logger.WithRepo(repo.FullName).WithRelease(release.ID)

	if err := o.transition(ctx, release, store.StatusProcessing, ""); err != nil {
		return 0, 0, err
	}

	token, err := o.vault.Decrypt(repo.EncryptedToken)
	if err != nil {
		return 0, 0, o.fail(ctx, release, errors.Wrap(err, "decrypt repository credential"))
	}

	cs, err := o.aggregator.Aggregate(ctx, repo.Owner(), repo.Name(), release.TagName, token)
	if err != nil {
		return 0, 0, o.fail(ctx, release, err)
	}
	if cs.ReleaseURL != "" && cs.ReleaseURL != release.ReleaseURL {
		release.ReleaseURL = cs.ReleaseURL
		if err := o.store.SetReleaseURL(ctx, release.ID, cs.ReleaseURL); err != nil {
			return 0, 0, err
		}
	}

	docs, err := o.generator.Generate(ctx, release.TagName, cs, styleFor(repo))
	if err != nil {
		return 0, 0, o.fail(ctx, release, err)
	}

	if err := o.store.UpsertNotes(ctx, &store.ReleaseNotes{
		ReleaseID:       release.ID,
		CustomerText:    docs.CustomerText,
		DeveloperText:   docs.DeveloperText,
		StakeholderText: docs.StakeholderText,
		TokensUsed:      docs.TokensUsed,
		Model:           docs.Model,
	}); err != nil {
		return 0, 0, err
	}

	if err := o.transition(ctx, release, store.StatusReady, ""); err != nil {
		return 0, 0, err
	}

	targets, err := o.buildTargets(ctx, repo, fanOut)
	if err != nil {
		return 0, 0, err
	}

	summary := distribute.Summary{
		RepoFullName: repo.FullName,
		TagName:      release.TagName,
		ReleaseURL:   release.ReleaseURL,
	}
	outcomes := o.distributor.Distribute(ctx, summary, docs, targets)

	rows := make([]store.Outcome, len(outcomes))
	for i, out := range outcomes {
		rows[i] = store.Outcome{
			ReleaseID:   release.ID,
			Audience:    string(out.Audience),
			Channel:     string(out.Channel),
			Success:     out.Success,
			ErrorDetail: out.ErrorDetail,
			RespondedAt: out.RespondedAt,
		}
		if out.Success {
			delivered++
		} else {
			failed++
		}
	}
	if err := o.store.InsertOutcomes(ctx, rows); err != nil {
		return 0, 0, err
	}

	// Partial delivery failure does not fail the release: the outcomes carry
	// the per-target detail and the hosted page is always served.
	if err := o.transition(ctx, release, store.StatusPublished, ""); err != nil {
		return 0, 0, err
	}

	log.Info("release published",
		"tag", release.TagName,
		"targets", len(outcomes),
		"delivered", delivered,
		"failed", failed)

	return delivered, failed, nil
}

// buildTargets assembles the delivery targets for a run: one target per
// enabled configured channel when fanOut is set, plus one hosted target per
// audience unconditionally.
func (o *Orchestrator) buildTargets(ctx context.Context, repo *store.Repo, fanOut bool) ([]distribute.Target, error) {
	var targets []distribute.Target

	if fanOut {
		channels, err := o.store.ListEnabledChannels(ctx, repo.ID)
		if err != nil {
			return nil, err
		}
		for _, ch := range channels {
			audience, err := notes.ParseAudience(ch.Audience)
			if err != nil {
				o.logger.Warn("skipping channel with invalid audience",
					"channel_id", ch.ID, "audience", ch.Audience)
				continue
			}

			var t distribute.Target
			switch ch.Kind {
			case string(distribute.KindChat):
				t, err = distribute.NewChatTarget(ch.Destination, audience)
			case string(distribute.KindEmail):
				t, err = distribute.NewEmailTarget(ch.Destination, audience)
			default:
				o.logger.Warn("skipping channel with unknown kind",
					"channel_id", ch.ID, "kind", ch.Kind)
				continue
			}
			if err != nil {
				o.logger.Warn("skipping misconfigured channel",
					"channel_id", ch.ID, "error", err)
				continue
			}
			targets = append(targets, t)
		}
	}

	for _, audience := range notes.Audiences() {
		t, err := distribute.NewHostedTarget(audience)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	return targets, nil
}

// transition moves a release between statuses, enforcing the legal edges.
func (o *Orchestrator) transition(ctx context.Context, release *store.Release, next store.ReleaseStatus, errMsg string) error {
	if !release.Status.CanTransition(next) {
		return errors.NewValidationError("illegal status transition").
			WithField("status").WithValue(string(release.Status) + " -> " + string(next))
	}
	if err := o.store.UpdateReleaseStatus(ctx, release.ID, next, errMsg); err != nil {
		return err
	}
	release.Status = next
	release.Error = errMsg
	return nil
}

// fail records a pipeline failure on the release and returns cause.
func (o *Orchestrator) fail(ctx context.Context, release *store.Release, cause error) error {
	o.logger.WithRelease(release.ID).Error("release processing failed",
		"tag", release.TagName,
		"error", cause)

	if err := o.transition(ctx, release, store.StatusFailed, cause.Error()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// styleFor maps the repository's stored style knobs into prompt configuration.
func styleFor(repo *store.Repo) notes.StyleConfig {
	return notes.StyleConfig{
		Tone:        repo.StyleTone,
		Language:    repo.StyleLanguage,
		ProductName: repo.StyleProduct,
	}
}
