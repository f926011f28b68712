package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/shiplog/shiplog/internal/errors"
	"github.com/shiplog/shiplog/internal/store"
)

// ConnectRequest describes a repository subscription to set up.
type ConnectRequest struct {
	// FullName is "owner/name".
	FullName string
	// Token is the plaintext access credential; it is sealed before storage.
	Token string
	// CallbackURL is where the registered webhook will deliver.
	CallbackURL string
	// Style knobs folded into prompt construction. All optional.
	StyleTone     string
	StyleLanguage string
	StyleProduct  string
	// Channels to create alongside the subscription.
	Channels []ChannelConfig
}

// ChannelConfig is one delivery destination to register at connect time.
type ChannelConfig struct {
	Kind        string
	Destination string
	Audience    string
}

// Connect subscribes a repository: it seals the credential, creates the
// record and its channels, and registers the release webhook upstream. The
// webhook secret is generated here and never leaves the store.
//
// The record is created inactive and activated only after the upstream
// registration succeeds, so a half-connected repository never accepts
// deliveries.
func (o *Orchestrator) Connect(ctx context.Context, req ConnectRequest) (*store.Repo, error) {
	owner, name, ok := strings.Cut(req.FullName, "/")
	if !ok || owner == "" || name == "" {
		return nil, errors.NewValidationError("repository name must be owner/name").
			WithField("full_name").WithValue(req.FullName)
	}
	if req.Token == "" {
		return nil, errors.NewValidationError("access token is required").WithField("token")
	}
	if req.CallbackURL == "" {
		return nil, errors.NewValidationError("callback URL is required").WithField("callback_url")
	}

	sealed, err := o.vault.Encrypt(req.Token)
	if err != nil {
		return nil, errors.Wrap(err, "seal repository credential")
	}

	secret, err := newWebhookSecret()
	if err != nil {
		return nil, err
	}

	repo := &store.Repo{
		FullName:       req.FullName,
		Active:         false,
		WebhookSecret:  secret,
		EncryptedToken: sealed,
		StyleTone:      req.StyleTone,
		StyleLanguage:  req.StyleLanguage,
		StyleProduct:   req.StyleProduct,
	}
	if err := o.store.CreateRepo(ctx, repo); err != nil {
		return nil, err
	}

	for _, ch := range req.Channels {
		if err := o.store.AddChannel(ctx, &store.Channel{
			RepoID:      repo.ID,
			Kind:        ch.Kind,
			Destination: ch.Destination,
			Audience:    ch.Audience,
			Enabled:     true,
		}); err != nil {
			return nil, err
		}
	}

	hookID, err := o.source.CreateWebhook(ctx, req.Token, owner, name, req.CallbackURL, secret)
	if err != nil {
		return nil, errors.Wrap(err, "register release webhook")
	}
	if err := o.store.SetRepoHookID(ctx, repo.ID, hookID); err != nil {
		return nil, err
	}
	if err := o.store.SetRepoActive(ctx, repo.ID, true); err != nil {
		return nil, err
	}
	repo.WebhookHookID = hookID
	repo.Active = true

	o.logger.WithRepo(repo.FullName).Info("repository connected",
		"hook_id", hookID,
		"channels", len(req.Channels))

	return repo, nil
}

// Disconnect deactivates a subscription and removes its upstream webhook.
// The record and its history are kept; deliveries for the repository are
// ignored until it is connected again.
func (o *Orchestrator) Disconnect(ctx context.Context, fullName string) error {
	repo, err := o.store.GetRepoByFullName(ctx, fullName)
	if err != nil {
		return err
	}

	if repo.WebhookHookID != 0 {
		token, err := o.vault.Decrypt(repo.EncryptedToken)
		if err != nil {
			return errors.Wrap(err, "decrypt repository credential")
		}
		if err := o.source.DeleteWebhook(ctx, token, repo.Owner(), repo.Name(), repo.WebhookHookID); err != nil {
			return errors.Wrap(err, "remove release webhook")
		}
	}

	if err := o.store.SetRepoActive(ctx, repo.ID, false); err != nil {
		return err
	}

	o.logger.WithRepo(fullName).Info("repository disconnected")
	return nil
}

// newWebhookSecret generates the per-repository webhook signing secret.
func newWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate webhook secret")
	}
	return hex.EncodeToString(buf), nil
}
