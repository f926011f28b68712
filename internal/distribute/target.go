// Package distribute fans generated release notes out to configured delivery
// targets and records a per-target outcome. Failures are captured, never
// propagated: a failed target must not affect the other targets or the run.
package distribute

import (
	"time"

	"github.com/shiplog/shiplog/internal/errors"
	"github.com/shiplog/shiplog/internal/notes"
)

// Kind identifies a delivery channel variant.
type Kind string

const (
	// KindChat delivers by POSTing to an incoming chat webhook.
	KindChat Kind = "chat"
	// KindEmail delivers via the transactional email provider.
	KindEmail Kind = "email"
	// KindHosted represents the always-present hosted changelog page.
	// It involves no delivery call and exists for uniform outcome bookkeeping.
	KindHosted Kind = "hosted"
)

// Target is one configured delivery destination for one audience's document.
// Targets are constructed through the NewXTarget constructors, which validate
// the audience up front; dispatch can therefore match exhaustively on Kind.
type Target struct {
	kind       Kind
	audience   notes.Audience
	webhookURL string
	address    string
}

// Kind returns the channel variant.
func (t Target) Kind() Kind { return t.kind }

// Audience returns which document this target receives.
func (t Target) Audience() notes.Audience { return t.audience }

// NewChatTarget creates a chat-webhook target.
func NewChatTarget(webhookURL string, audience notes.Audience) (Target, error) {
	if _, err := notes.ParseAudience(string(audience)); err != nil {
		return Target{}, errors.NewValidationError("invalid chat target").WithField("audience").WithCause(err)
	}
	if webhookURL == "" {
		return Target{}, errors.NewValidationError("invalid chat target").WithField("webhook_url").WithValue(webhookURL)
	}
	return Target{kind: KindChat, audience: audience, webhookURL: webhookURL}, nil
}

// NewEmailTarget creates a transactional email target.
func NewEmailTarget(address string, audience notes.Audience) (Target, error) {
	if _, err := notes.ParseAudience(string(audience)); err != nil {
		return Target{}, errors.NewValidationError("invalid email target").WithField("audience").WithCause(err)
	}
	if address == "" {
		return Target{}, errors.NewValidationError("invalid email target").WithField("address").WithValue(address)
	}
	return Target{kind: KindEmail, audience: audience, address: address}, nil
}

// NewHostedTarget creates a hosted-surface placeholder target.
func NewHostedTarget(audience notes.Audience) (Target, error) {
	if _, err := notes.ParseAudience(string(audience)); err != nil {
		return Target{}, errors.NewValidationError("invalid hosted target").WithField("audience").WithCause(err)
	}
	return Target{kind: KindHosted, audience: audience}, nil
}

// Outcome is the result of one delivery attempt. Outcomes are append-only:
// a retried publish creates new rows rather than mutating old ones.
type Outcome struct {
	Audience    notes.Audience
	Channel     Kind
	Success     bool
	ErrorDetail string
	RespondedAt *time.Time
}

// Summary carries the release facts delivery payloads are built from.
type Summary struct {
	RepoFullName string
	TagName      string
	ReleaseURL   string
}
