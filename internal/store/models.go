package store

import "time"

// ReleaseStatus is the finite processing state of a release.
type ReleaseStatus string

const (
	// StatusReceived means the webhook was accepted and the record created.
	StatusReceived ReleaseStatus = "received"
	// StatusProcessing means aggregation and generation are underway.
	StatusProcessing ReleaseStatus = "processing"
	// StatusReady means notes are generated and persisted, not yet fanned out.
	StatusReady ReleaseStatus = "ready"
	// StatusPublished means distribution ran; partial delivery failures still
	// count as published.
	StatusPublished ReleaseStatus = "published"
	// StatusFailed means aggregation or generation failed; the error field
	// carries the message. Reachable only from processing.
	StatusFailed ReleaseStatus = "failed"
)

// CanTransition reports whether moving from s to next is a legal status
// transition.
func (s ReleaseStatus) CanTransition(next ReleaseStatus) bool {
	switch s {
	case StatusReceived:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusReady || next == StatusFailed
	case StatusReady:
		// Regeneration re-enters processing before the release is published.
		return next == StatusPublished || next == StatusProcessing
	case StatusFailed:
		// Manual regeneration re-enters processing.
		return next == StatusProcessing
	case StatusPublished:
		// Manual regeneration of an already published release.
		return next == StatusProcessing
	default:
		return false
	}
}

// Repo is a subscribed repository with its delivery and style configuration.
type Repo struct {
	ID             string
	FullName       string
	Active         bool
	WebhookSecret  string
	WebhookHookID  int64
	EncryptedToken string
	StyleTone      string
	StyleLanguage  string
	StyleProduct   string
	CreatedAt      time.Time
}

// Owner returns the owner half of the repository full name.
func (r *Repo) Owner() string {
	for i := 0; i < len(r.FullName); i++ {
		if r.FullName[i] == '/' {
			return r.FullName[:i]
		}
	}
	return r.FullName
}

// Name returns the repository half of the full name.
func (r *Repo) Name() string {
	for i := 0; i < len(r.FullName); i++ {
		if r.FullName[i] == '/' {
			return r.FullName[i+1:]
		}
	}
	return ""
}

// Channel is one configured delivery destination for a repository.
type Channel struct {
	ID          string
	RepoID      string
	Kind        string // "chat" or "email"
	Destination string // webhook URL or email address
	Audience    string
	Enabled     bool
}

// Release is the persistent record for one processed tag. At most one release
// exists per (RepoID, TagName).
type Release struct {
	ID         string
	RepoID     string
	TagName    string
	Status     ReleaseStatus
	ReleaseURL string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ReleaseNotes is the persisted generated document set with per-audience
// edit flags. An edited audience is protected from silent regeneration.
type ReleaseNotes struct {
	ReleaseID         string
	CustomerText      string
	DeveloperText     string
	StakeholderText   string
	CustomerEdited    bool
	DeveloperEdited   bool
	StakeholderEdited bool
	TokensUsed        int
	Model             string
	GeneratedAt       time.Time
}

// Outcome is one append-only distribution attempt record.
type Outcome struct {
	ID          string
	ReleaseID   string
	Audience    string
	Channel     string
	Success     bool
	ErrorDetail string
	RespondedAt *time.Time
	CreatedAt   time.Time
}
