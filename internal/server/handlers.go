package server

import (
	"encoding/json"
	"net/http"

	"github.com/shiplog/shiplog/internal/errors"
	"github.com/shiplog/shiplog/internal/notes"
	"github.com/shiplog/shiplog/internal/orchestrator"
	"github.com/shiplog/shiplog/internal/store"
)

// changelogResponse is the hosted changelog document for one release.
type changelogResponse struct {
	Repo        string            `json:"repo"`
	Tag         string            `json:"tag"`
	Status      string            `json:"status"`
	ReleaseURL  string            `json:"release_url,omitempty"`
	Documents   map[string]string `json:"documents"`
	Model       string            `json:"model,omitempty"`
	GeneratedAt string            `json:"generated_at,omitempty"`
}

// handleChangelog serves persisted notes for a release. With an audience
// query parameter only that document is returned; otherwise all three.
func (s *Server) handleChangelog(w http.ResponseWriter, r *http.Request) {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	tag := r.PathValue("tag")

	repo, err := s.notes.GetRepoByFullName(r.Context(), fullName)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	release, err := s.notes.GetReleaseByTag(r.Context(), repo.ID, tag)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	doc, err := s.notes.GetNotes(r.Context(), release.ID)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "notes not generated yet")
		return
	}

	resp := changelogResponse{
		Repo:        fullName,
		Tag:         tag,
		Status:      string(release.Status),
		ReleaseURL:  release.ReleaseURL,
		Model:       doc.Model,
		GeneratedAt: doc.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Documents: map[string]string{
			string(notes.AudienceCustomer):    doc.CustomerText,
			string(notes.AudienceDeveloper):   doc.DeveloperText,
			string(notes.AudienceStakeholder): doc.StakeholderText,
		},
	}

	if raw := r.URL.Query().Get("audience"); raw != "" {
		audience, err := notes.ParseAudience(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown audience")
			return
		}
		resp.Documents = map[string]string{
			string(audience): resp.Documents[string(audience)],
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleConnectState issues a single-use token a client must redeem when
// connecting a repository.
func (s *Server) handleConnectState(w http.ResponseWriter, r *http.Request) {
	token, err := s.states.Issue(r.Context(), "connect")
	if err != nil {
		s.logger.Error("issuing connect state failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": token})
}

// connectPayload is the connect request body.
type connectPayload struct {
	State       string `json:"state"`
	FullName    string `json:"full_name"`
	Token       string `json:"token"`
	CallbackURL string `json:"callback_url"`
	Style       struct {
		Tone     string `json:"tone"`
		Language string `json:"language"`
		Product  string `json:"product"`
	} `json:"style"`
	Channels []struct {
		Kind        string `json:"kind"`
		Destination string `json:"destination"`
		Audience    string `json:"audience"`
	} `json:"channels"`
}

// handleConnect subscribes a repository. The state token is consumed before
// anything else happens; a replayed request dies here.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var payload connectPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if _, err := s.states.Consume(r.Context(), payload.State); err != nil {
		if errors.Is(err, errors.ErrStateNotFound) {
			writeError(w, http.StatusForbidden, "invalid or expired state token")
			return
		}
		s.logger.Error("consuming connect state failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	req := orchestrator.ConnectRequest{
		FullName:      payload.FullName,
		Token:         payload.Token,
		CallbackURL:   payload.CallbackURL,
		StyleTone:     payload.Style.Tone,
		StyleLanguage: payload.Style.Language,
		StyleProduct:  payload.Style.Product,
	}
	for _, ch := range payload.Channels {
		req.Channels = append(req.Channels, orchestrator.ChannelConfig{
			Kind:        ch.Kind,
			Destination: ch.Destination,
			Audience:    ch.Audience,
		})
	}

	repo, err := s.pipeline.Connect(r.Context(), req)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        repo.ID,
		"full_name": repo.FullName,
		"active":    repo.Active,
	})
}

// handleDisconnect deactivates a subscription.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FullName string `json:"full_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := s.pipeline.Disconnect(r.Context(), payload.FullName); err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// writePipelineError maps domain errors onto HTTP responses. Non-user-facing
// errors are logged and returned as an opaque 500.
func (s *Server) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errors.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, "invalid webhook signature")
	case errors.Is(err, errors.ErrRepoNotConnected),
		errors.Is(err, errors.ErrReleaseNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errors.ErrDuplicateRelease):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"severity", errors.GetSeverity(err).String(),
			"error", err)
		if errors.IsUserFacing(err) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": msg})
}

var _ NotesReader = (*store.Store)(nil)
