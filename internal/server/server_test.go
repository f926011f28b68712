package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shiplog/shiplog/internal/errors"
	"github.com/shiplog/shiplog/internal/logging"
	"github.com/shiplog/shiplog/internal/orchestrator"
	"github.com/shiplog/shiplog/internal/store"
)

type fakePipeline struct {
	webhookResult *orchestrator.WebhookResult
	webhookErr    error
	lastWebhook   orchestrator.WebhookRequest

	connectErr    error
	lastConnect   orchestrator.ConnectRequest
	disconnected  []string
	disconnectErr error
}

func (f *fakePipeline) HandleWebhook(_ context.Context, req orchestrator.WebhookRequest) (*orchestrator.WebhookResult, error) {
	f.lastWebhook = req
	return f.webhookResult, f.webhookErr
}

func (f *fakePipeline) Connect(_ context.Context, req orchestrator.ConnectRequest) (*store.Repo, error) {
	f.lastConnect = req
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &store.Repo{ID: "repo-1", FullName: req.FullName, Active: true}, nil
}

func (f *fakePipeline) Disconnect(_ context.Context, fullName string) error {
	f.disconnected = append(f.disconnected, fullName)
	return f.disconnectErr
}

type fakeNotesReader struct {
	repo    *store.Repo
	release *store.Release
	notes   *store.ReleaseNotes
}

func (f *fakeNotesReader) GetRepoByFullName(_ context.Context, fullName string) (*store.Repo, error) {
	if f.repo == nil || f.repo.FullName != fullName {
		return nil, errors.ErrRepoNotConnected
	}
	return f.repo, nil
}

func (f *fakeNotesReader) GetReleaseByTag(_ context.Context, _, tagName string) (*store.Release, error) {
	if f.release == nil || f.release.TagName != tagName {
		return nil, errors.ErrReleaseNotFound
	}
	return f.release, nil
}

func (f *fakeNotesReader) GetNotes(_ context.Context, _ string) (*store.ReleaseNotes, error) {
	return f.notes, nil
}

// fakeStateStore issues sequential tokens and tracks consumption.
type fakeStateStore struct {
	issued   int
	consumed map[string]bool
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{consumed: make(map[string]bool)}
}

func (f *fakeStateStore) Issue(_ context.Context, _ string) (string, error) {
	f.issued++
	token := "state-" + string(rune('0'+f.issued))
	return token, nil
}

func (f *fakeStateStore) Consume(_ context.Context, token string) (string, error) {
	if f.consumed[token] || !strings.HasPrefix(token, "state-") {
		return "", errors.ErrStateNotFound
	}
	f.consumed[token] = true
	return "connect", nil
}

type serverFixture struct {
	pipeline *fakePipeline
	notes    *fakeNotesReader
	states   *fakeStateStore
	ts       *httptest.Server
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	f := &serverFixture{
		pipeline: &fakePipeline{},
		notes:    &fakeNotesReader{},
		states:   newFakeStateStore(),
	}
	srv := New(f.pipeline, f.notes, f.states, logging.NopLogger(), Options{Addr: "127.0.0.1:0"})
	f.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(f.ts.Close)
	return f
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return body
}

func TestWebhookEndpointProcessesDelivery(t *testing.T) {
	f := newServerFixture(t)
	f.pipeline.webhookResult = &orchestrator.WebhookResult{
		Status:    "processed",
		ReleaseID: "rel-1",
		Delivered: 4,
		Failed:    1,
	}

	req, _ := http.NewRequest(http.MethodPost, f.ts.URL+"/webhooks/github",
		strings.NewReader(`{"action":"published"}`))
	req.Header.Set("X-GitHub-Event", "release")
	req.Header.Set("X-Hub-Signature-256", "sha256=abc")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /webhooks/github: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["status"] != "processed" || body["release_id"] != "rel-1" {
		t.Errorf("body = %v, want processed rel-1", body)
	}
	if body["delivered"] != float64(4) || body["failed"] != float64(1) {
		t.Errorf("body counts = %v, want delivered 4 failed 1", body)
	}

	if f.pipeline.lastWebhook.Event != "release" {
		t.Errorf("event header = %q, want release", f.pipeline.lastWebhook.Event)
	}
	if f.pipeline.lastWebhook.Signature != "sha256=abc" {
		t.Errorf("signature header = %q, want sha256=abc", f.pipeline.lastWebhook.Signature)
	}
	if string(f.pipeline.lastWebhook.Body) != `{"action":"published"}` {
		t.Errorf("body bytes were altered: %q", f.pipeline.lastWebhook.Body)
	}
}

func TestWebhookEndpointIgnoredDelivery(t *testing.T) {
	f := newServerFixture(t)
	f.pipeline.webhookResult = &orchestrator.WebhookResult{
		Status: "ignored",
		Reason: orchestrator.ReasonRepoNotConnected,
	}

	resp, err := http.Post(f.ts.URL+"/webhooks/github", "application/json",
		strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["status"] != "ignored" || body["reason"] != "repo_not_connected" {
		t.Errorf("body = %v, want ignored/repo_not_connected", body)
	}
}

func TestWebhookEndpointEchoesIgnoredEvent(t *testing.T) {
	f := newServerFixture(t)
	f.pipeline.webhookResult = &orchestrator.WebhookResult{
		Status: "ignored",
		Reason: orchestrator.ReasonEventIgnored,
	}

	req, _ := http.NewRequest(http.MethodPost, f.ts.URL+"/webhooks/github",
		strings.NewReader(`{"zen":"Design for failure."}`))
	req.Header.Set("X-GitHub-Event", "ping")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	body := decodeBody(t, resp)
	if body["status"] != "ignored" || body["event"] != "ping" {
		t.Errorf("body = %v, want ignored with event ping echoed", body)
	}
}

func TestWebhookEndpointRejectsBadSignature(t *testing.T) {
	f := newServerFixture(t)
	f.pipeline.webhookErr = errors.ErrInvalidSignature

	resp, err := http.Post(f.ts.URL+"/webhooks/github", "application/json",
		strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestWebhookEndpointHidesInternalErrors(t *testing.T) {
	f := newServerFixture(t)
	f.pipeline.webhookErr = errors.NewStoreError("insert release",
		errors.New("connection refused")).WithTable("releases")

	resp, err := http.Post(f.ts.URL+"/webhooks/github", "application/json",
		strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if strings.Contains(body["error"].(string), "connection refused") {
		t.Error("internal error detail leaked to the caller")
	}
}

func TestHealthz(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want ok", body)
	}
}

func TestChangelogServesPersistedNotes(t *testing.T) {
	f := newServerFixture(t)
	f.notes.repo = &store.Repo{ID: "repo-1", FullName: "acme/widgets"}
	f.notes.release = &store.Release{
		ID: "rel-1", RepoID: "repo-1", TagName: "v1.2.0",
		Status: store.StatusPublished, ReleaseURL: "https://example.com/v1.2.0",
	}
	f.notes.notes = &store.ReleaseNotes{
		ReleaseID:       "rel-1",
		CustomerText:    "customer doc",
		DeveloperText:   "developer doc",
		StakeholderText: "stakeholder doc",
		Model:           "gpt-test",
		GeneratedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	resp, err := http.Get(f.ts.URL + "/changelog/acme/widgets/v1.2.0")
	if err != nil {
		t.Fatalf("GET changelog: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body changelogResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()

	if body.Repo != "acme/widgets" || body.Tag != "v1.2.0" || body.Status != "published" {
		t.Errorf("body = %+v", body)
	}
	if len(body.Documents) != 3 || body.Documents["developer"] != "developer doc" {
		t.Errorf("documents = %v", body.Documents)
	}
}

func TestChangelogAudienceFilter(t *testing.T) {
	f := newServerFixture(t)
	f.notes.repo = &store.Repo{ID: "repo-1", FullName: "acme/widgets"}
	f.notes.release = &store.Release{ID: "rel-1", TagName: "v1.2.0", Status: store.StatusPublished}
	f.notes.notes = &store.ReleaseNotes{CustomerText: "customer doc"}

	resp, err := http.Get(f.ts.URL + "/changelog/acme/widgets/v1.2.0?audience=customer")
	if err != nil {
		t.Fatalf("GET changelog: %v", err)
	}
	var body changelogResponse
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()

	if len(body.Documents) != 1 || body.Documents["customer"] != "customer doc" {
		t.Errorf("documents = %v, want customer only", body.Documents)
	}

	resp, err = http.Get(f.ts.URL + "/changelog/acme/widgets/v1.2.0?audience=ops")
	if err != nil {
		t.Fatalf("GET changelog: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown audience status = %d, want 400", resp.StatusCode)
	}
}

func TestChangelogUnknownRepo(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.ts.URL + "/changelog/acme/ghost/v1.0.0")
	if err != nil {
		t.Fatalf("GET changelog: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestConnectFlowConsumesState(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Post(f.ts.URL+"/api/connect/state", "application/json", nil)
	if err != nil {
		t.Fatalf("POST state: %v", err)
	}
	state := decodeBody(t, resp)["state"].(string)

	payload := `{
		"state": "` + state + `",
		"full_name": "acme/widgets",
		"token": "ghp_x",
		"callback_url": "https://shiplog.example.com/webhooks/github",
		"channels": [{"kind": "chat", "destination": "https://chat/hook", "audience": "customer"}]
	}`
	resp, err = http.Post(f.ts.URL+"/api/repos/connect", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST connect: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	if f.pipeline.lastConnect.FullName != "acme/widgets" {
		t.Errorf("connect full name = %q", f.pipeline.lastConnect.FullName)
	}
	if len(f.pipeline.lastConnect.Channels) != 1 {
		t.Errorf("connect channels = %v", f.pipeline.lastConnect.Channels)
	}

	// The same state token cannot be redeemed twice.
	resp, err = http.Post(f.ts.URL+"/api/repos/connect", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST connect replay: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("replay status = %d, want 403", resp.StatusCode)
	}
}

func TestDisconnectEndpoint(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Post(f.ts.URL+"/api/repos/disconnect", "application/json",
		strings.NewReader(`{"full_name": "acme/widgets"}`))
	if err != nil {
		t.Fatalf("POST disconnect: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if len(f.pipeline.disconnected) != 1 || f.pipeline.disconnected[0] != "acme/widgets" {
		t.Errorf("disconnected = %v", f.pipeline.disconnected)
	}
}
