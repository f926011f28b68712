package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shiplog/shiplog/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(WithBaseURL(ts.URL))
}

func TestGetReleaseByTag(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/releases/tags/v1.2.0" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer ghp_token" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewEncoder(w).Encode(Release{
			TagName: "v1.2.0",
			Body:    "Release body",
			HTMLURL: "https://example.com/v1.2.0",
		})
	})

	release, err := client.GetReleaseByTag(context.Background(), "ghp_token", "acme", "widgets", "v1.2.0")
	if err != nil {
		t.Fatalf("GetReleaseByTag: %v", err)
	}
	if release.TagName != "v1.2.0" || release.Body != "Release body" {
		t.Errorf("release = %+v", release)
	}
}

func TestGetReleaseByTagNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	})

	_, err := client.GetReleaseByTag(context.Background(), "t", "acme", "widgets", "v9.9.9")
	if !errors.Is(err, errors.ErrTagNotFound) {
		t.Fatalf("err = %v, want ErrTagNotFound in chain", err)
	}

	var upstreamErr *errors.UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if upstreamErr.StatusCode != http.StatusNotFound || upstreamErr.Tag != "v9.9.9" {
		t.Errorf("upstream error context = %+v", upstreamErr)
	}
}

func TestCompareCommits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/compare/v1.1.0...v1.2.0" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"total_commits": 2,
			"commits": []map[string]any{
				{
					"sha":    "a1",
					"commit": map[string]any{"message": "First", "author": map[string]string{"name": "Ada"}},
					"author": map[string]string{"login": "ada"},
				},
				{
					"sha":    "b2",
					"commit": map[string]any{"message": "Second", "author": map[string]string{"name": "Grace"}},
				},
			},
		})
	})

	cmp, err := client.CompareCommits(context.Background(), "t", "acme", "widgets", "v1.1.0", "v1.2.0")
	if err != nil {
		t.Fatalf("CompareCommits: %v", err)
	}
	if len(cmp.Commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(cmp.Commits))
	}
	if cmp.Commits[0].Author == nil || cmp.Commits[0].Author.Login != "ada" {
		t.Errorf("commit 0 author = %+v, want linked login", cmp.Commits[0].Author)
	}
	if cmp.Commits[1].Author != nil {
		t.Errorf("commit 1 author = %+v, want nil for unlinked commit", cmp.Commits[1].Author)
	}
}

func TestServerErrorsCarryStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message": "rate limited"}`, http.StatusForbidden)
	})

	_, err := client.ListReleases(context.Background(), "t", "acme", "widgets", 10)

	var upstreamErr *errors.UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if upstreamErr.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", upstreamErr.StatusCode)
	}
}

func TestCreateWebhook(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/acme/widgets/hooks" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}

		var payload struct {
			Events []string `json:"events"`
			Config struct {
				URL    string `json:"url"`
				Secret string `json:"secret"`
			} `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if len(payload.Events) != 1 || payload.Events[0] != "release" {
			t.Errorf("events = %v, want [release]", payload.Events)
		}
		if payload.Config.URL != "https://cb.example.com" || payload.Config.Secret != "s3cret" {
			t.Errorf("config = %+v", payload.Config)
		}

		json.NewEncoder(w).Encode(Webhook{ID: 77, Active: true})
	})

	id, err := client.CreateWebhook(context.Background(), "t", "acme", "widgets", "https://cb.example.com", "s3cret")
	if err != nil {
		t.Fatalf("CreateWebhook: %v", err)
	}
	if id != 77 {
		t.Errorf("hook id = %d, want 77", id)
	}
}

func TestDeleteWebhookTolerates404(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	})

	if err := client.DeleteWebhook(context.Background(), "t", "acme", "widgets", 77); err != nil {
		t.Fatalf("DeleteWebhook on missing hook: %v", err)
	}
}
