package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL: server.URL,
		Backoff: 1 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	return client, server
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     Config{BaseURL: "https://music.example.com"},
			wantErr: false,
		},
		{
			name:    "missing base URL",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "relative base URL",
			cfg:     Config{BaseURL: "/just/a/path"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "https://music.example.com"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "relative path",
			in:   "/media/tracks/7.mp3",
			want: "https://music.example.com/media/tracks/7.mp3",
		},
		{
			name: "absolute URL kept",
			in:   "https://cdn.example.com/tracks/7.mp3",
			want: "https://cdn.example.com/tracks/7.mp3",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.ResolveURL(tt.in); got != tt.want {
				t.Errorf("ResolveURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGetRelease(t *testing.T) {
	duration := 183.5
	release := Release{
		ID:     42,
		Title:  "Night Drives",
		Artist: Artist{Username: "mara"},
		Tracks: []Track{
			{ID: 2, Title: "Second", TrackNumber: 2, FileURL: "/media/2.mp3"},
			{ID: 1, Title: "First", TrackNumber: 1, FileURL: "/media/1.mp3", Duration: &duration},
		},
	}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET request, got %s", r.Method)
		}
		if r.URL.Path != "/api/releases/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(release)
	}))

	got, err := client.GetRelease(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetRelease: %v", err)
	}

	if got.Title != "Night Drives" {
		t.Errorf("expected title 'Night Drives', got %q", got.Title)
	}
	if len(got.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(got.Tracks))
	}
	if got.Tracks[1].Duration == nil || *got.Tracks[1].Duration != 183.5 {
		t.Errorf("expected duration 183.5, got %v", got.Tracks[1].Duration)
	}
	if got.Tracks[0].Duration != nil {
		t.Errorf("expected nil duration for unprobed track, got %v", *got.Tracks[0].Duration)
	}
}

func TestGetRelease_InvalidID(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "https://music.example.com"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.GetRelease(context.Background(), 0); err == nil {
		t.Error("expected error for id 0")
	}
}

func TestGetRelease_NotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"release not found"}`))
	}))

	_, err := client.GetRelease(context.Background(), 99)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *catalog.Error, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Message, "not found") {
		t.Errorf("expected server message, got %q", apiErr.Message)
	}
	if apiErr.Temporary() {
		t.Error("404 must not be treated as temporary")
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))

	tracks, err := client.ListAllTracks(context.Background())
	if err != nil {
		t.Fatalf("ListAllTracks: %v", err)
	}
	if tracks != nil && len(tracks) != 0 {
		t.Errorf("expected empty catalog, got %d tracks", len(tracks))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestDo_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	if _, err := client.ListAllTracks(context.Background()); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestSubmitListen(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST request, got %s", r.Method)
		}
		if r.URL.Path != "/api/tracks/7/listens" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var payload struct {
			SecondsPlayed int64 `json:"secondsPlayed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if payload.SecondsPlayed != 150 {
			t.Errorf("expected 150 seconds played, got %d", payload.SecondsPlayed)
		}

		w.WriteHeader(http.StatusNoContent)
	}))

	err := client.SubmitListen(context.Background(), Listen{
		TrackID:  7,
		PlayedAt: time.Now(),
		Played:   150 * time.Second,
	})
	if err != nil {
		t.Fatalf("SubmitListen: %v", err)
	}
}

func TestSubmitListen_Unauthorized(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	listen := Listen{TrackID: 7, PlayedAt: time.Now(), Played: time.Minute}

	if err := client.SubmitListen(context.Background(), listen); err == nil {
		t.Fatal("expected error without auth token")
	}

	client.SetAuthToken("secret")
	if err := client.SubmitListen(context.Background(), listen); err != nil {
		t.Fatalf("SubmitListen with token: %v", err)
	}
}
