package extraction

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"printshop/internal/domain"
)

func rewriteRemoveBgEndpoint(t *testing.T, c *RemovalClient, url string) {
	t.Helper()
	c.removeBgURL = url
}

func initializedClient(t *testing.T, opts RemovalOptions) *RemovalClient {
	t.Helper()
	client, err := NewRemovalClient(opts)
	if err != nil {
		t.Fatalf("NewRemovalClient: %v", err)
	}
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return client
}

func TestRemovalSelfHosted(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/remove":
			if err := r.ParseMultipartForm(32 << 20); err != nil {
				t.Fatalf("parse multipart: %v", err)
			}
			f, _, err := r.FormFile("image_file")
			if err != nil {
				t.Fatalf("image_file missing: %v", err)
			}
			in, _ := io.ReadAll(f)
			if string(in) != "white-bg-image" {
				t.Fatalf("unexpected upload: %q", in)
			}
			_, _ = w.Write([]byte("transparent-image"))
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	client := initializedClient(t, RemovalOptions{RembgEndpoint: ts.URL})
	out, err := client.RemoveBackground(context.Background(), []byte("white-bg-image"))
	if err != nil {
		t.Fatalf("RemoveBackground: %v", err)
	}
	if string(out) != "transparent-image" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRemovalFallsBackToRemoveBg(t *testing.T) {
	// Self-hosted service passes health checks but fails on removal.
	rembg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer rembg.Close()

	var fallbackHit bool
	removebg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackHit = true
		if got := r.Header.Get("X-Api-Key"); got != "rb-key" {
			t.Fatalf("unexpected api key header: %s", got)
		}
		_, _ = w.Write([]byte("transparent"))
	}))
	defer removebg.Close()

	client := initializedClient(t, RemovalOptions{RembgEndpoint: rembg.URL, RemoveBgAPIKey: "rb-key"})
	rewriteRemoveBgEndpoint(t, client, removebg.URL)

	out, err := client.RemoveBackground(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("RemoveBackground: %v", err)
	}
	if !fallbackHit || string(out) != "transparent" {
		t.Fatalf("fallback not used: hit=%v out=%q", fallbackHit, out)
	}
}

func TestRemovalCreditsExhaustedIsTerminalAndLatched(t *testing.T) {
	calls := 0
	removebg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"errors":[{"title":"Insufficient credits"}]}`))
	}))
	defer removebg.Close()

	client := initializedClient(t, RemovalOptions{RemoveBgAPIKey: "rb-key"})
	rewriteRemoveBgEndpoint(t, client, removebg.URL)

	_, err := client.RemoveBackground(context.Background(), []byte("img"))
	if !domain.IsTerminal(err) {
		t.Fatalf("402 must be terminal: %v", err)
	}

	// Second call short-circuits without hitting the API.
	_, err = client.RemoveBackground(context.Background(), []byte("img"))
	if !domain.IsTerminal(err) {
		t.Fatalf("latched credits state must stay terminal: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one API call, got %d", calls)
	}

	client.ResetCreditsFlag()
	if _, err := client.RemoveBackground(context.Background(), []byte("img")); calls != 2 || err == nil {
		t.Fatalf("reset flag should resume API calls: calls=%d err=%v", calls, err)
	}
}

func TestRemovalAuthFailureIsTerminal(t *testing.T) {
	removebg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer removebg.Close()

	client := initializedClient(t, RemovalOptions{RemoveBgAPIKey: "bad"})
	rewriteRemoveBgEndpoint(t, client, removebg.URL)

	_, err := client.RemoveBackground(context.Background(), []byte("img"))
	if !domain.IsTerminal(err) {
		t.Fatalf("403 must be terminal: %v", err)
	}
	if domain.StageOf(err) != domain.StageBackgroundRemoval {
		t.Fatalf("stage = %q", domain.StageOf(err))
	}
}

func TestRemovalServerErrorIsRetryable(t *testing.T) {
	removebg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"errors":[{"title":"Temporarily unavailable"}]}`))
	}))
	defer removebg.Close()

	client := initializedClient(t, RemovalOptions{RemoveBgAPIKey: "rb-key"})
	rewriteRemoveBgEndpoint(t, client, removebg.URL)

	_, err := client.RemoveBackground(context.Background(), []byte("img"))
	if err == nil || domain.IsTerminal(err) {
		t.Fatalf("5xx must be retryable: %v", err)
	}
}

func TestNewRemovalClientRequiresAService(t *testing.T) {
	if _, err := NewRemovalClient(RemovalOptions{}); err == nil {
		t.Fatal("expected error when nothing configured")
	}
}
