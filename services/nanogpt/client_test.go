package nanogpt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetModels(t *testing.T) {
	// Pricing and context_length stand in for the upstream fields the
	// catalogue carries beyond the basic model identity.
	payload := `{"object":"list","data":[{"id":"chatgpt-4o-latest","object":"model","pricing":{"prompt":0.5},"context_length":8192}]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("models call must carry no credential")
		}
		io.WriteString(w, payload)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	models, err := client.GetModels(context.Background())
	if err != nil {
		t.Fatalf("GetModels failed: %v", err)
	}
	if string(models) != payload {
		t.Errorf("catalogue not relayed verbatim: %s", models)
	}
}

func TestGetModelsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":"down"}`)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	_, err := client.GetModels(context.Background())
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstreamErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", upstreamErr.StatusCode)
	}
	if string(upstreamErr.Body) != `{"error":"down"}` {
		t.Errorf("expected verbatim body, got %q", upstreamErr.Body)
	}
}

func TestProxyRequestInjectsCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.RawQuery != "stream=true" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("expected injected bearer key, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"model":"x"}` {
			t.Errorf("body not forwarded: %q", body)
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	resp, err := client.ProxyRequest(context.Background(), http.MethodPost, "/chat/completions", "stream=true",
		strings.NewReader(`{"model":"x"}`), "application/json", "sk-test")
	if err != nil {
		t.Fatalf("ProxyRequest failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("unexpected status %d", resp.StatusCode)
	}
}

func TestProxyRequestDropsBodyForGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) != 0 {
			t.Errorf("GET must carry no body, got %q", body)
		}
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	resp, err := client.ProxyRequest(context.Background(), http.MethodGet, "/models", "",
		strings.NewReader("should be dropped"), "", "sk-test")
	if err != nil {
		t.Fatalf("ProxyRequest failed: %v", err)
	}
	resp.Body.Close()
}

func TestProxyRequestRelaysErrorResponses(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusPaymentRequired)
		io.WriteString(w, `{"error":"insufficient funds"}`)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	resp, err := client.ProxyRequest(context.Background(), http.MethodPost, "/chat/completions", "", nil, "", "sk-test")
	if err != nil {
		t.Fatalf("error responses must be returned, not failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		t.Errorf("expected upstream status to pass through, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"error":"insufficient funds"}` {
		t.Errorf("expected verbatim error body, got %q", body)
	}
	if calls != 1 {
		t.Errorf("error responses must not be retried, got %d calls", calls)
	}
}
