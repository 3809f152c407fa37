package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"drone-dashboard-proxy/internal/config"
	"drone-dashboard-proxy/internal/metrics"
)

func newTestClient(t *testing.T, m *metrics.Metrics) *UpstreamClient {
	t.Helper()
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewUpstreamClient(cfg, logger, m)
}

func TestUpstreamClient_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, nil)

	resp, err := c.Send(context.Background(), http.MethodGet, srv.URL+"/test", http.Header{}, nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body = %q, want %q", string(body), `{"status":"ok"}`)
	}
}

func TestUpstreamClient_Send_Body(t *testing.T) {
	tests := []struct {
		name        string
		body        []byte
		wantBody    string
		wantLength  int64
		wantChunked bool
	}{
		{"nil body", nil, "", 0, false},
		{"empty body", []byte{}, "", 0, false},
		{"payload", []byte(`{"lap":3}`), `{"lap":3}`, 9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				gotBody   string
				gotLength int64
				gotTE     []string
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				gotBody = string(b)
				gotLength = r.ContentLength
				gotTE = r.TransferEncoding
				w.WriteHeader(http.StatusNoContent)
			}))
			defer srv.Close()

			c := newTestClient(t, nil)
			resp, err := c.Send(context.Background(), http.MethodPut, srv.URL, http.Header{}, tt.body)
			if err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			_ = resp.Body.Close()

			if gotBody != tt.wantBody {
				t.Errorf("upstream body = %q, want %q", gotBody, tt.wantBody)
			}
			if gotLength != tt.wantLength {
				t.Errorf("upstream ContentLength = %d, want %d", gotLength, tt.wantLength)
			}
			if (len(gotTE) > 0) != tt.wantChunked {
				t.Errorf("upstream TransferEncoding = %v, want chunked=%v", gotTE, tt.wantChunked)
			}
		})
	}
}

func TestUpstreamClient_Send_DoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/moved" {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
			return
		}
		t.Errorf("redirect was followed to %q", r.URL.Path)
	}))
	defer srv.Close()

	c := newTestClient(t, nil)
	resp, err := c.Send(context.Background(), http.MethodGet, srv.URL+"/moved", http.Header{}, nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if loc := resp.Header.Get("Location"); loc != "/elsewhere" {
		t.Errorf("Location = %q, want %q", loc, "/elsewhere")
	}
}

func TestUpstreamClient_Send_LeavesEncodedBodyAlone(t *testing.T) {
	raw := []byte{0x1f, 0x8b, 0x08, 0x00, 0x01, 0x02}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ae := r.Header.Get("Accept-Encoding"); ae != "" {
			t.Errorf("Accept-Encoding = %q, want none added by transport", ae)
		}
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	c := newTestClient(t, nil)
	resp, err := c.Send(context.Background(), http.MethodGet, srv.URL, http.Header{}, nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(raw) {
		t.Errorf("body = %x, want %x", body, raw)
	}
	if ce := resp.Header.Get("Content-Encoding"); ce != "gzip" {
		t.Errorf("Content-Encoding = %q, want %q", ce, "gzip")
	}
}

func TestUpstreamClient_Send_Error(t *testing.T) {
	m := metrics.New()
	c := newTestClient(t, m)

	_, err := c.Send(context.Background(), http.MethodGet, "http://127.0.0.1:1/nonexistent", http.Header{}, nil)
	if err == nil {
		t.Fatal("Send() expected error for unreachable host, got nil")
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "dashboard_proxy_upstream_errors_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected dashboard_proxy_upstream_errors_total after a failed call")
	}
}

func TestUpstreamClient_Send_InvalidMethod(t *testing.T) {
	c := newTestClient(t, nil)

	_, err := c.Send(context.Background(), "BAD METHOD", "http://127.0.0.1:1/", http.Header{}, nil)
	if err == nil {
		t.Fatal("Send() expected error for invalid method token, got nil")
	}
}

func TestUpstreamClient_Send_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Send(ctx, http.MethodGet, srv.URL+"/slow", http.Header{}, nil)
	if err == nil {
		t.Fatal("Send() expected error for canceled context, got nil")
	}
}
