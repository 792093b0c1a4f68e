package outbound

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type memCreds struct {
	token   string
	cleared bool
}

func (m *memCreds) Token(context.Context) (string, error) { return m.token, nil }

func (m *memCreds) ClearToken(context.Context) error {
	m.token = ""
	m.cleared = true
	return nil
}

type captured struct {
	header http.Header
	body   []byte
}

func newBackend(t *testing.T, status int, seen *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.header = r.Header.Clone()
		seen.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, client *http.Client, ctx context.Context, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	_ = resp.Body.Close()
	return resp
}

func TestTransport_AddsHeadersAndToken(t *testing.T) {
	var seen captured
	srv := newBackend(t, http.StatusOK, &seen)
	client := &http.Client{Transport: NewTransport(nil, nil)}
	ctx := WithCredentials(context.Background(), &memCreds{token: "tok"})

	do(t, client, ctx, http.MethodGet, srv.URL+"/v1/api/accounts?x=1", "")

	for k, v := range securityHeaders {
		if got := seen.header.Get(k); got != v {
			t.Fatalf("header %s=%q want %q", k, got, v)
		}
	}
	if seen.header.Get("Authorization") != "Bearer tok" || seen.header.Get("X-Requested-With") != "XMLHttpRequest" {
		t.Fatalf("expected bearer token, got %v", seen.header)
	}
}

func TestTransport_PublicEndpointsGetNoToken(t *testing.T) {
	var seen captured
	srv := newBackend(t, http.StatusOK, &seen)
	client := &http.Client{Transport: NewTransport(nil, nil)}
	ctx := WithCredentials(context.Background(), &memCreds{token: "tok"})

	for _, p := range []string{"/login", "/register", "/validate-otp"} {
		do(t, client, ctx, http.MethodPost, srv.URL+p, `{}`)
		if seen.header.Get("Authorization") != "" {
			t.Fatalf("%s: token must not be attached", p)
		}
		if seen.header.Get("X-Frame-Options") != "DENY" {
			t.Fatalf("%s: security headers still apply", p)
		}
	}
}

func TestTransport_NoCredentialsNoToken(t *testing.T) {
	var seen captured
	srv := newBackend(t, http.StatusOK, &seen)
	client := &http.Client{Transport: NewTransport(nil, nil)}

	do(t, client, context.Background(), http.MethodGet, srv.URL+"/v1/api/x", "")
	if seen.header.Get("Authorization") != "" {
		t.Fatalf("unexpected token")
	}
}

func TestTransport_SanitizesJSONBody(t *testing.T) {
	var seen captured
	srv := newBackend(t, http.StatusOK, &seen)
	client := &http.Client{Transport: NewTransport(nil, nil)}

	body := `{"name":"  Bob<script>alert(1)</script> ","amount":12.50,"tags":["<img onerror=x>","ok"],"nested":{"url":"javascript:void(0)"}}`
	do(t, client, context.Background(), http.MethodPost, srv.URL+"/v1/api/transfer", body)

	var got map[string]any
	if err := json.Unmarshal(seen.body, &got); err != nil {
		t.Fatalf("backend got invalid json %q: %v", seen.body, err)
	}
	if got["name"] != "Bob" {
		t.Fatalf("name=%q", got["name"])
	}
	if !strings.Contains(string(seen.body), `"amount":12.50`) {
		t.Fatalf("numbers must keep their literal form: %s", seen.body)
	}
	tags := got["tags"].([]any)
	if tags[0] != "<img x>" || tags[1] != "ok" {
		t.Fatalf("tags=%v", tags)
	}
	if got["nested"].(map[string]any)["url"] != "void(0)" {
		t.Fatalf("nested=%v", got["nested"])
	}
}

func TestTransport_NonJSONBodyUntouched(t *testing.T) {
	var seen captured
	srv := newBackend(t, http.StatusOK, &seen)
	client := &http.Client{Transport: NewTransport(nil, nil)}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/api/upload", strings.NewReader("<script>x</script>"))
	req.Header.Set("Content-Type", "text/plain")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	_ = resp.Body.Close()
	if string(seen.body) != "<script>x</script>" {
		t.Fatalf("body changed: %q", seen.body)
	}
}

func TestTransport_UnauthorizedClearsToken(t *testing.T) {
	var seen captured
	srv := newBackend(t, http.StatusUnauthorized, &seen)
	client := &http.Client{Transport: NewTransport(nil, nil)}
	creds := &memCreds{token: "tok"}

	resp := do(t, client, WithCredentials(context.Background(), creds), http.MethodGet, srv.URL+"/v1/api/me", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status passes through, got %d", resp.StatusCode)
	}
	if !creds.cleared || creds.token != "" {
		t.Fatalf("expected token cleared")
	}
}

func TestTransport_ForbiddenKeepsToken(t *testing.T) {
	var seen captured
	srv := newBackend(t, http.StatusForbidden, &seen)
	client := &http.Client{Transport: NewTransport(nil, nil)}
	creds := &memCreds{token: "tok"}

	do(t, client, WithCredentials(context.Background(), creds), http.MethodGet, srv.URL+"/v1/api/admin", "")
	if creds.cleared {
		t.Fatalf("403 must not clear the token")
	}
}

func TestRedactURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://user:pw@bank.example/v1/api/x?token=secret", nil)
	if got := redactURL(req.URL); got != "https://bank.example/v1/api/x" {
		t.Fatalf("got %q", got)
	}
}
