// Package outbound decorates calls from the gateway to the banking backend:
// security headers, the client's bearer token, body sanitising and reaction
// to auth failures.
package outbound

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"banking-portal/pkg/logger"
)

// DefaultPublicPaths never receive a bearer token.
var DefaultPublicPaths = []string{"/login", "/register", "/validate-otp"}

var securityHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"X-XSS-Protection":       "1; mode=block",
	"Referrer-Policy":        "strict-origin-when-cross-origin",
	"Cache-Control":          "no-cache, no-store, must-revalidate",
	"Pragma":                 "no-cache",
	"Expires":                "0",
}

// maxSanitizedBody caps how much of a JSON body is buffered for sanitising.
const maxSanitizedBody = 4 << 20

type Transport struct {
	Base        http.RoundTripper
	Logger      *slog.Logger
	PublicPaths []string
}

func NewTransport(base http.RoundTripper, log *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if log == nil {
		log = slog.Default()
	}
	return &Transport{Base: base, Logger: log, PublicPaths: DefaultPublicPaths}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)
	for k, v := range securityHeaders {
		out.Header.Set(k, v)
	}

	creds, hasCreds := CredentialsFrom(ctx)
	if hasCreds && !t.isPublic(out.URL) {
		token, err := creds.Token(ctx)
		if err != nil {
			t.Logger.Warn("outbound token lookup failed", "err", err)
		} else if token != "" {
			out.Header.Set("Authorization", "Bearer "+token)
			out.Header.Set("X-Requested-With", "XMLHttpRequest")
		}
	}

	if err := sanitizeBody(out); err != nil {
		return nil, err
	}

	log := logger.FromOr(ctx, t.Logger).With("method", out.Method, "url", redactURL(out.URL))
	resp, err := t.Base.RoundTrip(out)
	if err != nil {
		log.Error("outbound request failed", "err", err)
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		log.Warn("backend rejected credentials", "status", resp.StatusCode)
		if hasCreds {
			if err := creds.ClearToken(ctx); err != nil {
				log.Warn("clear token failed", "err", err)
			}
		}
	case resp.StatusCode == http.StatusForbidden:
		log.Warn("access forbidden", "status", resp.StatusCode)
	case resp.StatusCode >= 500:
		log.Error("backend server error", "status", resp.StatusCode)
	default:
		log.Debug("outbound request", "status", resp.StatusCode)
	}
	return resp, nil
}

func (t *Transport) isPublic(u *url.URL) bool {
	s := u.String()
	for _, p := range t.PublicPaths {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// sanitizeBody rewrites JSON bodies with every string cleaned. Bodies that are
// not JSON, too large, or fail to decode are sent unchanged.
func sanitizeBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || !isJSON(req.Header.Get("Content-Type")) {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxSanitizedBody+1))
	if err != nil {
		_ = req.Body.Close()
		return err
	}
	if len(raw) > maxSanitizedBody {
		req.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(raw), req.Body), req.Body}
		return nil
	}
	_ = req.Body.Close()

	body := raw
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err == nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(Sanitize(v)); err == nil {
			body = bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
		}
	}

	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// redactURL drops the query string and userinfo before logging.
func redactURL(u *url.URL) string {
	if u == nil {
		return "invalid-url"
	}
	return u.Scheme + "://" + u.Host + u.Path
}
