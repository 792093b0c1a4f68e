package backend

import (
	"net/http"
	"net/http/httputil"
	"path"
	"strings"
)

// CleanPath returns p in canonical form: rooted, with duplicate slashes and
// dot segments removed. A trailing slash is kept.
func CleanPath(p string) string {
	out := path.Clean("/" + p)
	if strings.HasSuffix(p, "/") && out != "/" {
		out += "/"
	}
	return out
}

// Proxy forwards requests under prefix to the backend, e.g. /v1/api/accounts
// to <base>/accounts. Outbound decoration comes from the client's transport;
// the caller supplies credentials on the request context.
func (c *Client) Proxy(prefix string) *httputil.ReverseProxy {
	prefix = strings.TrimRight(prefix, "/")
	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.Out.URL.Path = CleanPath(strings.TrimPrefix(r.In.URL.Path, prefix))
			r.Out.URL.RawPath = ""
			r.SetURL(c.base)
			r.SetXForwarded()

			// Only the gateway decides which token the backend sees.
			r.Out.Header.Del("Authorization")
			r.Out.Header.Del("Cookie")
		},
		Transport: c.rt,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			c.log.Error("proxy request failed", "path", r.URL.Path, "err", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"backend unavailable"}`))
		},
	}
}
