package guard

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"banking-portal/internal/rbac"

	"gopkg.in/yaml.v3"
)

//go:embed routes.yaml
var defaultRoutes []byte

// maxRedirects bounds legacy redirect chains.
const maxRedirects = 8

type RouteSet struct {
	Login     string           `yaml:"login"`
	Public    []string         `yaml:"public"`
	Routes    []RouteConfig    `yaml:"routes"`
	Redirects []RedirectConfig `yaml:"redirects"`
}

type RouteConfig struct {
	Path  string   `yaml:"path"`
	Roles []string `yaml:"roles"`
}

type RedirectConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// RouteTable maps portal paths to their role requirements.
type RouteTable struct {
	login     string
	public    map[string]struct{}
	routes    []RouteConfig
	redirects []RedirectConfig
}

// Resolution is the outcome of resolving a requested path.
type Resolution struct {
	// Path is the final path after following redirects.
	Path   string
	Known  bool
	Public bool
	Roles  []string
}

// LoadRoutes reads a YAML route table. An empty path loads the embedded default.
func LoadRoutes(path string) (*RouteTable, error) {
	data := defaultRoutes
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return ParseRoutes(data)
}

// DefaultRoutes returns the embedded route table.
func DefaultRoutes() *RouteTable {
	rt, err := ParseRoutes(defaultRoutes)
	if err != nil {
		panic(fmt.Sprintf("embedded routes.yaml is invalid: %v", err))
	}
	return rt
}

func ParseRoutes(data []byte) (*RouteTable, error) {
	var rs RouteSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, err
	}
	if rs.Login == "" {
		rs.Login = LoginPath
	}

	var errs []string
	rt := &RouteTable{login: rs.Login, public: make(map[string]struct{}, len(rs.Public))}
	for _, p := range rs.Public {
		rt.public[cleanPath(p)] = struct{}{}
	}
	for _, r := range rs.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			errs = append(errs, fmt.Sprintf("route %q must start with /", r.Path))
			continue
		}
		for _, name := range r.Roles {
			if _, ok := rbac.ParseName(name); !ok {
				errs = append(errs, fmt.Sprintf("route %q: unknown role %q", r.Path, name))
			}
		}
		rt.routes = append(rt.routes, RouteConfig{Path: cleanPath(r.Path), Roles: r.Roles})
	}
	for _, r := range rs.Redirects {
		if !strings.HasPrefix(r.From, "/") || !strings.HasPrefix(r.To, "/") {
			errs = append(errs, fmt.Sprintf("redirect %q -> %q must use absolute paths", r.From, r.To))
			continue
		}
		rt.redirects = append(rt.redirects, RedirectConfig{From: cleanPath(r.From), To: cleanPath(r.To)})
	}
	if len(errs) > 0 {
		return nil, errors.New("routes: " + strings.Join(errs, "; "))
	}
	return rt, nil
}

// Login is the login page path of this table.
func (rt *RouteTable) Login() string { return rt.login }

// Resolve follows legacy redirects and finds the route for path.
// Unknown paths resolve with Known=false; callers send those to the login page.
func (rt *RouteTable) Resolve(path string) Resolution {
	p := cleanPath(path)
	for i := 0; i < maxRedirects; i++ {
		next, ok := rt.redirect(p)
		if !ok {
			break
		}
		p = next
	}

	if _, ok := rt.public[p]; ok {
		return Resolution{Path: p, Known: true, Public: true}
	}
	for _, r := range rt.routes {
		if _, ok := matchPattern(r.Path, p); ok {
			return Resolution{Path: p, Known: true, Roles: r.Roles}
		}
	}
	return Resolution{Path: p}
}

func (rt *RouteTable) redirect(p string) (string, bool) {
	for _, r := range rt.redirects {
		params, ok := matchPattern(r.From, p)
		if !ok {
			continue
		}
		return expandPattern(r.To, params), true
	}
	return "", false
}

// matchPattern matches p against a pattern with ":name" segments.
func matchPattern(pattern, p string) (map[string]string, bool) {
	ps := strings.Split(pattern, "/")
	xs := strings.Split(p, "/")
	if len(ps) != len(xs) {
		return nil, false
	}
	var params map[string]string
	for i := range ps {
		if strings.HasPrefix(ps[i], ":") {
			if xs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[ps[i]] = xs[i]
			continue
		}
		if ps[i] != xs[i] {
			return nil, false
		}
	}
	return params, true
}

func expandPattern(pattern string, params map[string]string) string {
	segs := strings.Split(pattern, "/")
	for i, s := range segs {
		if v, ok := params[s]; ok {
			segs[i] = v
		}
	}
	return strings.Join(segs, "/")
}

// cleanPath drops query, fragment and trailing slashes. The empty path becomes "/".
func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
