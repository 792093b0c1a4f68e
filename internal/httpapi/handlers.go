package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"banking-portal/internal/audit"
	"banking-portal/internal/auth"
	"banking-portal/internal/backend"
	"banking-portal/internal/guard"
	"banking-portal/internal/outbound"
	"banking-portal/internal/password"
	"banking-portal/internal/rbac"
	"banking-portal/internal/session"
	"banking-portal/pkg/logger"

	"github.com/gin-gonic/gin"
)

// DefaultAPIRoles restricts proxied backend areas by path prefix (relative to /v1/api).
var DefaultAPIRoles = map[string][]string{
	"/admin/":    {rbac.NameAdmin},
	"/approval/": {rbac.NameAdmin, rbac.NameInternal},
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Sessions *session.Registry
	Guard    *guard.Guard
	Audit    *audit.Service
	Backend  *backend.Client
	Proxy    http.Handler

	// Verifier, when set, checks token signatures before proxying.
	Verifier *auth.Manager
	APIRoles map[string][]string
}

// --- Auth ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login forwards credentials to the backend, starts the client's session from
// the returned token and hands back the address the OTP was sent to.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	ctx := c.Request.Context()
	actor := actorOf(c)
	actor.Username = req.Username

	if chk := h.Audit.ValidateInput(ctx, req.Username, actor); chk.Kind == audit.InputSQL || chk.Kind == audit.InputXSS {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": chk.Reason})
		return
	}

	locked, until, err := h.Audit.IsLockedOut(ctx, req.Username, actor.IPAddress)
	if err != nil {
		logger.FromGin(c).Warn("lockout lookup failed", "err", err)
	}
	if locked {
		c.AbortWithStatusJSON(http.StatusLocked, gin.H{
			"error":       "too many failed attempts, try again later",
			"lockedUntil": until.UTC().Format(time.RFC3339),
		})
		return
	}

	res, err := h.Backend.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, backend.ErrRejected) || errors.Is(err, backend.ErrDeactivated) {
			h.recordLogin(c, req.Username, false)
		}
		writeError(c, err)
		return
	}

	m := sessionFrom(c)
	if err := m.Login(ctx, res.Token); err != nil {
		writeError(c, err)
		return
	}
	h.recordLogin(c, req.Username, true)

	c.JSON(http.StatusOK, gin.H{
		"emailAddress": res.EmailAddress,
		"otpRequired":  true,
		"session":      viewOf(m),
	})
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// ValidateOTP relays the OTP check. On success the client is pointed at its
// role's landing page.
func (h Handlers) ValidateOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.OTP) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email and OTP must be provided"})
		return
	}

	res, err := h.Backend.ValidateOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(c, err)
		return
	}
	out := gin.H{"success": res.Success, "message": res.Message}
	if m := sessionFrom(c); res.Success && m.Valid() {
		if rec := m.Current(); rec.Role != nil {
			out["redirect"] = rbac.LandingPage(*rec.Role)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) ResendOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email is required"})
		return
	}
	res, err := h.Backend.ResendOTP(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) Logout(c *gin.Context) {
	next, err := sessionFrom(c).Logout(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Warn("logout clear failed", "err", err)
	}
	h.Sessions.Remove(clientID(c))
	c.JSON(http.StatusOK, gin.H{"redirect": next})
}

// --- Session ---

type sessionView struct {
	Session          session.Record `json:"session"`
	Valid            bool           `json:"valid"`
	RemainingSeconds int64          `json:"remainingSeconds"`
	Remaining        string         `json:"remaining"`
	Warning          bool           `json:"warning"`
	RoleName         string         `json:"roleName,omitempty"`
	LandingPage      string         `json:"landingPage,omitempty"`
}

func viewOf(m *session.Manager) sessionView {
	rec := m.Current()
	left := m.Remaining()
	v := sessionView{
		Session:          rec,
		Valid:            m.Valid(),
		RemainingSeconds: int64(left / time.Second),
		Remaining:        session.FormatRemaining(left),
		Warning:          m.InWarning(),
	}
	if rec.IsActive && rec.Role != nil {
		v.RoleName = rec.Role.Name()
		v.LandingPage = rbac.LandingPage(*rec.Role)
	}
	return v
}

func (h Handlers) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, viewOf(sessionFrom(c)))
}

func (h Handlers) ExtendSession(c *gin.Context) {
	m := sessionFrom(c)
	if err := m.Extend(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(m))
}

// --- Navigation ---

type navigationRequest struct {
	Path string `json:"path"`
}

// CheckNavigation runs the route guard for the view the client wants to open.
func (h Handlers) CheckNavigation(c *gin.Context) {
	var req navigationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "path required"})
		return
	}

	m := sessionFrom(c)
	ctx := c.Request.Context()
	actor := actorFromSession(c, m)

	d := h.Guard.Navigate(ctx, sessionCredentials{m}, req.Path)
	if d.Reason == guard.ReasonForbiddenRole {
		if err := h.Audit.RecordUnauthorized(ctx, req.Path, actor); err != nil {
			logger.FromGin(c).Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, d)
}

// --- Password ---

type passwordRequest struct {
	Password string `json:"password"`
}

func (h Handlers) EvaluatePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res := password.Evaluate(req.Password)
	if res.Errors == nil {
		res.Errors = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"isValid":  res.IsValid,
		"errors":   res.Errors,
		"strength": res.Strength,
		"score":    res.Score,
		"message":  res.Strength.Message(),
		"color":    res.Strength.Color(),
	})
}

func (h Handlers) GeneratePassword(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"password": password.Generate()})
}

// --- Audit ---

// SecurityEvents lists recent events, or violations with ?violations=true.
func (h Handlers) SecurityEvents(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		if n, err := parseLimit(v); err == nil {
			limit = n
		}
	}
	var (
		events []audit.Event
		err    error
	)
	if c.Query("violations") == "true" {
		events, err = h.Audit.Violations(c.Request.Context(), limit)
	} else {
		events, err = h.Audit.Events(c.Request.Context(), limit)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// --- Backend proxy ---

// Backend endpoints whose successful calls are audited.
const (
	passwordChangePath = "/update-password"
	profileUpdatePath  = "/profile-update-request"
)

// maxAuditedBody caps how much of a profile update body is inspected.
const maxAuditedBody = 64 << 10

// ProxyAPI forwards /v1/api/* to the backend with the client's token attached
// by the outbound transport. Role prefixes are matched on the cleaned path,
// which is also the path the proxy forwards.
func (h Handlers) ProxyAPI(c *gin.Context) {
	m := sessionFrom(c)
	ctx := c.Request.Context()
	p := backend.CleanPath(c.Param("path"))

	for prefix, names := range h.apiRoles() {
		if !strings.HasPrefix(p+"/", prefix) {
			continue
		}
		code, err := auth.RoleCode(ctx)
		if err != nil || !rbac.Matches(rbac.Role(code), names) {
			if err := h.Audit.RecordUnauthorized(ctx, "/v1/api"+p, actorFromSession(c, m)); err != nil {
				logger.FromGin(c).Warn("audit append failed", "err", err)
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
	}

	endpoint := ""
	if c.Request.Method == http.MethodPost {
		endpoint = strings.TrimSuffix(p, "/")
	}
	var change string
	if endpoint == profileUpdatePath {
		change = peekRequestType(c.Request)
	}

	h.Proxy.ServeHTTP(c.Writer, c.Request.WithContext(outbound.WithCredentials(ctx, sessionCredentials{m})))

	if status := c.Writer.Status(); status < 200 || status >= 300 {
		return
	}
	var err error
	switch endpoint {
	case passwordChangePath:
		err = h.Audit.RecordPasswordChange(ctx, actorFromSession(c, m))
	case profileUpdatePath:
		var changes []string
		if change != "" {
			changes = []string{change}
		}
		err = h.Audit.RecordProfileUpdate(ctx, actorFromSession(c, m), changes)
	}
	if err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

// peekRequestType reads the requestType field of a profile update body and
// leaves the body intact for forwarding.
func peekRequestType(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxAuditedBody))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	if err != nil {
		return ""
	}
	var body struct {
		RequestType string `json:"requestType"`
	}
	if json.Unmarshal(head, &body) != nil {
		return ""
	}
	return body.RequestType
}

func (h Handlers) apiRoles() map[string][]string {
	if h.APIRoles != nil {
		return h.APIRoles
	}
	return DefaultAPIRoles
}

// --- helpers ---

func (h Handlers) recordLogin(c *gin.Context, username string, success bool) {
	if err := h.Audit.RecordLoginAttempt(c.Request.Context(), username, c.ClientIP(), success); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

func actorOf(c *gin.Context) audit.Actor {
	return audit.Actor{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func actorFromSession(c *gin.Context, m *session.Manager) audit.Actor {
	a := actorOf(c)
	rec := m.Current()
	if rec.UserID != nil {
		a.UserID = *rec.UserID
	}
	if rec.Username != nil {
		a.Username = *rec.Username
	}
	return a
}
