// Package backend talks to the banking REST API on behalf of browser clients.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrRejected    = errors.New("backend: request rejected")
	ErrDeactivated = errors.New("backend: account deactivated")
	ErrNoToken     = errors.New("backend: login response carried no token")
	ErrUpstream    = errors.New("backend: upstream failure")
)

const deactivatedMessage = "Account is deactivated. Please contact administrator."

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status %d", e.Status)
	}
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status >= 500:
		return ErrUpstream
	case strings.Contains(strings.ToLower(e.Message), "deactivated"):
		return ErrDeactivated
	default:
		return ErrRejected
	}
}

type LoginResult struct {
	Token        string `json:"token"`
	EmailAddress string `json:"emailAddress"`
	Username     string `json:"username,omitempty"`
}

type OTPResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Client struct {
	base *url.URL
	http *http.Client
	rt   http.RoundTripper
	log  *slog.Logger
}

// New builds a client for baseURL (e.g. http://bank:8080/api/v1). rt is
// normally the outbound Transport.
func New(baseURL string, timeout time.Duration, rt http.RoundTripper, log *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url must be absolute: %q", baseURL)
	}
	if rt == nil {
		rt = http.DefaultTransport
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		base: u,
		http: &http.Client{Transport: rt, Timeout: timeout},
		rt:   rt,
		log:  log,
	}, nil
}

// Login exchanges credentials for a token. The backend then mails an OTP to
// EmailAddress, which must be confirmed with ValidateOTP.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	req := map[string]string{"username": username, "password": password}
	if err := c.postJSON(ctx, "login", req, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && errors.Is(err, ErrDeactivated) {
			apiErr.Message = deactivatedMessage
		}
		return LoginResult{}, err
	}
	if out.Token == "" {
		return LoginResult{}, ErrNoToken
	}
	if out.EmailAddress == "" {
		out.EmailAddress = username
	}
	return out, nil
}

// ValidateOTP reports the backend's verdict. A wrong code is a result with
// Success=false, not an error.
func (c *Client) ValidateOTP(ctx context.Context, email, otp string) (OTPResult, error) {
	return c.otpCall(ctx, "validate-otp", map[string]string{"email": email, "otp": otp})
}

func (c *Client) ResendOTP(ctx context.Context, email string) (OTPResult, error) {
	return c.otpCall(ctx, "resend-otp", map[string]string{"email": email})
}

func (c *Client) otpCall(ctx context.Context, path string, body any) (OTPResult, error) {
	status, raw, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return OTPResult{}, err
	}
	if status >= 500 {
		return OTPResult{}, &APIError{Status: status, Message: message(raw)}
	}

	var res OTPResult
	if json.Unmarshal(raw, &res) == nil && (res.Success || res.Message != "") {
		return res, nil
	}
	// Older deployments answer with a bare string and the status code.
	return OTPResult{Success: status < 300, Message: message(raw)}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	status, raw, err := c.do(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &APIError{Status: status, Message: message(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrUpstream, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in any) (int, []byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, nil, fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s: %v", ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read %s response: %v", ErrUpstream, path, err)
	}
	return resp.StatusCode, raw, nil
}

// message pulls a human readable message out of a JSON {message} body or
// falls back to the raw text.
func message(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "<") {
		return ""
	}
	return s
}
