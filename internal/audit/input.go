package audit

import (
	"context"
	"regexp"
	"strings"
)

type InputKind string

const (
	InputOK         InputKind = ""
	InputSuspicious InputKind = "suspicious"
	InputSQL        InputKind = "sql"
	InputXSS        InputKind = "xss"
)

type InputCheck struct {
	IsValid bool      `json:"isValid"`
	Reason  string    `json:"reason,omitempty"`
	Kind    InputKind `json:"kind,omitempty"`
}

var (
	suspiciousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(admin|root|system)\b`),
		regexp.MustCompile(`(?i)(123456789|qwertyuiop|asdfghjkl)`),
		regexp.MustCompile(`(?i)(password123|admin123)`),
	}
	sqlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXEC|UNION)\b`),
		regexp.MustCompile(`(--|/\*|\*/|;)`),
		regexp.MustCompile(`(?i)\b(OR|AND)\b\s+\d+\s*=\s*\d+`),
	}
	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script\b.*?</script>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?is)<iframe\b.*?</iframe>`),
	}
)

// ValidateInput screens a free-text value. SQL and XSS hits are recorded as
// suspicious activity; plain suspicious patterns are only reported.
func (s *Service) ValidateInput(ctx context.Context, input string, actor Actor) InputCheck {
	if strings.TrimSpace(input) == "" {
		return InputCheck{IsValid: true}
	}
	if matchAny(suspiciousPatterns, input) {
		return InputCheck{Reason: "Input contains suspicious patterns", Kind: InputSuspicious}
	}
	if matchAny(sqlPatterns, input) {
		s.recordInput(ctx, "Potential SQL injection attempt: "+input, actor)
		return InputCheck{Reason: "Input contains invalid characters", Kind: InputSQL}
	}
	if matchAny(xssPatterns, input) {
		s.recordInput(ctx, "Potential XSS attempt: "+input, actor)
		return InputCheck{Reason: "Input contains invalid characters", Kind: InputXSS}
	}
	return InputCheck{IsValid: true}
}

func (s *Service) recordInput(ctx context.Context, details string, actor Actor) {
	if err := s.RecordSuspicious(ctx, truncate(details, 500), actor); err != nil {
		s.log.Warn("audit append failed", "err", err)
	}
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
