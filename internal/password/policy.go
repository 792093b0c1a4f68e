// Package password scores candidate passwords against the portal's policy
// and suggests passwords that satisfy it.
package password

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinLength = 8
	MaxLength = 128

	specialChars = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

type Strength string

const (
	Weak   Strength = "weak"
	Medium Strength = "medium"
	Strong Strength = "strong"
)

func (s Strength) Message() string {
	switch s {
	case Strong:
		return "Strong password"
	case Medium:
		return "Medium strength password"
	default:
		return "Weak password"
	}
}

// Color is the hex colour the portal uses for the strength meter.
func (s Strength) Color() string {
	switch s {
	case Strong:
		return "#38a169"
	case Medium:
		return "#d69e2e"
	default:
		return "#e53e3e"
	}
}

// Result is derived on every call and never persisted.
type Result struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Strength Strength `json:"strength"`
	Score    int      `json:"score"`
}

// Violation messages, in evaluation order.
var (
	MsgTooShort   = fmt.Sprintf("Password must be at least %d characters long", MinLength)
	MsgTooLong    = fmt.Sprintf("Password must not exceed %d characters", MaxLength)
	MsgUppercase  = "Password must contain at least one uppercase letter"
	MsgLowercase  = "Password must contain at least one lowercase letter"
	MsgDigit      = "Password must contain at least one number"
	MsgSpecial    = "Password must contain at least one special character (!@#$%^&*()_+-=[]{}|;:,.<>?)"
	MsgCommon     = "Password is too common. Please choose a more unique password"
	MsgSequential = "Password contains sequential characters (e.g., 123, abc)"
	MsgRepeating  = "Password contains repeating characters (e.g., aaa, 111)"
)

var commonPasswords = map[string]struct{}{}

func init() {
	for _, p := range []string{
		"password", "123456", "123456789", "qwerty", "abc123",
		"password123", "admin", "letmein", "welcome", "monkey",
		"dragon", "master", "hello", "freedom", "whatever",
		"qwerty123", "trustno1", "jordan", "harley", "ranger",
		"joshua", "maggie", "guitar", "rosebud", "secret",
		"summer", "bigtits", "cooper", "jackson", "mike",
		"thomas", "jessica", "dakota", "willie", "winston",
		"apple", "eagle", "shelby", "angel", "steven",
		"michelle", "love", "tiger", "robert", "buster",
		"heather", "charlie", "andrew", "matthew",
		"access", "yankees", "987654321", "dallas", "austin",
		"thunder", "taylor", "matrix", "mobilemail", "mom",
		"monitor", "monitoring", "montana", "moon", "moscow",
	} {
		commonPasswords[p] = struct{}{}
	}
}

// Evaluate applies every rule in a fixed order: length, character classes,
// blocklist, sequential runs, repeated runs. Violations are collected, never
// returned as errors. Character classes are ASCII; length counts runes.
func Evaluate(pw string) Result {
	var errs []string
	score := 0
	n := utf8.RuneCountInString(pw)

	if n < MinLength {
		errs = append(errs, MsgTooShort)
	} else {
		score += 20
	}
	if n > MaxLength {
		errs = append(errs, MsgTooLong)
	}

	classes := []struct {
		has   func(rune) bool
		msg   string
		score int
	}{
		{isUpper, MsgUppercase, 15},
		{isLower, MsgLowercase, 15},
		{isDigit, MsgDigit, 15},
		{isSpecial, MsgSpecial, 20},
	}
	for _, c := range classes {
		if strings.IndexFunc(pw, c.has) >= 0 {
			score += c.score
		} else {
			errs = append(errs, c.msg)
		}
	}

	if IsCommon(pw) {
		errs = append(errs, MsgCommon)
		score -= 30
	}
	if hasSequentialRun(pw) {
		errs = append(errs, MsgSequential)
		score -= 10
	}
	if hasRepeatedRun(pw) {
		errs = append(errs, MsgRepeating)
		score -= 10
	}

	if n >= 12 {
		score += 10
	}
	if n >= 16 {
		score += 10
	}
	if distinct(pw) >= 8 {
		score += 10
	}

	score = max(0, min(100, score))
	return Result{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Strength: tier(score),
		Score:    score,
	}
}

// IsCommon reports whether pw is on the blocklist after trimming and lowercasing.
func IsCommon(pw string) bool {
	_, ok := commonPasswords[strings.ToLower(strings.TrimSpace(pw))]
	return ok
}

func tier(score int) Strength {
	switch {
	case score >= 70:
		return Strong
	case score >= 40:
		return Medium
	default:
		return Weak
	}
}

func isUpper(r rune) bool   { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool   { return r >= 'a' && r <= 'z' }
func isDigit(r rune) bool   { return r >= '0' && r <= '9' }
func isSpecial(r rune) bool { return strings.ContainsRune(specialChars, r) }

// hasSequentialRun finds three strictly ascending letters (case-insensitive)
// or digits, e.g. "abc", "XyZ", "789".
func hasSequentialRun(pw string) bool {
	rs := []rune(strings.ToLower(pw))
	for i := 0; i+2 < len(rs); i++ {
		a, b, c := rs[i], rs[i+1], rs[i+2]
		sameClass := (isLower(a) && isLower(b) && isLower(c)) || (isDigit(a) && isDigit(b) && isDigit(c))
		if sameClass && b == a+1 && c == b+1 {
			return true
		}
	}
	return false
}

func hasRepeatedRun(pw string) bool {
	rs := []rune(pw)
	for i := 0; i+2 < len(rs); i++ {
		if rs[i] == rs[i+1] && rs[i] == rs[i+2] {
			return true
		}
	}
	return false
}

func distinct(pw string) int {
	seen := make(map[rune]struct{}, len(pw))
	for _, r := range pw {
		seen[r] = struct{}{}
	}
	return len(seen)
}
