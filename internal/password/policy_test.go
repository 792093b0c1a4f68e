package password

import (
	"reflect"
	"strings"
	"testing"
)

func TestEvaluate_Examples(t *testing.T) {
	cases := []struct {
		pw       string
		valid    bool
		score    int
		strength Strength
		errs     []string
	}{
		{"Passw0rd!", true, 95, Strong, nil},
		{"password", false, 5, Weak, []string{MsgUppercase, MsgDigit, MsgSpecial, MsgCommon}},
		{"abcdef12", false, 50, Medium, []string{MsgUppercase, MsgSpecial, MsgSequential}},
		{"", false, 0, Weak, []string{MsgTooShort, MsgUppercase, MsgLowercase, MsgDigit, MsgSpecial}},
		{"Aa1!aaa", false, 55, Medium, []string{MsgTooShort, MsgRepeating}},
	}
	for _, tc := range cases {
		got := Evaluate(tc.pw)
		if got.IsValid != tc.valid || got.Score != tc.score || got.Strength != tc.strength {
			t.Fatalf("%q: got valid=%v score=%d strength=%s", tc.pw, got.IsValid, got.Score, got.Strength)
		}
		if !reflect.DeepEqual(got.Errors, tc.errs) {
			t.Fatalf("%q: errors=%q want %q", tc.pw, got.Errors, tc.errs)
		}
	}
}

func TestEvaluate_BlocklistIsNormalised(t *testing.T) {
	for _, pw := range []string{"  PassWord ", "QWERTY123", "Monitoring"} {
		if !IsCommon(pw) {
			t.Fatalf("%q should be blocklisted", pw)
		}
	}
	if IsCommon("password1") {
		t.Fatalf("only exact matches are blocklisted")
	}
}

func TestEvaluate_SequentialRuns(t *testing.T) {
	for _, pw := range []string{"xABCx", "q789q", "aXyZa"} {
		if !hasSequentialRun(pw) {
			t.Fatalf("%q should contain a run", pw)
		}
	}
	// Mixed classes and descending runs are fine.
	for _, pw := range []string{"cba321", "a1b2c3", "9:;", "xy"} {
		if hasSequentialRun(pw) {
			t.Fatalf("%q should not contain a run", pw)
		}
	}
}

func TestEvaluate_LengthBoundsAndBonuses(t *testing.T) {
	long := "Aa1!" + strings.Repeat("x9", 63)
	res := Evaluate(long)
	if res.IsValid {
		t.Fatalf("expected >128 chars rejected")
	}
	if res.Errors[0] != MsgTooLong {
		t.Fatalf("expected length error first, got %q", res.Errors)
	}

	// 16 distinct runes, all classes: 20+15+15+15+20+10+10+10 clamps to 100.
	if got := Evaluate("Zq8!Wm3#Ty6$Hp2%").Score; got != 100 {
		t.Fatalf("expected clamped score 100, got %d", got)
	}

	// Length counts runes, not bytes.
	if res := Evaluate("Ää1!éü"); res.Errors[0] != MsgTooShort {
		t.Fatalf("expected rune length below minimum")
	}
}

func TestStrengthMessages(t *testing.T) {
	if Weak.Message() != "Weak password" || Medium.Message() != "Medium strength password" || Strong.Message() != "Strong password" {
		t.Fatalf("unexpected messages")
	}
	if Strength("bogus").Color() != Weak.Color() {
		t.Fatalf("unknown strength renders as weak")
	}
}
