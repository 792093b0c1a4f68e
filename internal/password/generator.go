package password

import "math/rand/v2"

const (
	GeneratedLength = 16

	lowerSet   = "abcdefghijklmnopqrstuvwxyz"
	upperSet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitSet   = "0123456789"
	symbolSet  = "!@#$%^&*()_+-=[]{}|;:,.<>?"
	generalSet = lowerSet + upperSet + digitSet + symbolSet
)

// Generate suggests a 16 character password with one character from every
// required class. Candidates that trip a pattern rule are discarded, so the
// result always passes Evaluate.
//
// The source is math/rand; suggestions are a convenience, not key material.
func Generate() string {
	for {
		if pw := candidate(); Evaluate(pw).IsValid {
			return pw
		}
	}
}

func candidate() string {
	b := make([]byte, 0, GeneratedLength)
	for _, set := range []string{lowerSet, upperSet, digitSet, symbolSet} {
		b = append(b, pick(set))
	}
	for len(b) < GeneratedLength {
		b = append(b, pick(generalSet))
	}
	rand.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
	return string(b)
}

func pick(set string) byte { return set[rand.IntN(len(set))] }
