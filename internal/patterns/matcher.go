package patterns

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"ICPVanity/internal/principal"
)

// Matcher decides whether a principal text is a hit.
type Matcher interface {
	Match(text string) bool
	String() string
}

// Prefix is an exact, case-sensitive prefix match.
type Prefix string

func (p Prefix) Match(text string) bool {
	return strings.HasPrefix(text, string(p))
}

func (p Prefix) String() string { return string(p) }

// ValidatePrefix reports why a prefix can never occur in principal text.
// Dashes must sit at every sixth position; other characters must be in the
// base32 alphabet.
func ValidatePrefix(prefix string) error {
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if (i+1)%(principal.GroupSize+1) == 0 {
			if c != '-' {
				return fmt.Errorf("position %d must be '-', got %q", i+1, c)
			}
			continue
		}
		if c == '-' {
			return fmt.Errorf("position %d: '-' only allowed every %d characters", i+1, principal.GroupSize+1)
		}
		if strings.IndexByte(principal.Alphabet, c) < 0 {
			return fmt.Errorf("position %d: %q not in alphabet %s", i+1, c, principal.Alphabet)
		}
	}
	return nil
}

// Significant counts the prefix characters that carry entropy (dashes excluded).
func Significant(prefix string) int {
	return len(prefix) - strings.Count(prefix, "-")
}

// EstimateAttempts is the expected number of attempts for a prefix,
// alphabetSize^significantChars.
func EstimateAttempts(prefix string) *big.Int {
	n := big.NewInt(int64(len(principal.Alphabet)))
	return n.Exp(n, big.NewInt(int64(Significant(prefix))), nil)
}

// EstimateDuration converts the expected attempt count at a given rate into seconds.
func EstimateDuration(prefix string, ratePerSec float64) float64 {
	if ratePerSec <= 0 {
		return math.Inf(1)
	}
	f, _ := new(big.Float).SetInt(EstimateAttempts(prefix)).Float64()
	return f / ratePerSec
}
