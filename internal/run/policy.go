package run

import (
	"fmt"
	"strings"

	"github.com/metalagman/racefix/internal/config"
	"github.com/metalagman/racefix/internal/oracle"
)

// AcceptancePolicy decides whether a verification run counts as a fix.
type AcceptancePolicy string

const (
	// PolicyLenient accepts an overall pass, or the test id missing from the failing list.
	PolicyLenient AcceptancePolicy = config.AcceptanceLenient
	// PolicyStrict additionally requires the failing list to be non-empty when the suite did not pass,
	// so a crash that hides every failure is not taken as a fix.
	PolicyStrict AcceptancePolicy = config.AcceptanceStrict
)

// ParsePolicy maps a config value to a policy. Empty means lenient.
func ParsePolicy(s string) (AcceptancePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", config.AcceptanceLenient:
		return PolicyLenient, nil
	case config.AcceptanceStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown acceptance policy %q", s)
	}
}

// Accepts reports whether res clears test id. Inconclusive results are never accepted.
func (p AcceptancePolicy) Accepts(id string, res oracle.Result) bool {
	if res.Inconclusive {
		return false
	}
	if res.Passed {
		return true
	}
	if res.Contains(id) {
		return false
	}
	if p == PolicyStrict {
		return len(res.FailingTests) > 0
	}
	return true
}
