// Package labs implements the deterministic lab tools: the readiness audit,
// build estimator, architecture blueprint and AI readiness check.
//
// Every engine is a pure function from answers to a result. Each selected
// option adds a fixed delta to one or more score dimensions; dimensions are
// clamped to [0, 100]. Unknown or missing options contribute nothing.
// Recommendations come from ordered rule lists with a cap per list.
package labs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ameotech/triage/internal/domain"
)

// ErrInvalidAnswers is returned when a request body is not a JSON object.
var ErrInvalidAnswers = errors.New("answers must be a JSON object")

// Recommendation is one piece of advice attached to a result.
type Recommendation struct {
	Area   string `json:"area"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Result is implemented by every engine's output.
type Result interface {
	Tool() domain.LabTool
	ScoreMap() map[string]int
}

// Run decodes raw answers for tool and runs its engine.
func Run(tool domain.LabTool, raw []byte) (Result, error) {
	f, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	switch tool {
	case domain.LabAudit:
		return RunAudit(auditAnswersFrom(f)), nil
	case domain.LabBuildEstimator:
		return RunEstimator(estimatorAnswersFrom(f)), nil
	case domain.LabArchitectureBlueprint:
		return RunBlueprint(blueprintAnswersFrom(f)), nil
	case domain.LabAIReadiness:
		return RunReadiness(readinessAnswersFrom(f)), nil
	default:
		return nil, fmt.Errorf("unknown lab tool %q", tool)
	}
}

func clamp(n int) int {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	default:
		return n
	}
}

// weights maps a normalized option value to its score delta.
type weights map[string]int

func (w weights) of(v string) int {
	return w[normalize(v)]
}

// sum adds the deltas of distinct selected values.
func (w weights) sum(vs []string) int {
	seen := make(map[string]bool, len(vs))
	total := 0
	for _, v := range vs {
		k := normalize(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		total += w[k]
	}
	return total
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func selected(vs []string, want string) bool {
	want = normalize(want)
	for _, v := range vs {
		if normalize(v) == want {
			return true
		}
	}
	return false
}

func oneOf(v string, options ...string) bool {
	v = normalize(v)
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// weightedMean combines scores with integer percentage weights summing to 100,
// rounding half up.
func weightedMean(pairs ...[2]int) int {
	total := 0
	for _, p := range pairs {
		total += p[0] * p[1]
	}
	return clamp((total + 50) / 100)
}

func minInt(vs ...int) int {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
