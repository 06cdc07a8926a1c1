package labs

import "github.com/ameotech/triage/internal/domain"

// View is the part of a completed result that follow-up decisions read.
type View struct {
	Tool   domain.LabTool
	Scores map[string]int
	Tier   string
}

// Score returns the named dimension, or 0 when absent.
func (v View) Score(name string) int {
	return v.Scores[name]
}

// Empty reports whether the result carried no scores and no tier.
func (v View) Empty() bool {
	return len(v.Scores) == 0 && v.Tier == ""
}

// ViewOf builds a view from an in-process result.
func ViewOf(r Result) View {
	v := View{Tool: r.Tool(), Scores: r.ScoreMap()}
	if bp, ok := r.(BlueprintResult); ok {
		v.Tier = bp.Tier
	}
	return v
}

// ParseView reads a result posted back by a client. Missing or mistyped
// scores read as 0.
func ParseView(tool domain.LabTool, raw []byte) (View, error) {
	f, err := decodeFields(raw)
	if err != nil {
		return View{}, err
	}
	scores := f.sub("scores")
	v := View{Tool: tool, Scores: make(map[string]int, len(scores))}
	for k := range scores {
		v.Scores[k] = clamp(scores.integer(k))
	}
	v.Tier = f.str("tier")
	if v.Tier == "" {
		v.Tier = f.sub("overview").str("tier")
	}
	return v, nil
}
