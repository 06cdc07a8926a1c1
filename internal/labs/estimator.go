package labs

import (
	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/rules"
)

// EstimatorAnswers are the build estimator questionnaire fields.
type EstimatorAnswers struct {
	ProjectTypes []string `json:"project_types"`
	Urgency      string   `json:"urgency"`
	CompanyStage string   `json:"company_stage"`
	Team         string   `json:"team"`
	Budget       string   `json:"budget"`
}

// EstimatorScores are the four estimator dimensions. Team is a need score:
// the weaker the in-house team, the higher it is.
type EstimatorScores struct {
	Complexity int `json:"complexity"`
	Urgency    int `json:"urgency"`
	Team       int `json:"team"`
	Budget     int `json:"budget"`
}

// EstimatorResult is the output of the build estimator.
type EstimatorResult struct {
	Model           string           `json:"model"`
	Budget          string           `json:"budget"`
	Timeline        string           `json:"timeline"`
	Scores          EstimatorScores  `json:"scores"`
	Plan            []string         `json:"plan"`
	Recommendations []Recommendation `json:"recommendations"`
}

func (EstimatorResult) Tool() domain.LabTool { return domain.LabBuildEstimator }

func (r EstimatorResult) ScoreMap() map[string]int {
	return map[string]int{
		"complexity": r.Scores.Complexity,
		"urgency":    r.Scores.Urgency,
		"team":       r.Scores.Team,
		"budget":     r.Scores.Budget,
	}
}

// Engagement models, highest touch first.
const (
	ModelAIPod     = "AI Pod Retainer"
	ModelCustom    = "Custom Project"
	ModelPilot     = "Pilot Sprint"
	ModelDiscovery = "Discovery Sprint"
	ModelAdvisory  = "Advisory Retainer"
)

// EngagementModels lists every model from highest to lowest touch.
var EngagementModels = []string{ModelAIPod, ModelCustom, ModelPilot, ModelDiscovery, ModelAdvisory}

const (
	estimatorComplexityBase = 10
	estimatorNeutral        = 50
	estimatorRecLimit       = 4
)

var (
	// Labels as shown in the form, plus their short identifiers.
	estimatorProjectTypes = weights{
		"build a new product":                  30,
		"new_product":                          30,
		"add ai to existing system":            25,
		"add_ai":                               25,
		"modernize legacy platform":            30,
		"modernize_legacy":                     30,
		"data engineering / warehouse":         25,
		"data_engineering":                     25,
		"pricing / forecasting / optimization": 30,
		"pricing_forecasting":                  30,
		"workflow automation":                  15,
		"workflow_automation":                  15,
		"something else":                       10,
		"other":                                10,
	}
	estimatorStage   = weights{"startup": 0, "growth": 5, "mid": 10, "enterprise": 15}
	estimatorUrgency = weights{"4-6": 40, "8-12": 10, "future": -25}
	estimatorTeam    = weights{"none": 40, "small": 20, "strong": -10, "mature": -35}
	estimatorBudget  = weights{"exploring": -35, "5-10": -20, "10-20": 0, "20-40": 25, "40+": 45}
)

// RunEstimator maps project scope and constraints to an engagement model.
func RunEstimator(a EstimatorAnswers) EstimatorResult {
	s := EstimatorScores{
		Complexity: clamp(estimatorComplexityBase + estimatorProjectTypes.sum(a.ProjectTypes) + estimatorStage.of(a.CompanyStage)),
		Urgency:    clamp(estimatorNeutral + estimatorUrgency.of(a.Urgency)),
		Team:       clamp(estimatorNeutral + estimatorTeam.of(a.Team)),
		Budget:     clamp(estimatorNeutral + estimatorBudget.of(a.Budget)),
	}
	in := estimatorInput{answers: a, scores: s}

	model := ModelDiscovery
	if m, ok := rules.First(estimatorModelRules, in); ok {
		model = m.Value
	}

	recs := rules.Collect(estimatorRecRules, in, estimatorRecLimit)
	if len(recs) == 0 {
		recs = []Recommendation{{
			Area:   "delivery",
			Title:  "Agree on success metrics up front",
			Detail: "Write down the two or three numbers that will tell you the engagement worked.",
		}}
	}

	return EstimatorResult{
		Model:           model,
		Budget:          budgetBand(s.Budget),
		Timeline:        timeline(s.Urgency, s.Complexity),
		Scores:          s,
		Plan:            append([]string(nil), estimatorPlans[model]...),
		Recommendations: recs,
	}
}

type estimatorInput struct {
	answers EstimatorAnswers
	scores  EstimatorScores
}

var estimatorModelRules = []rules.Rule[estimatorInput, string]{
	rules.Emit("pod_for_funded_urgent_work",
		func(in estimatorInput) bool {
			return in.scores.Budget >= 75 && (in.scores.Urgency >= 80 || in.scores.Team >= 70)
		}, ModelAIPod),
	rules.Emit("advisory_for_strong_teams",
		func(in estimatorInput) bool { return in.scores.Team <= 25 && in.scores.Budget < 75 },
		ModelAdvisory),
	rules.Emit("custom_project",
		func(in estimatorInput) bool { return in.scores.Budget >= 50 && in.scores.Complexity >= 50 },
		ModelCustom),
	rules.Emit("pilot",
		func(in estimatorInput) bool { return in.scores.Budget >= 30 },
		ModelPilot),
}

var estimatorRecRules = []rules.Rule[estimatorInput, Recommendation]{
	rules.Emit("no_team",
		func(in estimatorInput) bool { return in.scores.Team >= 80 },
		Recommendation{
			Area:   "team",
			Title:  "Bring in a delivery lead",
			Detail: "Without an in-house tech team, pair the build with a fractional CTO who owns technical decisions.",
		}),
	rules.Emit("broad_scope",
		func(in estimatorInput) bool { return in.scores.Complexity >= 80 },
		Recommendation{
			Area:   "scope",
			Title:  "Phase the scope",
			Detail: "Several complex workstreams were selected. Sequence them so each phase ships value on its own.",
		}),
	rules.Emit("tight_deadline",
		func(in estimatorInput) bool { return in.scores.Urgency >= 80 && in.scores.Complexity >= 60 },
		Recommendation{
			Area:   "timeline",
			Title:  "Protect the deadline with a thin first release",
			Detail: "Agree on the smallest release that proves value and defer everything else to phase two.",
		}),
	rules.Emit("small_budget",
		func(in estimatorInput) bool { return in.scores.Budget <= 30 },
		Recommendation{
			Area:   "budget",
			Title:  "Start with a discovery sprint",
			Detail: "Validate scope and estimates before committing a larger budget.",
		}),
	rules.Emit("data_dependent",
		func(in estimatorInput) bool {
			return selected(in.answers.ProjectTypes, "add ai to existing system") ||
				selected(in.answers.ProjectTypes, "add_ai") ||
				selected(in.answers.ProjectTypes, "pricing / forecasting / optimization") ||
				selected(in.answers.ProjectTypes, "pricing_forecasting")
		},
		Recommendation{
			Area:   "data",
			Title:  "Check data readiness early",
			Detail: "AI and forecasting work depends on historical data quality. Run the AI Readiness check first.",
		}),
	rules.Emit("strong_team",
		func(in estimatorInput) bool { return in.scores.Team <= 25 },
		Recommendation{
			Area:   "team",
			Title:  "Keep ownership in-house",
			Detail: "Your team is strong. Use outside help for specialist gaps and design reviews.",
		}),
}

var estimatorPlans = map[string][]string{
	ModelAIPod: {
		"Weeks 1-2: discovery, architecture and backlog shaping",
		"Weeks 3-4: data and platform foundations",
		"Weeks 5-8: build and ship the first AI-enabled release",
		"Weeks 9-10: hardening, observability and QA",
		"Weeks 11-12: roll-out, handover and next-quarter roadmap",
	},
	ModelCustom: {
		"Weeks 1-2: scope, architecture and delivery plan",
		"Weeks 3-8: iterative build in two-week increments",
		"Weeks 9-10: integration, QA and performance work",
		"Weeks 11-12: launch and handover",
	},
	ModelPilot: {
		"Week 1: problem framing and success metrics",
		"Weeks 2-4: build a narrow working pilot",
		"Weeks 5-6: validate with real users and data",
		"Weeks 7-8: go/no-go decision and scale-up plan",
	},
	ModelDiscovery: {
		"Week 1: stakeholder interviews and current-state review",
		"Week 2: options, risks and rough estimates",
		"Week 3: roadmap and budget recommendation",
	},
	ModelAdvisory: {
		"Monthly architecture and delivery reviews",
		"Hands-on guidance on critical technical decisions",
		"Quarterly roadmap check-ins",
	},
}

func budgetBand(budget int) string {
	switch {
	case budget >= 90:
		return "$40K+ per month"
	case budget >= 70:
		return "$20K-$40K"
	case budget >= 50:
		return "$10K-$20K"
	case budget >= 30:
		return "$5K-$10K"
	default:
		return "Under $5K (discovery first)"
	}
}

func timeline(urgency, complexity int) string {
	var t string
	switch {
	case urgency >= 80:
		t = "4-6 weeks to a first release"
	case urgency >= 55:
		t = "8-12 weeks"
	default:
		t = "Flexible, phased over 3-6 months"
	}
	if complexity >= 80 {
		t += ", delivered in phases"
	}
	return t
}

func estimatorAnswersFrom(f fields) EstimatorAnswers {
	return EstimatorAnswers{
		ProjectTypes: f.strs("project_types"),
		Urgency:      f.str("urgency"),
		CompanyStage: f.str("company_stage"),
		Team:         f.str("team"),
		Budget:       f.str("budget"),
	}
}
