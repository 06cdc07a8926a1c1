package labs

import (
	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/rules"
)

// ReadinessAnswers are the AI readiness questionnaire fields.
type ReadinessAnswers struct {
	DataMaturity     []string `json:"data_maturity"`
	WorkflowMaturity []string `json:"workflow_maturity"`
	AIOpportunities  []string `json:"ai_opportunities"`
	OrgStage         string   `json:"org_stage"`
	TeamStrength     string   `json:"team_strength"`
	Budget           string   `json:"budget"`
	Urgency          string   `json:"urgency"`
}

// ReadinessScores are the five readiness dimensions plus the overall score.
type ReadinessScores struct {
	Data          int `json:"data"`
	Workflows     int `json:"workflows"`
	Opportunities int `json:"opportunities"`
	Org           int `json:"org"`
	Constraints   int `json:"constraints"`
	Score         int `json:"score"`
}

// ReadinessResult is the output of the AI readiness check.
type ReadinessResult struct {
	Scores          ReadinessScores     `json:"scores"`
	Level           string              `json:"level"`
	QuickWins       []string            `json:"quick_wins"`
	Recommendations []Recommendation    `json:"recommendations"`
	NextStep        string              `json:"next_step"`
	NextActions     []domain.Suggestion `json:"next_actions,omitempty"`
}

func (ReadinessResult) Tool() domain.LabTool { return domain.LabAIReadiness }

func (r ReadinessResult) ScoreMap() map[string]int {
	return map[string]int{
		"data":          r.Scores.Data,
		"workflows":     r.Scores.Workflows,
		"opportunities": r.Scores.Opportunities,
		"org":           r.Scores.Org,
		"constraints":   r.Scores.Constraints,
		"score":         r.Scores.Score,
	}
}

const (
	readinessDataBase          = 40
	readinessWorkflowBase      = 40
	readinessOpportunitiesBase = 20
	readinessOrgBase           = 40
	readinessConstraintsBase   = 45

	readinessQuickWinLimit = 3
	readinessRecLimit      = 4
)

var (
	readinessData = weights{
		"centralized warehouse":         30,
		"data is scattered":             -20,
		"historical data available":     20,
		"mostly unstructured data":      -10,
		"etl pipelines in place":        25,
		"manual data cleaning required": -15,
	}
	readinessWorkflows = weights{
		"mostly manual":           -15,
		"repeatable process":      20,
		"api-ready":               25,
		"event-driven":            25,
		"excel/email driven":      -15,
		"legacy systems in place": -10,
	}
	readinessOpportunities = weights{
		"pricing / forecasting": 15,
		"demand modeling":       15,
		"customer intelligence": 15,
		"workflow automation":   15,
		"anomaly detection":     15,
		"decision support":      15,
	}
	readinessOrgStage = weights{"startup": 0, "growth": 10, "mid": 15, "enterprise": 20}
	readinessTeam     = weights{"none": -25, "small": 0, "strong": 20, "mature": 30}
	readinessBudget   = weights{"low": -25, "moderate": 0, "good": 20, "strong": 35}
	readinessUrgency  = weights{"fast": 10, "medium": 5, "slow": -5}
)

// RunReadiness scores how prepared an organisation is to adopt AI.
//
// score = round(0.25*data + 0.20*workflows + 0.15*opportunities + 0.20*org + 0.20*constraints).
func RunReadiness(a ReadinessAnswers) ReadinessResult {
	s := ReadinessScores{
		Data:          clamp(readinessDataBase + readinessData.sum(a.DataMaturity)),
		Workflows:     clamp(readinessWorkflowBase + readinessWorkflows.sum(a.WorkflowMaturity)),
		Opportunities: clamp(readinessOpportunitiesBase + readinessOpportunities.sum(a.AIOpportunities)),
		Org:           clamp(readinessOrgBase + readinessOrgStage.of(a.OrgStage) + readinessTeam.of(a.TeamStrength)),
		Constraints:   clamp(readinessConstraintsBase + readinessBudget.of(a.Budget) + readinessUrgency.of(a.Urgency)),
	}
	s.Score = weightedMean(
		[2]int{s.Data, 25},
		[2]int{s.Workflows, 20},
		[2]int{s.Opportunities, 15},
		[2]int{s.Org, 20},
		[2]int{s.Constraints, 20},
	)

	in := readinessInput{answers: a, scores: s}
	wins := rules.Collect(readinessQuickWinRules, in, readinessQuickWinLimit)
	if wins == nil {
		wins = []string{}
	}
	recs := rules.Collect(readinessRecRules, in, readinessRecLimit)
	if len(recs) == 0 {
		recs = []Recommendation{{
			Area:   "strategy",
			Title:  "Run a focused proof of concept",
			Detail: "Pick one use case with a clear owner and metric, and prove it on real data in a few weeks.",
		}}
	}

	return ReadinessResult{
		Scores:          s,
		Level:           readinessLevel(s.Score),
		QuickWins:       wins,
		Recommendations: recs,
		NextStep:        readinessNextStep(s.Score),
	}
}

type readinessInput struct {
	answers ReadinessAnswers
	scores  ReadinessScores
}

var readinessQuickWinRules = []rules.Rule[readinessInput, string]{
	rules.Emit("consolidate_sources",
		func(in readinessInput) bool { return in.scores.Data < 50 },
		"Consolidate your two or three most important data sources into one place"),
	rules.Emit("automate_cleaning",
		func(in readinessInput) bool { return selected(in.answers.DataMaturity, "manual data cleaning required") },
		"Automate the most repetitive data-cleaning step"),
	rules.Emit("document_workflow",
		func(in readinessInput) bool { return in.scores.Workflows < 50 },
		"Document one repeatable workflow end to end as an automation candidate"),
	rules.Emit("leave_spreadsheets",
		func(in readinessInput) bool { return selected(in.answers.WorkflowMaturity, "excel/email driven") },
		"Move one spreadsheet-driven process into a shared tool with an API"),
	rules.Emit("shortlist_use_cases",
		func(in readinessInput) bool { return in.scores.Opportunities < 40 },
		"Shortlist two AI use cases, each with an owner and a success metric"),
	rules.Emit("name_owner",
		func(in readinessInput) bool { return in.scores.Org < 40 },
		"Name an internal owner for AI initiatives"),
}

var readinessRecRules = []rules.Rule[readinessInput, Recommendation]{
	rules.Emit("data_foundations",
		func(in readinessInput) bool { return in.scores.Data < 50 },
		Recommendation{
			Area:   "data",
			Title:  "Fix data foundations first",
			Detail: "Models are only as good as their inputs. Centralise and clean the data behind your first use case.",
		}),
	rules.Emit("standardise_workflows",
		func(in readinessInput) bool { return in.scores.Workflows < 50 },
		Recommendation{
			Area:   "workflows",
			Title:  "Standardise workflows before automating",
			Detail: "Automating an inconsistent process locks the inconsistency in. Agree on the process first.",
		}),
	rules.Emit("delivery_capacity",
		func(in readinessInput) bool { return in.scores.Org < 40 },
		Recommendation{
			Area:   "org",
			Title:  "Add delivery capacity",
			Detail: "Partner with an external team or hire a technical lead before starting AI work.",
		}),
	rules.Emit("tight_constraints",
		func(in readinessInput) bool { return in.scores.Constraints < 40 },
		Recommendation{
			Area:   "constraints",
			Title:  "Right-size the first initiative",
			Detail: "Budget or timing is tight. Start with a small proof of concept that pays back quickly.",
		}),
	rules.Emit("production_pilot",
		func(in readinessInput) bool { return in.scores.Score >= 75 },
		Recommendation{
			Area:   "strategy",
			Title:  "Move to a production pilot",
			Detail: "You are ready to run an AI use case against production data with monitoring and a rollback plan.",
		}),
	rules.Emit("prioritise_use_case",
		func(in readinessInput) bool { return in.scores.Opportunities >= 60 && in.scores.Score < 75 },
		Recommendation{
			Area:   "strategy",
			Title:  "Prioritise one use case",
			Detail: "Several opportunities were selected. Rank them by value and data availability, then start with one.",
		}),
}

func readinessLevel(score int) string {
	switch {
	case score >= 75:
		return "Scale ready"
	case score >= 60:
		return "Pilot ready"
	default:
		return "Foundations needed"
	}
}

func readinessNextStep(score int) string {
	switch {
	case score < 60:
		return "Strengthen your data and platform foundations with an Architecture Blueprint before investing in AI."
	case score >= 75:
		return "You are ready to scope a concrete AI initiative. Use the Build Estimator to size it."
	default:
		return "You are in a mixed zone. A small, well-defined proof of concept or an advisory sprint is the best next step."
	}
}

func readinessAnswersFrom(f fields) ReadinessAnswers {
	return ReadinessAnswers{
		DataMaturity:     f.strs("data_maturity"),
		WorkflowMaturity: f.strs("workflow_maturity"),
		AIOpportunities:  f.strs("ai_opportunities"),
		OrgStage:         f.str("org_stage"),
		TeamStrength:     f.str("team_strength"),
		Budget:           f.str("budget"),
		Urgency:          f.str("urgency"),
	}
}
