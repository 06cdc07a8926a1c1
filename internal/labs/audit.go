package labs

import (
	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/rules"
)

// AuditAnswers are the readiness audit questionnaire fields.
type AuditAnswers struct {
	ProductStage    string   `json:"product_stage"`
	ReleaseFreq     string   `json:"release_freq"`
	TechStack       string   `json:"tech_stack,omitempty"`
	CICD            bool     `json:"ci_cd"`
	Testing         string   `json:"testing"`
	DataCentralized bool     `json:"data_centralized"`
	Analytics       string   `json:"analytics"`
	PainPoints      []string `json:"pain_points"`
}

// AuditScores are the three audit dimensions.
type AuditScores struct {
	Product     int `json:"product"`
	Engineering int `json:"engineering"`
	DataAI      int `json:"data_ai"`
}

// AuditResult is the output of the readiness audit.
type AuditResult struct {
	Scores          AuditScores      `json:"scores"`
	Recommendations []Recommendation `json:"recommendations"`
	Summary         string           `json:"summary"`
}

func (AuditResult) Tool() domain.LabTool { return domain.LabAudit }

func (r AuditResult) ScoreMap() map[string]int {
	return map[string]int{
		"product":     r.Scores.Product,
		"engineering": r.Scores.Engineering,
		"data_ai":     r.Scores.DataAI,
	}
}

const (
	auditProductBase     = 20
	auditEngineeringBase = 10
	auditDataBase        = 10

	auditFoundationLimit = 4
	auditPainLimit       = 2
)

var (
	auditStageProduct = weights{"idea": 0, "mvp": 10, "early_revenue": 20, "growth": 30, "scaleup": 35}
	auditStageData    = weights{"growth": 5, "scaleup": 5}

	auditReleaseProduct     = weights{"ad_hoc": 0, "monthly": 10, "biweekly": 20, "weekly": 30, "daily": 40}
	auditReleaseEngineering = weights{"weekly": 5, "daily": 10}

	auditTesting   = weights{"none": 0, "low": 15, "medium": 30, "high": 45}
	auditAnalytics = weights{"none": 0, "basic": 15, "intermediate": 30, "advanced": 45}

	auditPainProduct     = weights{"slow_releases": -5, "manual_processes": -5}
	auditPainEngineering = weights{"high_incident_load": -10}
	auditPainData        = weights{"data_scattered": -10, "no_visibility": -5, "low_confidence_in_metrics": -5}
)

const (
	auditCICDDelta        = 35
	auditCentralizedDelta = 35
)

// RunAudit scores product, engineering and data/AI maturity.
func RunAudit(a AuditAnswers) AuditResult {
	product := auditProductBase +
		auditStageProduct.of(a.ProductStage) +
		auditReleaseProduct.of(a.ReleaseFreq) +
		auditPainProduct.sum(a.PainPoints)

	engineering := auditEngineeringBase +
		auditTesting.of(a.Testing) +
		auditReleaseEngineering.of(a.ReleaseFreq) +
		auditPainEngineering.sum(a.PainPoints)
	if a.CICD {
		engineering += auditCICDDelta
	}

	data := auditDataBase +
		auditAnalytics.of(a.Analytics) +
		auditStageData.of(a.ProductStage) +
		auditPainData.sum(a.PainPoints)
	if a.DataCentralized {
		data += auditCentralizedDelta
	}

	in := auditInput{
		answers: a,
		scores: AuditScores{
			Product:     clamp(product),
			Engineering: clamp(engineering),
			DataAI:      clamp(data),
		},
	}

	recs := rules.Collect(auditFoundationRules, in, auditFoundationLimit)
	for _, r := range rules.Collect(auditPainRules, in, auditPainLimit) {
		if !containsTitle(recs, r.Title) {
			recs = append(recs, r)
		}
	}
	if len(recs) == 0 {
		recs = []Recommendation{{
			Area:   "product",
			Title:  "Scale what works",
			Detail: "Foundations look healthy. Pick the next growth bottleneck and measure the impact of fixing it.",
		}}
	}

	return AuditResult{
		Scores:          in.scores,
		Recommendations: recs,
		Summary:         auditSummary(in.scores),
	}
}

type auditInput struct {
	answers AuditAnswers
	scores  AuditScores
}

var auditFoundationRules = []rules.Rule[auditInput, Recommendation]{
	rules.Emit("no_ci_cd",
		func(in auditInput) bool { return !in.answers.CICD },
		Recommendation{
			Area:   "engineering",
			Title:  "Automate builds and deploys",
			Detail: "Set up a CI/CD pipeline so every merge is built, tested and deployable without manual steps.",
		}),
	rules.Emit("weak_testing",
		func(in auditInput) bool { return oneOf(in.answers.Testing, "", "none", "low") },
		Recommendation{
			Area:   "testing",
			Title:  "Build an automated test safety net",
			Detail: "Start with smoke tests on the critical user flows, then cover business rules with unit tests.",
		}),
	rules.Emit("data_not_centralized",
		func(in auditInput) bool { return !in.answers.DataCentralized },
		Recommendation{
			Area:   "data_ai",
			Title:  "Centralise core data",
			Detail: "Consolidate product, sales and operations data into one warehouse before investing in AI.",
		}),
	rules.Emit("analytics_basic",
		func(in auditInput) bool { return oneOf(in.answers.Analytics, "", "none", "basic") },
		Recommendation{
			Area:   "data_ai",
			Title:  "Move from reports to decisions",
			Detail: "Define a handful of decision metrics and instrument them end to end.",
		}),
	rules.Emit("product_loop_slow",
		func(in auditInput) bool { return in.scores.Product < 50 },
		Recommendation{
			Area:   "product",
			Title:  "Tighten the release loop",
			Detail: "Ship smaller increments on a predictable cadence and review usage after each release.",
		}),
	rules.Emit("ai_pilot_ready",
		func(in auditInput) bool { return in.scores.Engineering >= 70 && in.scores.DataAI >= 70 },
		Recommendation{
			Area:   "data_ai",
			Title:  "Pilot a focused AI use case",
			Detail: "Your delivery and data foundations can support a narrow AI pilot with a clear success metric.",
		}),
}

var auditPainRules = []rules.Rule[auditInput, Recommendation]{
	painRule("slow_releases", Recommendation{
		Area:   "engineering",
		Title:  "Shorten the path to production",
		Detail: "Map the release process, remove manual approvals that add no safety, and release behind feature flags.",
	}),
	painRule("high_incident_load", Recommendation{
		Area:   "engineering",
		Title:  "Stabilise production",
		Detail: "Add alerting on user-facing symptoms and run blameless reviews on the top recurring incidents.",
	}),
	painRule("data_scattered", Recommendation{
		Area:   "data_ai",
		Title:  "Map where your data lives",
		Detail: "Inventory data sources and owners, then pick one system of record per core entity.",
	}),
	painRule("no_visibility", Recommendation{
		Area:   "product",
		Title:  "Add product telemetry",
		Detail: "Track activation and retention events so roadmap decisions rest on usage rather than anecdotes.",
	}),
	painRule("low_confidence_in_metrics", Recommendation{
		Area:   "data_ai",
		Title:  "Establish a trusted metrics layer",
		Detail: "Define each KPI once, in code, with an owner and tests for the pipeline that feeds it.",
	}),
	painRule("manual_processes", Recommendation{
		Area:   "automation",
		Title:  "Automate the most repeated manual task",
		Detail: "Pick the process your team repeats most each week and automate it end to end first.",
	}),
}

func painRule(pain string, rec Recommendation) rules.Rule[auditInput, Recommendation] {
	return rules.Emit("pain_"+pain,
		func(in auditInput) bool { return selected(in.answers.PainPoints, pain) },
		rec)
}

func auditSummary(s AuditScores) string {
	low := minInt(s.Product, s.Engineering, s.DataAI)
	switch {
	case low >= 80:
		return "Foundations are strong in every area."
	case low == s.Engineering:
		return "Engineering foundations are the main constraint right now."
	case low == s.DataAI:
		return "Data and analytics maturity is the main constraint right now."
	default:
		return "Product delivery cadence is the main constraint right now."
	}
}

func containsTitle(recs []Recommendation, title string) bool {
	for _, r := range recs {
		if r.Title == title {
			return true
		}
	}
	return false
}

func auditAnswersFrom(f fields) AuditAnswers {
	return AuditAnswers{
		ProductStage:    f.str("product_stage"),
		ReleaseFreq:     f.str("release_freq"),
		TechStack:       f.str("tech_stack"),
		CICD:            f.boolean("ci_cd"),
		Testing:         f.str("testing"),
		DataCentralized: f.boolean("data_centralized"),
		Analytics:       f.str("analytics"),
		PainPoints:      f.strs("pain_points"),
	}
}
