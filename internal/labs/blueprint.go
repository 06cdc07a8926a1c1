package labs

import (
	"slices"

	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/rules"
)

// BlueprintAnswers are the architecture blueprint questionnaire fields.
type BlueprintAnswers struct {
	ProductType    string `json:"product_type"`
	Description    string `json:"description,omitempty"`
	SEONeeded      bool   `json:"seo_needed"`
	ExpectedUsers  string `json:"expected_users"`
	TrafficPattern string `json:"traffic_pattern"`
	DataSize       string `json:"data_size"`
	DataType       string `json:"data_type"`
	Concurrency    string `json:"concurrency"`
	Realtime       string `json:"realtime"`
	MultiTenancy   string `json:"multi_tenancy"`
	Integrations   string `json:"integrations"`
	Compliance     string `json:"compliance"`
	Deployment     string `json:"deployment"`
	Uptime         string `json:"uptime"`
}

// BlueprintScores are the four blueprint dimensions.
type BlueprintScores struct {
	Load     int `json:"load"`
	Data     int `json:"data"`
	Features int `json:"features"`
	Risk     int `json:"risk"`
}

// BlueprintOverview summarizes the tier.
type BlueprintOverview struct {
	Tier         string `json:"tier"`
	Label        string `json:"label"`
	OverallScore int    `json:"overall_score"`
	Description  string `json:"description"`
}

// Infra is the recommended infrastructure shape.
type Infra struct {
	Compute         string `json:"compute"`
	Database        string `json:"database"`
	Caching         string `json:"caching"`
	Queueing        string `json:"queueing"`
	Observability   string `json:"observability"`
	DeploymentModel string `json:"deployment_model"`
}

// BlueprintResult is the output of the architecture blueprint.
type BlueprintResult struct {
	Tier            string            `json:"tier"`
	Overview        BlueprintOverview `json:"overview"`
	Scores          BlueprintScores   `json:"scores"`
	BackendStack    []string          `json:"backend_stack"`
	FrontendStack   []string          `json:"frontend_stack"`
	Infra           Infra             `json:"infra"`
	Risks           []Recommendation  `json:"risks"`
	Roadmap         []string          `json:"roadmap"`
	CostBand        string            `json:"cost_band"`
	Recommendations []Recommendation  `json:"recommendations"`
}

func (BlueprintResult) Tool() domain.LabTool { return domain.LabArchitectureBlueprint }

func (r BlueprintResult) ScoreMap() map[string]int {
	return map[string]int{
		"load":     r.Scores.Load,
		"data":     r.Scores.Data,
		"features": r.Scores.Features,
		"risk":     r.Scores.Risk,
	}
}

// Tiers from simplest to most complex.
const (
	TierA = "A"
	TierB = "B"
	TierC = "C"
	TierD = "D"
)

const (
	blueprintLoadBase     = 10
	blueprintDataBase     = 5
	blueprintFeaturesBase = 10
	blueprintRiskBase     = 10

	blueprintRiskLimit = 5
	blueprintRecLimit  = 4
)

var (
	blueprintUsers        = weights{"<1k": 0, "1k-10k": 15, "10k-100k": 35, "100k-1m": 55, "1m+": 75}
	blueprintTraffic      = weights{"steady": 0, "seasonal": 10, "bursty": 20, "unpredictable": 25}
	blueprintDataSize     = weights{"<5gb": 0, "5-50gb": 10, "50-500gb": 25, "500gb-5tb": 40, "5tb+": 55}
	blueprintDataType     = weights{"transactional": 10, "analytics-heavy": 20, "logs & telemetry": 20, "media files": 15}
	blueprintConcurrency  = weights{"<10": 0, "10-100": 5, "100-500": 15, "500-2000": 25, "2000+": 35}
	blueprintRealtime     = weights{"none": 0, "basic_realtime": 20, "heavy_realtime": 40}
	blueprintTenancy      = weights{"no": 0, "soft_multi_tenant": 15, "hard_multi_tenant": 30}
	blueprintIntegrations = weights{"few": 5, "many": 20, "mission_critical": 30}
	blueprintCompliance   = weights{"none": 0, "gdpr": 15, "soc2": 20, "hipaa": 35, "fintech": 35}
	blueprintDeployment   = weights{"cloud": 0, "hybrid": 15, "on_prem": 20}
	blueprintUptime       = weights{"99%": 0, "99.5%": 10, "99.9%": 20, "99.99%": 35}
)

// RunBlueprint sizes an architecture from load, data, feature and risk answers.
//
// overall = round(0.30*load + 0.25*data + 0.20*features + 0.25*risk).
// Tier breakpoints: A < 30 <= B < 50 <= C < 70 <= D. A risk score >= 75 or a
// load score >= 80 lifts the tier to at least C; both together lift it to D.
func RunBlueprint(a BlueprintAnswers) BlueprintResult {
	s := BlueprintScores{
		Load: clamp(blueprintLoadBase + blueprintUsers.of(a.ExpectedUsers) + blueprintTraffic.of(a.TrafficPattern)),
		Data: clamp(blueprintDataBase + blueprintDataSize.of(a.DataSize) + blueprintDataType.of(a.DataType) +
			blueprintConcurrency.of(a.Concurrency)),
		Features: clamp(blueprintFeaturesBase + blueprintRealtime.of(a.Realtime) + blueprintTenancy.of(a.MultiTenancy) +
			blueprintIntegrations.of(a.Integrations)),
		Risk: clamp(blueprintRiskBase + blueprintCompliance.of(a.Compliance) + blueprintDeployment.of(a.Deployment) +
			blueprintUptime.of(a.Uptime)),
	}
	overall := weightedMean([2]int{s.Load, 30}, [2]int{s.Data, 25}, [2]int{s.Features, 20}, [2]int{s.Risk, 25})
	tier := blueprintTier(overall, s)
	spec := tierSpecs[tier]

	in := blueprintInput{answers: a, scores: s, tier: tier}
	risks := rules.Collect(blueprintRiskRules, in, blueprintRiskLimit)
	if risks == nil {
		risks = []Recommendation{}
	}
	recs := rules.Collect(blueprintRecRules, in, blueprintRecLimit)

	return BlueprintResult{
		Tier: tier,
		Overview: BlueprintOverview{
			Tier:         tier,
			Label:        spec.label,
			OverallScore: overall,
			Description:  spec.description,
		},
		Scores:          s,
		BackendStack:    backendStack(spec, a),
		FrontendStack:   frontendStack(spec, a),
		Infra:           infraFor(spec, a),
		Risks:           risks,
		Roadmap:         slices.Clone(spec.roadmap),
		CostBand:        spec.costBand,
		Recommendations: recs,
	}
}

func blueprintTier(overall int, s BlueprintScores) string {
	tier := TierA
	switch {
	case overall >= 70:
		tier = TierD
	case overall >= 50:
		tier = TierC
	case overall >= 30:
		tier = TierB
	}
	highRisk, highLoad := s.Risk >= 75, s.Load >= 80
	switch {
	case highRisk && highLoad:
		tier = TierD
	case (highRisk || highLoad) && tier < TierC:
		tier = TierC
	}
	return tier
}

type tierSpec struct {
	label       string
	description string
	backend     []string
	frontend    []string
	infra       Infra
	costBand    string
	roadmap     []string
}

var tierSpecs = map[string]tierSpec{
	TierA: {
		label:       "Lean Starter",
		description: "A single deployable application with a managed database covers this stage comfortably.",
		backend:     []string{"Monolith (Node.js or Python)", "REST API", "Managed Postgres"},
		frontend:    []string{"React (Vite)", "Tailwind CSS"},
		infra: Infra{
			Compute:         "Single container on a PaaS",
			Database:        "Managed Postgres",
			Caching:         "Not needed yet",
			Queueing:        "In-process background jobs",
			Observability:   "Hosted error tracking and uptime checks",
			DeploymentModel: "PaaS",
		},
		costBand: "$50-$300 / month",
		roadmap: []string{
			"Ship the core workflow as one application",
			"Add automated backups and error tracking",
			"Revisit the architecture at around 10k users",
		},
	},
	TierB: {
		label:       "Modular Monolith",
		description: "One codebase with clear internal modules, background workers and a cache.",
		backend:     []string{"Modular monolith (Go, Node.js or .NET)", "REST API with background workers", "Postgres"},
		frontend:    []string{"React (Vite)", "Component library"},
		infra: Infra{
			Compute:         "Two or three containers behind a load balancer",
			Database:        "Managed Postgres with a read replica",
			Caching:         "Redis",
			Queueing:        "Managed queue",
			Observability:   "Structured logs, metrics and alerts",
			DeploymentModel: "Managed containers",
		},
		costBand: "$300-$1,500 / month",
		roadmap: []string{
			"Define module boundaries around business capabilities",
			"Move slow work to background workers",
			"Introduce caching on the hottest read paths",
			"Add dashboards and alerts for key user journeys",
		},
	},
	TierC: {
		label:       "Service-Oriented Platform",
		description: "Separately deployable services around core domains, with asynchronous messaging between them.",
		backend:     []string{"Domain services (Go or .NET)", "API gateway", "Postgres per domain", "Event bus"},
		frontend:    []string{"React with server rendering (Next.js)", "Design system"},
		infra: Infra{
			Compute:         "Managed Kubernetes with autoscaling",
			Database:        "Postgres cluster plus an analytics store",
			Caching:         "Redis cluster",
			Queueing:        "Managed streaming (Kafka or equivalent)",
			Observability:   "Tracing, metrics and logs with SLO alerts",
			DeploymentModel: "Managed Kubernetes across availability zones",
		},
		costBand: "$1,500-$8,000 / month",
		roadmap: []string{
			"Carve out the highest-load domain as the first service",
			"Introduce an event bus for cross-domain updates",
			"Set SLOs and error budgets per service",
			"Automate load tests in the delivery pipeline",
		},
	},
	TierD: {
		label:       "Enterprise Distributed Platform",
		description: "A multi-region platform with dedicated data infrastructure, strict controls and high availability.",
		backend: []string{
			"Domain services with clear ownership",
			"API gateway with rate limiting",
			"Event streaming backbone",
			"Dedicated data platform",
		},
		frontend: []string{"Next.js with edge caching", "Design system", "Feature flags"},
		infra: Infra{
			Compute:         "Multi-region Kubernetes",
			Database:        "Replicated Postgres plus a warehouse",
			Caching:         "Redis cluster and CDN",
			Queueing:        "Kafka",
			Observability:   "Full tracing, SLOs, on-call and incident tooling",
			DeploymentModel: "Multi-region, active-active",
		},
		costBand: "$8,000+ / month",
		roadmap: []string{
			"Threat model and compliance controls before the first build",
			"Platform foundations: identity, audit logging, secrets, CI/CD",
			"Core domain services with contract tests",
			"Multi-region failover drills and chaos testing",
			"Data platform for analytics and reporting",
		},
	},
}

func backendStack(spec tierSpec, a BlueprintAnswers) []string {
	out := slices.Clone(spec.backend)
	switch normalize(a.Realtime) {
	case "heavy_realtime":
		out = append(out, "WebSocket gateway")
	case "basic_realtime":
		out = append(out, "Server-sent events for live updates")
	}
	if oneOf(a.DataType, "media files") {
		out = append(out, "Object storage with CDN delivery")
	}
	return out
}

func frontendStack(spec tierSpec, a BlueprintAnswers) []string {
	out := slices.Clone(spec.frontend)
	if a.SEONeeded && out[0] == "React (Vite)" {
		out[0] = "Next.js (server rendering for SEO)"
	}
	if oneOf(a.ProductType, "mobile_app") {
		out = append(out, "React Native")
	}
	return out
}

func infraFor(spec tierSpec, a BlueprintAnswers) Infra {
	inf := spec.infra
	switch normalize(a.Deployment) {
	case "on_prem":
		inf.DeploymentModel = "Self-hosted Kubernetes (on-prem)"
	case "hybrid":
		inf.DeploymentModel = "Hybrid: cloud control plane with on-prem data"
	}
	if oneOf(a.Compliance, "hipaa", "fintech") {
		inf.Observability += ", with immutable audit logs"
	}
	return inf
}

type blueprintInput struct {
	answers BlueprintAnswers
	scores  BlueprintScores
	tier    string
}

var blueprintRiskRules = []rules.Rule[blueprintInput, Recommendation]{
	rules.Emit("regulated_data",
		func(in blueprintInput) bool { return oneOf(in.answers.Compliance, "hipaa", "fintech") },
		Recommendation{
			Area:   "compliance",
			Title:  "Regulated data handling",
			Detail: "Plan audit trails, encryption in transit and at rest, and access reviews from day one.",
		}),
	rules.Emit("privacy_controls",
		func(in blueprintInput) bool { return oneOf(in.answers.Compliance, "gdpr", "soc2") },
		Recommendation{
			Area:   "compliance",
			Title:  "Privacy and control evidence",
			Detail: "Keep data maps, retention rules and change evidence current so audits stay routine.",
		}),
	rules.Emit("four_nines",
		func(in blueprintInput) bool { return oneOf(in.answers.Uptime, "99.99%") },
		Recommendation{
			Area:   "availability",
			Title:  "Four-nines availability",
			Detail: "Requires multi-zone redundancy, automated failover and rehearsed on-call runbooks.",
		}),
	rules.Emit("three_nines",
		func(in blueprintInput) bool { return oneOf(in.answers.Uptime, "99.9%") },
		Recommendation{
			Area:   "availability",
			Title:  "High availability target",
			Detail: "Run at least two instances per service and practise zero-downtime deploys.",
		}),
	rules.Emit("peak_load",
		func(in blueprintInput) bool { return in.scores.Load >= 70 },
		Recommendation{
			Area:   "scalability",
			Title:  "Peak load",
			Detail: "Load test early and plan autoscaling and caching for traffic spikes.",
		}),
	rules.Emit("data_growth",
		func(in blueprintInput) bool { return in.scores.Data >= 70 },
		Recommendation{
			Area:   "data",
			Title:  "Data growth",
			Detail: "Separate analytical from transactional workloads and plan partitioning before tables grow large.",
		}),
	rules.Emit("tenant_isolation",
		func(in blueprintInput) bool { return oneOf(in.answers.MultiTenancy, "hard_multi_tenant") },
		Recommendation{
			Area:   "security",
			Title:  "Tenant isolation",
			Detail: "Enforce isolation at the data layer and test for cross-tenant access in CI.",
		}),
	rules.Emit("critical_integrations",
		func(in blueprintInput) bool { return oneOf(in.answers.Integrations, "mission_critical") },
		Recommendation{
			Area:   "integration",
			Title:  "Critical third-party dependencies",
			Detail: "Wrap each provider behind retries, timeouts and circuit breakers, and monitor them separately.",
		}),
	rules.Emit("self_hosted",
		func(in blueprintInput) bool { return oneOf(in.answers.Deployment, "on_prem", "hybrid") },
		Recommendation{
			Area:   "operations",
			Title:  "Operating outside the public cloud",
			Detail: "Budget for patching, capacity planning and hardware lifecycle that a cloud provider would otherwise cover.",
		}),
}

var blueprintRecRules = []rules.Rule[blueprintInput, Recommendation]{
	rules.Emit("keep_monolith",
		func(in blueprintInput) bool { return in.tier == TierA || in.tier == TierB },
		Recommendation{
			Area:   "architecture",
			Title:  "Stay with a monolith for now",
			Detail: "A well-structured monolith keeps delivery fast. Split services only when a domain outgrows it.",
		}),
	rules.Emit("split_by_domain",
		func(in blueprintInput) bool { return in.tier == TierC || in.tier == TierD },
		Recommendation{
			Area:   "architecture",
			Title:  "Split along domain boundaries",
			Detail: "Give each core domain its own service and data ownership, connected by events.",
		}),
	rules.Emit("seo_rendering",
		func(in blueprintInput) bool { return in.answers.SEONeeded },
		Recommendation{
			Area:   "frontend",
			Title:  "Render public pages on the server",
			Detail: "Server rendering keeps marketing and catalogue pages indexable and fast on first load.",
		}),
	rules.Emit("isolate_realtime",
		func(in blueprintInput) bool { return oneOf(in.answers.Realtime, "heavy_realtime") },
		Recommendation{
			Area:   "backend",
			Title:  "Isolate realtime traffic",
			Detail: "Run long-lived connections on a dedicated gateway so they cannot starve request handling.",
		}),
	rules.Emit("plan_tenancy",
		func(in blueprintInput) bool { return oneOf(in.answers.MultiTenancy, "soft_multi_tenant", "hard_multi_tenant") },
		Recommendation{
			Area:   "data",
			Title:  "Design tenancy into the schema",
			Detail: "Carry a tenant key on every table and query from the start. Retrofitting it later is costly.",
		}),
}

func blueprintAnswersFrom(f fields) BlueprintAnswers {
	return BlueprintAnswers{
		ProductType:    f.str("product_type"),
		Description:    f.str("description"),
		SEONeeded:      f.boolean("seo_needed"),
		ExpectedUsers:  f.str("expected_users"),
		TrafficPattern: f.str("traffic_pattern"),
		DataSize:       f.str("data_size"),
		DataType:       f.str("data_type"),
		Concurrency:    f.str("concurrency"),
		Realtime:       f.str("realtime"),
		MultiTenancy:   f.str("multi_tenancy"),
		Integrations:   f.str("integrations"),
		Compliance:     f.str("compliance"),
		Deployment:     f.str("deployment"),
		Uptime:         f.str("uptime"),
	}
}
