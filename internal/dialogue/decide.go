package dialogue

import (
	"strings"

	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/intent"
	"github.com/ameotech/triage/internal/rules"
)

// turn is everything the decision table looks at.
type turn struct {
	session *domain.Session
	intent  domain.ClassifiedIntent
	text    string
	words   string // normalized, space padded
	page    string
	context Context
}

func (t turn) mentions(terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(t.words, " "+term+" ") {
			return true
		}
	}
	return false
}

// decision is the outcome of one turn.
type decision struct {
	reply   string
	payload domain.Payload
	segment string  // empty keeps the current segment
	stage   *string // nil keeps the current stage
	loops   *int    // nil keeps the clarify loop count
	// escalation names why the visitor was handed off; empty when not.
	escalation string
}

var (
	costTerms = []string{"budget", "how much", "cost", "costs", "price", "pricing", "estimate",
		"rough idea", "ballpark", "money", "quote"}
	techTerms = []string{"net", "dotnet", "react", "vite", "typescript", "javascript", "node", "nodejs",
		"next js", "nextjs", "django", "python", "golang", "go lang", "stack", "tech stack", "frontend",
		"front end", "backend", "back end", "database", "postgres", "kubernetes"}
)

// labSynonyms picks a tool from the message. Earlier entries win.
var labSynonyms = []struct {
	tool  domain.LabTool
	terms []string
}{
	{domain.LabAIReadiness, []string{"ai readiness", "ai ready", "readiness check", "ai check"}},
	{domain.LabArchitectureBlueprint, []string{"blueprint", "architecture", "infrastructure", "infra"}},
	{domain.LabBuildEstimator, []string{"estimator", "estimate", "budget", "timeline", "cost"}},
	{domain.LabAudit, []string{"audit", "health check", "maturity", "assessment"}},
}

// pickLab resolves the tool to open: message synonyms first, then the client
// context, then the page, defaulting to the audit.
func pickLab(t turn) domain.LabTool {
	for _, s := range labSynonyms {
		if t.mentions(s.terms...) {
			return s.tool
		}
	}
	if tool, ok := domain.ParseLabTool(t.context.String("lab_tool")); ok {
		return tool
	}
	if rest, ok := strings.CutPrefix(strings.ToLower(t.page), "/labs/"); ok {
		slug, _, _ := strings.Cut(rest, "/")
		if tool, ok := domain.ParseLabTool(slug); ok {
			return tool
		}
	}
	return domain.LabAudit
}

// decisionTable returns the ordered rules for one manager configuration.
func (m *Manager) decisionTable() []rules.Rule[turn, decision] {
	zero := 0
	menu := domain.OptionsPayload{Options: m.menu}
	escalate := domain.EscalationPayload{
		Link:        m.contactLink(),
		Title:       "Talk to our team",
		Description: "A short note is enough. Someone from Ameotech will reply within one business day.",
		CTALabel:    "Email us",
	}
	handoff := func(reply, reason string) decision {
		return decision{reply: reply, payload: escalate, segment: SegmentHandoff, loops: &zero, escalation: reason}
	}
	message := func(reply, segment string) decision {
		return decision{reply: reply, payload: domain.MessagePayload{}, segment: segment, loops: &zero}
	}

	return []rules.Rule[turn, decision]{
		{Name: "empty_message", Eval: func(t turn) (decision, bool) {
			if t.text != "" {
				return decision{}, false
			}
			if !t.session.HasTurns() {
				return decision{reply: welcomeFor(t.page), payload: domain.MessagePayload{}}, true
			}
			reply := replyReask
			if last, ok := t.session.LastBotTurn(); ok && t.session.LastAction == domain.ActionShowOptions {
				reply = last.Text
			}
			return decision{reply: reply, payload: menu}, true
		}},

		{Name: "request_human", Eval: func(t turn) (decision, bool) {
			if t.intent.Intent != domain.IntentRequestHuman {
				return decision{}, false
			}
			if t.intent.Rule == "sensitive_topic" {
				return handoff(replySensitive, "sensitive_topic"), true
			}
			return handoff(replyHuman, "request_human"), true
		}},

		rules.When("tech_stack_question",
			func(t turn) bool {
				return t.intent.Intent == domain.IntentUnknown && t.mentions(techTerms...)
			},
			func(turn) decision { return message(replyTechStack, "") }),

		{Name: "new_project_continue", Eval: func(t turn) (decision, bool) {
			if t.session.Segment != SegmentNewProject || t.intent.Intent != domain.IntentUnknown {
				return decision{}, false
			}
			return newProjectStep(t, message), true
		}},

		rules.When("existing_system_continue",
			func(t turn) bool {
				return t.session.Segment == SegmentExistingSystem && t.intent.Intent == domain.IntentUnknown
			},
			func(turn) decision { return message(replyExistingDetail, SegmentExistingSystem) }),

		{Name: "low_confidence", Eval: func(t turn) (decision, bool) {
			if t.intent.Confidence >= m.cfg.ClarifyThreshold {
				return decision{}, false
			}
			loops := t.session.ClarifyLoops + 1
			switch {
			case loops >= m.cfg.MaxClarifyLoops:
				return handoff(replyClarifyEscalate, "clarify_loops"), true
			case loops == 2:
				return decision{reply: replyClarifyNarrow, payload: domain.OptionsPayload{Options: narrowMenu}, loops: &loops}, true
			default:
				return decision{reply: replyClarify, payload: menu, loops: &loops}, true
			}
		}},

		{Name: "explore_labs", Eval: func(t turn) (decision, bool) {
			if t.intent.Intent != domain.IntentExploreLabs {
				return decision{}, false
			}
			tool := pickLab(t)
			return decision{reply: labReply(tool), payload: labPayload(tool), segment: SegmentLabs, loops: &zero}, true
		}},

		rules.When("pricing",
			func(t turn) bool { return t.intent.Intent == domain.IntentPricingInquiry },
			func(turn) decision {
				return decision{
					reply:   replyPricing,
					payload: labPayload(domain.LabBuildEstimator),
					segment: SegmentPricing,
					loops:   &zero,
				}
			}),

		rules.When("new_project",
			func(t turn) bool { return t.intent.Intent == domain.IntentStartNewProject },
			func(t turn) decision { return newProjectStep(t, message) }),

		rules.When("existing_system",
			func(t turn) bool { return t.intent.Intent == domain.IntentFixExistingSystem },
			func(t turn) decision {
				if t.session.Segment == SegmentExistingSystem {
					return message(replyExistingDetail, SegmentExistingSystem)
				}
				return message(replyExistingIntro, SegmentExistingSystem)
			}),

		rules.When("data_platform",
			func(t turn) bool { return t.intent.Intent == domain.IntentDataPlatform },
			func(turn) decision { return message(replyDataPlatform, SegmentDataPlatform) }),

		rules.When("careers",
			func(t turn) bool { return t.intent.Intent == domain.IntentExploreCareers },
			func(turn) decision { return message(replyCareers, SegmentCareers) }),

		rules.When("trust_check",
			func(t turn) bool { return t.intent.Intent == domain.IntentTrustCheck },
			func(turn) decision { return message(replyTrust, "") }),

		rules.When("greeting",
			func(t turn) bool { return t.intent.Intent == domain.IntentGreeting },
			func(turn) decision { return message(replyGreeting, "") }),

		{Name: "default", Eval: func(turn) (decision, bool) {
			return message(replyDefault, ""), true
		}},
	}
}

// newProjectStep advances the staged new-project conversation.
func newProjectStep(t turn, message func(reply, segment string) decision) decision {
	if t.mentions(costTerms...) {
		d := message(replyPricing, SegmentNewProject)
		d.payload = labPayload(domain.LabBuildEstimator)
		return d
	}
	if t.mentions(techTerms...) {
		return message(replyTechStack, SegmentNewProject)
	}

	stage := t.session.Stage
	if t.session.Segment != SegmentNewProject {
		stage = ""
	}

	var d decision
	switch stage {
	case "", stageIntro:
		d = message(replyProjectIntro, SegmentNewProject)
		d.stage = domain.Ptr(stageIdea)
	case stageIdea:
		d = message(replyProjectIdea, SegmentNewProject)
		d.stage = domain.Ptr(stageShaping)
	default:
		reply := replyProjectShaping
		if last, ok := t.session.LastBotTurn(); ok && last.Text == replyProjectShaping {
			reply = replyProjectClose
		}
		d = message(reply, SegmentNewProject)
	}
	return d
}

func newTurn(sess *domain.Session, ci domain.ClassifiedIntent, text, page string, ctx Context) turn {
	return turn{
		session: sess,
		intent:  ci,
		text:    text,
		words:   " " + intent.Normalize(text) + " ",
		page:    page,
		context: ctx,
	}
}
