package dialogue

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ameotech/triage/internal/domain"
	"github.com/ameotech/triage/internal/labs"
	"github.com/ameotech/triage/internal/rules"
	"github.com/ameotech/triage/internal/session"
)

// MaxNextActions caps the suggestions returned after a lab result.
const MaxNextActions = 2

// LabNextRequest asks what to do after a lab tool finished.
type LabNextRequest struct {
	SessionID string          `json:"session_id"`
	Tool      domain.LabTool  `json:"lab_tool"`
	Result    json.RawMessage `json:"lab_result"`
	Context   Context         `json:"context"`
}

// LabNextResult holds the follow-on suggestions. An empty list is valid.
type LabNextResult struct {
	NextActions []domain.Suggestion `json:"next_actions"`
	BotReply    string              `json:"bot_reply"`
}

// followUp is what a result calls for before filtering tools already run.
type followUp struct {
	escalate bool
	tools    []domain.LabTool
	reply    string
}

var followUpRules = map[domain.LabTool][]rules.Rule[labs.View, followUp]{
	domain.LabAudit: {
		rules.Emit("audit_critical_gap",
			func(v labs.View) bool {
				return min(v.Score("product"), v.Score("engineering"), v.Score("data_ai")) < 30
			},
			followUp{
				escalate: true,
				tools:    []domain.LabTool{domain.LabArchitectureBlueprint},
				reply: "At least one area scored very low. A short call is the fastest way to decide what to " +
					"fix first, and the Architecture Blueprint shows what a sound target looks like.",
			}),
		rules.Emit("audit_foundations_weak",
			func(v labs.View) bool { return v.Score("engineering") < 60 || v.Score("data_ai") < 50 },
			followUp{
				tools: []domain.LabTool{domain.LabArchitectureBlueprint},
				reply: "Your engineering or data foundations need some work. " +
					"The Architecture Blueprint maps out the target setup for your scale.",
			}),
		rules.Emit("audit_healthy",
			func(labs.View) bool { return true },
			followUp{
				tools: []domain.LabTool{domain.LabBuildEstimator},
				reply: "Your foundations look solid. The Build Estimator can size the next initiative.",
			}),
	},
	domain.LabBuildEstimator: {
		rules.Emit("estimator_urgent_funded",
			func(v labs.View) bool { return v.Score("urgency") >= 80 && v.Score("budget") >= 75 },
			followUp{
				escalate: true,
				reply:    "You have a tight timeline and a budget to match. Let's get you talking to the team this week.",
			}),
		rules.Emit("estimator_default",
			func(labs.View) bool { return true },
			followUp{
				tools: []domain.LabTool{domain.LabArchitectureBlueprint},
				reply: "Next, the Architecture Blueprint turns this scope into a recommended stack and roadmap.",
			}),
	},
	domain.LabArchitectureBlueprint: {
		rules.Emit("blueprint_high_risk",
			func(v labs.View) bool { return v.Tier == labs.TierD || v.Score("risk") >= 75 },
			followUp{
				escalate: true,
				reply: "This is a demanding architecture with real risk attached. " +
					"It's worth reviewing it with one of our architects.",
			}),
		rules.Emit("blueprint_default",
			func(labs.View) bool { return true },
			followUp{
				tools: []domain.LabTool{domain.LabBuildEstimator},
				reply: "With the architecture sketched, the Build Estimator gives a budget band and timeline.",
			}),
	},
	domain.LabAIReadiness: {
		rules.Emit("readiness_scale_ready",
			func(v labs.View) bool { return v.Score("score") >= 75 && v.Score("constraints") >= 70 },
			followUp{
				escalate: true,
				reply:    "You're ready to move on AI. Let's talk about a first production use case.",
			}),
		rules.Emit("readiness_foundations",
			func(v labs.View) bool { return v.Score("score") < 60 },
			followUp{
				tools: []domain.LabTool{domain.LabArchitectureBlueprint},
				reply: "A few foundations come first. The Architecture Blueprint shows the data and platform setup AI needs.",
			}),
		rules.Emit("readiness_pilot",
			func(labs.View) bool { return true },
			followUp{
				tools: []domain.LabTool{domain.LabBuildEstimator},
				reply: "You're in a good spot for a pilot. The Build Estimator sizes a first engagement.",
			}),
	},
}

const replyAllLabsDone = "You've covered the labs that fit this result. Reach out whenever you want to go deeper."

// Suggest proposes up to MaxNextActions follow-ons for a lab result, skipping
// tools in alreadyRun. It is pure.
func Suggest(v labs.View, alreadyRun []domain.LabTool, contactEmail string) LabNextResult {
	res := LabNextResult{NextActions: []domain.Suggestion{}}

	f, ok := pickFollowUp(v)
	if !ok {
		res.BotReply = replyAllLabsDone
		return res
	}

	if f.escalate {
		res.NextActions = append(res.NextActions, domain.NewSuggestion("Talk to our team", domain.EscalationPayload{
			Link:     "mailto:" + contactEmail,
			Title:    "Talk to our team",
			CTALabel: "Email us",
		}))
	}
	for _, tool := range f.tools {
		if len(res.NextActions) >= MaxNextActions {
			break
		}
		if tool == v.Tool || containsTool(alreadyRun, tool) {
			continue
		}
		res.NextActions = append(res.NextActions, domain.NewSuggestion("Try the "+tool.Title(), labPayload(tool)))
	}

	res.BotReply = f.reply
	if len(res.NextActions) == 0 {
		res.BotReply = replyAllLabsDone
	}
	return res
}

// pickFollowUp returns the first matching follow-up. A result without scores
// carries no signal, so it never escalates.
func pickFollowUp(v labs.View) (followUp, bool) {
	for _, r := range followUpRules[v.Tool] {
		f, ok := r.Eval(v)
		if ok && !(f.escalate && v.Empty()) {
			return f, true
		}
	}
	return followUp{}, false
}

func containsTool(ts []domain.LabTool, t domain.LabTool) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}

// ErrUnknownTool is returned for lab-next requests naming no known tool.
var ErrUnknownTool = errors.New("unknown lab tool")

// LabNext records the lab run on the session, when one is given, and returns
// suggestions. Only a malformed request is an error; store failures are logged
// and the suggestions are computed without session history.
func (m *Manager) LabNext(ctx context.Context, req LabNextRequest) (LabNextResult, error) {
	tool, ok := domain.ParseLabTool(string(req.Tool))
	if !ok {
		return LabNextResult{}, ErrUnknownTool
	}
	v, err := labs.ParseView(tool, req.Result)
	if err != nil {
		return LabNextResult{}, err
	}

	res := Suggest(v, m.recordRun(ctx, req.SessionID, tool), m.cfg.ContactEmail)
	m.logger.Debug("Lab next computed", "session_id", req.SessionID, "lab_tool", tool, "suggestions", len(res.NextActions))
	return res, nil
}

// NextFor computes suggestions for a result produced in process.
func (m *Manager) NextFor(ctx context.Context, sessionID string, r labs.Result) LabNextResult {
	return Suggest(labs.ViewOf(r), m.recordRun(ctx, sessionID, r.Tool()), m.cfg.ContactEmail)
}

// recordRun adds tool to the session's lab runs and returns them. Unknown
// sessions are not created.
func (m *Manager) recordRun(ctx context.Context, sessionID string, tool domain.LabTool) []domain.LabTool {
	if !session.ValidID(sessionID) {
		return nil
	}
	sess, err := m.store.UpdateMeta(ctx, sessionID, domain.MetaUpdate{LabRun: tool})
	switch {
	case err == nil:
		return sess.LabsRun
	case errors.Is(err, session.ErrNotFound):
	default:
		m.logger.Warn("Failed to record lab run", "session_id", sessionID, "lab_tool", tool, "error", err)
	}
	return nil
}
