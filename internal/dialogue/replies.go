package dialogue

import (
	"strings"

	"github.com/ameotech/triage/internal/domain"
)

// Segments a conversation can settle into.
const (
	SegmentNewProject     = "new_project"
	SegmentExistingSystem = "existing_system"
	SegmentPricing        = "pricing"
	SegmentLabs           = "labs"
	SegmentDataPlatform   = "data_platform"
	SegmentCareers        = "careers"
	SegmentHandoff        = "handoff"
)

// Stages of the new-project conversation.
const (
	stageIntro   = "intro"
	stageIdea    = "idea"
	stageShaping = "shaping"
)

func supportsHandoff(segment string) bool {
	switch segment {
	case SegmentNewProject, SegmentExistingSystem, SegmentPricing, SegmentHandoff:
		return true
	}
	return false
}

const (
	replyWelcome = "Hi, I'm the Ameotech assistant. I can help you start a new project, " +
		"improve an existing system, get a feel for budgets or try one of our Labs tools. What brings you here?"
	replyWelcomeLabs = "Hi, welcome to Ameotech Labs. Each tool takes a few minutes and gives you " +
		"scores and concrete next steps. Want help picking one, or is there something else on your mind?"
	replyWelcomeCareers = "Hi! Looking at roles at Ameotech? I can point you to open positions, " +
		"or help with a project if that's why you're here."
	replyWelcomePricing = "Hi! Happy to talk budgets. The Build Estimator gives a budget band and timeline " +
		"in a couple of minutes, or tell me what you have in mind."

	replyReask = "Could you tell me a bit more about what you need? These are the things I can help with."

	replyHuman = "I can connect you with someone from Ameotech. " +
		"Would you prefer to send a short note or book a quick call?"
	replySensitive = "This is best handled by a person on our team. " +
		"Please reach out directly and we'll get back to you quickly."
	replyClarifyEscalate = "Let me connect you with someone directly. They can understand the situation faster."

	replyClarify = "To point you in the right direction, are you looking to start a new project, " +
		"fix an existing system, explore careers, or something else related to Ameotech?"
	replyClarifyNarrow = "Got it. Just to avoid guessing: is this mainly about a project, an existing system, or jobs?"

	replyPricing = "We can sketch a budget band, timeline and delivery model based on a few quick questions. " +
		"Do you want to run the Build Estimator?"

	replyProjectIntro = "Great, we can help with new builds. What's the idea or the main workflow you're thinking about?"
	replyProjectIdea  = "Got it. For the first version, what matters most for you right now: " +
		"getting the tech stack right, hitting a specific timeline, or staying within a budget range?"
	replyProjectShaping = "We can either stay high-level here or move into something concrete like a " +
		"rough budget range and timeline. Which would you prefer?"
	replyProjectClose = "If you share your rough timelines and budget range, " +
		"we can suggest how to structure the engagement and what to build first."

	replyTechStack = "A typed backend API (Go, .NET or Node), PostgreSQL as the main database and " +
		"React with Vite and TypeScript on the frontend is a solid setup for modern web and SaaS products. " +
		"We fine-tune it once we know more about scale, integrations and any AI features you have in mind. " +
		"The Architecture Blueprint lab turns those answers into a concrete recommendation."

	replyExistingIntro = "We often help teams fix, stabilise or extend existing systems. " +
		"What seems to be the main issue right now?"
	replyExistingDetail = "Got it. A short description of the stack or the main bottleneck " +
		"will help us point you to next steps. The Readiness Audit is a quick way to get a baseline."

	replyDataPlatform = "We help teams with data engineering, ETL pipelines, warehouses, analytics platforms, " +
		"pricing engines and forecasting. What kind of data problem are you looking to solve?"

	replyCareers = "You can explore open roles on the Careers page. " +
		"If you don't see a match, you can still share your profile."

	replyTrust = "Ameotech focuses on applied AI engineering, pricing engines, forecasting, data platforms and " +
		"automation for SaaS, retail, fintech and enterprise teams. We usually start with a small, scoped " +
		"engagement like a discovery sprint or pilot, so you can evaluate us on real delivery first. " +
		"The case studies on the site show examples of previous work."

	replyGreeting = "Hi there! I can help with new projects, existing systems, pricing, data platforms or careers at Ameotech. " +
		"What would you like to talk about?"

	replyDefault = "I can help with new projects, existing systems, pricing, data platforms or careers at Ameotech."

	replyFallback = "Something went wrong on our side. Please try again in a moment, or email us at %s."
)

var welcomeByPage = []struct {
	prefix string
	reply  string
}{
	{"/labs", replyWelcomeLabs},
	{"/careers", replyWelcomeCareers},
	{"/pricing", replyWelcomePricing},
}

func welcomeFor(page string) string {
	page = strings.ToLower(page)
	for _, w := range welcomeByPage {
		if strings.HasPrefix(page, w.prefix) {
			return w.reply
		}
	}
	return replyWelcome
}

// narrowMenu is offered on the second unclear turn in a row.
var narrowMenu = []domain.Option{
	{Intent: domain.IntentStartNewProject, Label: "Project"},
	{Intent: domain.IntentFixExistingSystem, Label: "Existing system"},
	{Intent: domain.IntentExploreCareers, Label: "Jobs"},
}

var labDescriptions = map[domain.LabTool]string{
	domain.LabAudit:                 "Score your product, engineering and data maturity in about three minutes.",
	domain.LabBuildEstimator:        "Get a budget band, timeline and delivery model from a few questions.",
	domain.LabArchitectureBlueprint: "Get a recommended stack, infrastructure and roadmap for your scale.",
	domain.LabAIReadiness:           "See how ready your data, workflows and team are for AI.",
}

func labPayload(tool domain.LabTool) domain.LabToolPayload {
	return domain.LabToolPayload{
		LabTool:     tool,
		Title:       tool.Title(),
		Description: labDescriptions[tool],
		CTALabel:    "Open " + tool.Title(),
	}
}

func labReply(tool domain.LabTool) string {
	return "The " + tool.Title() + " is a good place to start. " + labDescriptions[tool]
}
