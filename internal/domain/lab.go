package domain

import "strings"

// LabTool names one of the four diagnostic tools.
type LabTool string

const (
	LabAudit                 LabTool = "audit"
	LabBuildEstimator        LabTool = "build_estimator"
	LabArchitectureBlueprint LabTool = "architecture_blueprint"
	LabAIReadiness           LabTool = "ai_readiness"
)

// LabTools lists the tools in the order they are offered.
var LabTools = []LabTool{LabAudit, LabBuildEstimator, LabArchitectureBlueprint, LabAIReadiness}

// ParseLabTool accepts both identifier ("build_estimator") and URL slug ("build-estimator") forms.
func ParseLabTool(s string) (LabTool, bool) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, t := range LabTools {
		if string(t) == norm {
			return t, true
		}
	}
	return "", false
}

// Slug returns the URL path segment for the tool.
func (t LabTool) Slug() string {
	return strings.ReplaceAll(string(t), "_", "-")
}

// Title returns the human-readable tool name.
func (t LabTool) Title() string {
	switch t {
	case LabAudit:
		return "Readiness Audit"
	case LabBuildEstimator:
		return "Build Estimator"
	case LabArchitectureBlueprint:
		return "Architecture Blueprint"
	case LabAIReadiness:
		return "AI Readiness Check"
	default:
		return string(t)
	}
}
