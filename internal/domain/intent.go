package domain

// Intent is a coarse label for what a chat message is trying to accomplish.
type Intent string

const (
	IntentStartNewProject   Intent = "start_new_project"
	IntentFixExistingSystem Intent = "fix_existing_system"
	IntentPricingInquiry    Intent = "pricing_inquiry"
	IntentExploreLabs       Intent = "explore_labs"
	IntentExploreCareers    Intent = "explore_careers"
	IntentRequestHuman      Intent = "request_human"
	IntentDataPlatform      Intent = "data_platform"
	IntentTrustCheck        Intent = "trust_check"
	IntentGreeting          Intent = "greeting"
	IntentUnknown           Intent = "unknown"
)

// KnownIntents lists every intent the classifier can emit.
var KnownIntents = []Intent{
	IntentStartNewProject,
	IntentFixExistingSystem,
	IntentPricingInquiry,
	IntentExploreLabs,
	IntentExploreCareers,
	IntentRequestHuman,
	IntentDataPlatform,
	IntentTrustCheck,
	IntentGreeting,
	IntentUnknown,
}

// ParseIntent returns the intent named by s, or IntentUnknown.
func ParseIntent(s string) (Intent, bool) {
	for _, in := range KnownIntents {
		if string(in) == s {
			return in, true
		}
	}
	return IntentUnknown, false
}

// ClassifiedIntent is the classifier's verdict for one message.
type ClassifiedIntent struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Rule       string  `json:"rule,omitempty"`
}
