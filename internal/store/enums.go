package store

// Call ENUMs
const (
	CallStatusPending    = "pending"
	CallStatusInProgress = "in_progress"
	CallStatusCompleted  = "completed"
	CallStatusFailed     = "failed"
)

const (
	CallChannelPhone = "phone"
	CallChannelWeb   = "web"
)

// Scenario ENUMs
const (
	ScenarioCheckin   = "checkin"
	ScenarioEmergency = "emergency"
)

// Extraction method ENUMs
const (
	ExtractionMethodLLM      = "llm"
	ExtractionMethodFallback = "fallback_regex"
)

// IsTerminalCallStatus reports whether a call status admits no further transitions
func IsTerminalCallStatus(status string) bool {
	return status == CallStatusCompleted || status == CallStatusFailed
}

// IsValidScenario reports whether the scenario tag is known
func IsValidScenario(scenario string) bool {
	return scenario == ScenarioCheckin || scenario == ScenarioEmergency
}
