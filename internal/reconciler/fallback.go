package reconciler

import (
	"regexp"

	"dispatch-server/internal/store"
)

// Deterministic keyword extraction over the raw transcript, used when the
// language model is unavailable or returns unusable output. Patterns are
// ordered; the first match wins.

type patternRule struct {
	pattern *regexp.Regexp
	value   string
}

var driverStatusRules = []patternRule{
	{regexp.MustCompile(`(?i)\b(unload|lumper|door\s+\d+|detention)`), "Unloading"},
	{regexp.MustCompile(`(?i)\b(arrived|at the (dock|receiver|delivery)|i'?m here)\b`), "Arrived"},
	{regexp.MustCompile(`(?i)\b(delay|delayed|running late|behind schedule|stuck)\b`), "Delayed"},
	{regexp.MustCompile(`(?i)\b(driving|on the road|en route|heading|rolling|on (i-|highway|route))\b`), "Driving"},
}

var emergencyTypeRules = []patternRule{
	{regexp.MustCompile(`(?i)\b(accident|crash|collision|rear.?ended|hit (a|another))\b`), "Accident"},
	{regexp.MustCompile(`(?i)\b(breakdown|broke down|blowout|blew a tire|flat tire|engine|won'?t start|mechanical)\b`), "Breakdown"},
	{regexp.MustCompile(`(?i)\b(medical|chest pain|heart|dizzy|passed out|ambulance|hurt|injur)`), "Medical"},
}

var delayReasonRules = []patternRule{
	{regexp.MustCompile(`(?i)\b(traffic|congestion|backed up|gridlock)\b`), "Heavy Traffic"},
	{regexp.MustCompile(`(?i)\b(weather|rain|snow|ice|storm|fog|wind)\b`), "Weather"},
}

var (
	loadSecureYesPattern = regexp.MustCompile(`(?i)\bload is (secure|fine|okay|good|intact)\b`)
	loadSecureNoPattern  = regexp.MustCompile(`(?i)\b(load (shifted|spilled|is not secure)|lost (the |part of the )?load)\b`)
	podPattern           = regexp.MustCompile(`(?i)\b(pod|proof of delivery|paperwork|bill of lading)\b`)
	acknowledgePattern   = regexp.MustCompile(`(?i)\b(will do|got it|understood|yes|yeah|sure|okay|of course|absolutely)\b`)
)

func matchFirst(rules []patternRule, text string) *string {
	for _, rule := range rules {
		if rule.pattern.MatchString(text) {
			value := rule.value
			return &value
		}
	}
	return nil
}

// fillGapsFromTranscript fills categorical fields that are still unset with
// transcript keyword matches. Only genuine matches are written; the defaults
// the pure-keyword path applies (such as Other) stay out of model-backed
// summaries. Free-text fields (locations, ETA, safety details) are never
// touched; keywords cannot recover them reliably.
func fillGapsFromTranscript(params *store.UpsertStructuredSummaryParams, transcript string) {
	if params.ScenarioType == store.ScenarioEmergency {
		if params.EmergencyType == nil {
			params.EmergencyType = matchFirst(emergencyTypeRules, transcript)
		}
		if params.CallOutcome == nil && params.EmergencyType != nil {
			outcome := "Emergency Escalation"
			params.CallOutcome = &outcome
		}
		if params.LoadSecure == nil {
			params.LoadSecure = extractLoadSecure(transcript)
		}
		return
	}

	if params.DriverStatus == nil {
		params.DriverStatus = matchFirst(driverStatusRules, transcript)
	}
	if params.CallOutcome == nil && params.DriverStatus != nil {
		outcome := "In-Transit Update"
		if *params.DriverStatus == "Arrived" || *params.DriverStatus == "Unloading" {
			outcome = "Arrival Confirmation"
		}
		params.CallOutcome = &outcome
	}
	if params.DelayReason == nil {
		params.DelayReason = matchFirst(delayReasonRules, transcript)
	}
	if params.PODAcknowledged == nil {
		params.PODAcknowledged = extractPODAcknowledged(transcript)
	}
}

// fallbackExtract builds a summary from transcript keywords alone, used when
// the model is unavailable. Emergency summaries always carry an outcome, an
// escalation status and an emergency type, defaulting to Other when no
// keyword matches.
func fallbackExtract(scenarioType, transcript string) store.UpsertStructuredSummaryParams {
	params := store.UpsertStructuredSummaryParams{ScenarioType: scenarioType}
	fillGapsFromTranscript(&params, transcript)

	if scenarioType == store.ScenarioEmergency {
		if params.CallOutcome == nil {
			outcome := "Emergency Escalation"
			params.CallOutcome = &outcome
		}
		if params.EmergencyType == nil {
			other := "Other"
			params.EmergencyType = &other
		}
		escalation := "Connected to Human Dispatcher"
		params.EscalationStatus = &escalation
	}
	return params
}

func extractLoadSecure(transcript string) *bool {
	if loadSecureNoPattern.MatchString(transcript) {
		secure := false
		return &secure
	}
	if loadSecureYesPattern.MatchString(transcript) {
		secure := true
		return &secure
	}
	return nil
}

func extractPODAcknowledged(transcript string) *bool {
	if !podPattern.MatchString(transcript) {
		return nil
	}
	acknowledged := acknowledgePattern.MatchString(transcript)
	return &acknowledged
}
