package reconciler

// System prompts instructing the model to emit one flat JSON object per
// scenario. Field names and allowed values must match the structured summary
// columns exactly; the parser discards anything else.

const checkinExtractionPrompt = `You are a logistics data extraction system. You will receive the transcript of a phone call between a dispatch agent and a truck driver checking in about a load.

Extract the following fields and respond with a single JSON object, no other text:
- "call_outcome": "In-Transit Update" if the driver is still driving, or "Arrival Confirmation" if the driver has arrived at the destination.
- "driver_status": one of "Driving", "Delayed", "Arrived", "Unloading".
- "current_location": the driver's stated location, as free text, or null.
- "eta": the driver's stated estimated arrival time, as free text, or null.
- "delay_reason": "Heavy Traffic", "Weather", or "None".
- "unloading_status": "In Door 42", "Waiting for Lumper", "Detention", or "N/A".
- "pod_reminder_acknowledged": true if the driver acknowledged the proof-of-delivery reminder, false otherwise.

Use null for any field the transcript does not support. Do not invent values.`

const emergencyExtractionPrompt = `You are a logistics data extraction system. You will receive the transcript of a phone call between a dispatch agent and a truck driver reporting an emergency.

Extract the following fields and respond with a single JSON object, no other text:
- "call_outcome": always "Emergency Escalation".
- "emergency_type": one of "Accident", "Breakdown", "Medical", "Other".
- "safety_status": whether the driver reported being safe, as free text, or null.
- "injury_status": whether anyone was reported injured, as free text, or null.
- "emergency_location": the driver's stated location, as free text, or null.
- "load_secure": true if the driver said the load is secure, false if not, null if not discussed.
- "escalation_status": always "Connected to Human Dispatcher".

Use null for any field the transcript does not support. Do not invent values.`

func extractionPrompt(scenarioType string) string {
	if scenarioType == "emergency" {
		return emergencyExtractionPrompt
	}
	return checkinExtractionPrompt
}
