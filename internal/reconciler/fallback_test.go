package reconciler

import (
	"testing"

	"dispatch-server/internal/store"
)

func TestFallbackExtract_Checkin(t *testing.T) {
	tests := []struct {
		name         string
		transcript   string
		driverStatus string
		callOutcome  string
		delayReason  string
	}{
		{
			name:         "driving",
			transcript:   "Hey, I'm driving on I-40 right now, should be there by six",
			driverStatus: "Driving",
			callOutcome:  "In-Transit Update",
		},
		{
			name:         "delayed in traffic",
			transcript:   "Running late, traffic is completely backed up near Atlanta",
			driverStatus: "Delayed",
			callOutcome:  "In-Transit Update",
			delayReason:  "Heavy Traffic",
		},
		{
			name:         "delayed by weather",
			transcript:   "I'm stuck, heavy snow on the pass, they closed the road",
			driverStatus: "Delayed",
			callOutcome:  "In-Transit Update",
			delayReason:  "Weather",
		},
		{
			name:         "arrived",
			transcript:   "Just arrived at the receiver, checking in at the gate",
			driverStatus: "Arrived",
			callOutcome:  "Arrival Confirmation",
		},
		{
			name:         "unloading",
			transcript:   "They put me in door 42, waiting on the lumper to finish",
			driverStatus: "Unloading",
			callOutcome:  "Arrival Confirmation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := fallbackExtract(store.ScenarioCheckin, tt.transcript)

			if params.DriverStatus == nil || *params.DriverStatus != tt.driverStatus {
				t.Errorf("driver status: expected %q, got %v", tt.driverStatus, params.DriverStatus)
			}
			if params.CallOutcome == nil || *params.CallOutcome != tt.callOutcome {
				t.Errorf("call outcome: expected %q, got %v", tt.callOutcome, params.CallOutcome)
			}
			if tt.delayReason == "" {
				if params.DelayReason != nil {
					t.Errorf("expected no delay reason, got %q", *params.DelayReason)
				}
			} else if params.DelayReason == nil || *params.DelayReason != tt.delayReason {
				t.Errorf("delay reason: expected %q, got %v", tt.delayReason, params.DelayReason)
			}
		})
	}
}

func TestFallbackExtract_CheckinNoMatch(t *testing.T) {
	params := fallbackExtract(store.ScenarioCheckin, "unintelligible audio")
	if params.DriverStatus != nil {
		t.Errorf("expected no driver status, got %q", *params.DriverStatus)
	}
	if params.CallOutcome != nil {
		t.Errorf("expected no call outcome without a driver status, got %q", *params.CallOutcome)
	}
}

func TestFallbackExtract_PODAcknowledgement(t *testing.T) {
	t.Run("acknowledged", func(t *testing.T) {
		params := fallbackExtract(store.ScenarioCheckin, "Don't forget the POD after unloading. Will do, got it.")
		if params.PODAcknowledged == nil || !*params.PODAcknowledged {
			t.Errorf("expected POD acknowledged, got %v", params.PODAcknowledged)
		}
	})

	t.Run("not mentioned", func(t *testing.T) {
		params := fallbackExtract(store.ScenarioCheckin, "I'm driving, all good")
		if params.PODAcknowledged != nil {
			t.Errorf("expected nil when POD never came up, got %v", *params.PODAcknowledged)
		}
	})
}

func TestFallbackExtract_Emergency(t *testing.T) {
	tests := []struct {
		name          string
		transcript    string
		emergencyType string
	}{
		{"accident", "I just got rear-ended by a four-wheeler on the interstate", "Accident"},
		{"breakdown", "Truck broke down, I think it's the engine", "Breakdown"},
		{"medical", "I'm having chest pain, I need an ambulance", "Medical"},
		{"unclassified", "Something's wrong, I can't explain it", "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := fallbackExtract(store.ScenarioEmergency, tt.transcript)

			if params.EmergencyType == nil || *params.EmergencyType != tt.emergencyType {
				t.Errorf("emergency type: expected %q, got %v", tt.emergencyType, params.EmergencyType)
			}
			if params.CallOutcome == nil || *params.CallOutcome != "Emergency Escalation" {
				t.Errorf("expected Emergency Escalation outcome, got %v", params.CallOutcome)
			}
			if params.EscalationStatus == nil || *params.EscalationStatus != "Connected to Human Dispatcher" {
				t.Errorf("expected escalation status set, got %v", params.EscalationStatus)
			}
		})
	}
}

func TestFillGapsFromTranscript_KeepsModelValues(t *testing.T) {
	status := "Arrived"
	params := store.UpsertStructuredSummaryParams{ScenarioType: store.ScenarioCheckin, DriverStatus: &status}

	fillGapsFromTranscript(&params, "I'm driving on I-40 right now")

	if params.DriverStatus == nil || *params.DriverStatus != "Arrived" {
		t.Errorf("gap fill must not overwrite a set field, got %v", params.DriverStatus)
	}
	if params.CallOutcome == nil || *params.CallOutcome != "Arrival Confirmation" {
		t.Errorf("expected outcome derived from the kept driver status, got %v", params.CallOutcome)
	}
}

func TestFillGapsFromTranscript_NoEmergencyDefaults(t *testing.T) {
	params := store.UpsertStructuredSummaryParams{ScenarioType: store.ScenarioEmergency}

	fillGapsFromTranscript(&params, "Something's wrong, I can't explain it")

	if params.EmergencyType != nil {
		t.Errorf("gap fill must not default the emergency type, got %q", *params.EmergencyType)
	}
	if params.CallOutcome != nil {
		t.Errorf("gap fill must not set an outcome without a matched type, got %q", *params.CallOutcome)
	}
}

func TestFallbackExtract_LoadSecure(t *testing.T) {
	t.Run("secure", func(t *testing.T) {
		params := fallbackExtract(store.ScenarioEmergency, "Broke down but the load is secure")
		if params.LoadSecure == nil || !*params.LoadSecure {
			t.Errorf("expected load secure true, got %v", params.LoadSecure)
		}
	})

	t.Run("shifted", func(t *testing.T) {
		params := fallbackExtract(store.ScenarioEmergency, "We had an accident and the load shifted badly")
		if params.LoadSecure == nil || *params.LoadSecure {
			t.Errorf("expected load secure false, got %v", params.LoadSecure)
		}
	})

	t.Run("not discussed", func(t *testing.T) {
		params := fallbackExtract(store.ScenarioEmergency, "Truck broke down on the shoulder")
		if params.LoadSecure != nil {
			t.Errorf("expected nil when load not discussed, got %v", *params.LoadSecure)
		}
	})
}
