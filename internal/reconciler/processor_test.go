package reconciler

import (
	"context"
	"errors"
	"testing"

	"dispatch-server/internal/observability"
	"dispatch-server/internal/store"
	"dispatch-server/internal/workers"

	"github.com/google/uuid"
)

var errUnexpectedCall = errors.New("unexpected store call")

type fakeSummaryStore struct {
	getCallByID           func(ctx context.Context, id uuid.UUID) (store.Call, error)
	getTranscriptByCallID func(ctx context.Context, callID uuid.UUID) (store.Transcript, error)
	getAgentConfigByID    func(ctx context.Context, id uuid.UUID) (store.AgentConfig, error)
	upsertSummary         func(ctx context.Context, params store.UpsertStructuredSummaryParams) (store.StructuredSummary, error)
}

func (f *fakeSummaryStore) GetCallByID(ctx context.Context, id uuid.UUID) (store.Call, error) {
	if f.getCallByID == nil {
		return store.Call{}, errUnexpectedCall
	}
	return f.getCallByID(ctx, id)
}

func (f *fakeSummaryStore) GetTranscriptByCallID(ctx context.Context, callID uuid.UUID) (store.Transcript, error) {
	if f.getTranscriptByCallID == nil {
		return store.Transcript{}, errUnexpectedCall
	}
	return f.getTranscriptByCallID(ctx, callID)
}

func (f *fakeSummaryStore) GetAgentConfigByID(ctx context.Context, id uuid.UUID) (store.AgentConfig, error) {
	if f.getAgentConfigByID == nil {
		return store.AgentConfig{}, errUnexpectedCall
	}
	return f.getAgentConfigByID(ctx, id)
}

func (f *fakeSummaryStore) UpsertStructuredSummary(ctx context.Context, params store.UpsertStructuredSummaryParams) (store.StructuredSummary, error) {
	if f.upsertSummary == nil {
		return store.StructuredSummary{}, errUnexpectedCall
	}
	return f.upsertSummary(ctx, params)
}

type fakeExtractor struct {
	extract func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

func (f *fakeExtractor) ExtractJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.extract(ctx, systemPrompt, userPrompt)
}

type fakeAlertSender struct {
	sent []store.StructuredSummary
}

func (f *fakeAlertSender) SendEmergencyAlert(_ context.Context, _ store.Call, summary store.StructuredSummary) error {
	f.sent = append(f.sent, summary)
	return nil
}

func completedCall(configID uuid.UUID) store.Call {
	call := store.Call{
		ID:     uuid.New(),
		Status: store.CallStatusCompleted,
	}
	call.AgentConfigID.UUID = configID
	call.AgentConfigID.Valid = true
	return call
}

func checkinConfig() store.AgentConfig {
	return store.AgentConfig{ID: uuid.New(), ScenarioType: store.ScenarioCheckin}
}

func job(callID uuid.UUID) workers.Job {
	return workers.Job{ID: uuid.New(), CallID: callID, Trigger: "call_ended"}
}

func TestProcess_ModelExtraction(t *testing.T) {
	ctx := context.Background()
	config := checkinConfig()
	call := completedCall(config.ID)

	var stored store.UpsertStructuredSummaryParams
	fake := &fakeSummaryStore{
		getCallByID: func(context.Context, uuid.UUID) (store.Call, error) { return call, nil },
		getTranscriptByCallID: func(context.Context, uuid.UUID) (store.Transcript, error) {
			return store.Transcript{CallID: call.ID, RawText: "I'm driving on I-10 near Phoenix, ETA tomorrow 8am"}, nil
		},
		getAgentConfigByID: func(context.Context, uuid.UUID) (store.AgentConfig, error) { return config, nil },
		upsertSummary: func(_ context.Context, params store.UpsertStructuredSummaryParams) (store.StructuredSummary, error) {
			stored = params
			return store.StructuredSummary{CallID: params.CallID, ScenarioType: params.ScenarioType, Partial: params.Partial}, nil
		},
	}
	extractor := &fakeExtractor{
		extract: func(context.Context, string, string) (string, error) {
			return `{
				"call_outcome": "In-Transit Update",
				"driver_status": "Driving",
				"current_location": "I-10 near Phoenix, AZ",
				"eta": "Tomorrow, 8:00 AM",
				"delay_reason": "None",
				"unloading_status": "N/A",
				"pod_reminder_acknowledged": false
			}`, nil
		},
	}

	r := New(fake, extractor, nil, nil, observability.NewLogger())
	if err := r.Process(ctx, job(call.ID)); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if stored.Partial {
		t.Error("expected a complete summary when required fields are extracted")
	}
	if stored.CallOutcome == nil || *stored.CallOutcome != "In-Transit Update" {
		t.Errorf("expected call outcome In-Transit Update, got %v", stored.CallOutcome)
	}
	if stored.DriverStatus == nil || *stored.DriverStatus != "Driving" {
		t.Errorf("expected driver status Driving, got %v", stored.DriverStatus)
	}
	if method, ok := stored.RawExtraction["extraction_method"]; !ok || method != store.ExtractionMethodLLM {
		t.Errorf("expected llm extraction method recorded, got %v", method)
	}
}

func TestProcess_PartialWhenAllRequiredMissing(t *testing.T) {
	ctx := context.Background()
	config := checkinConfig()
	call := completedCall(config.ID)

	var stored store.UpsertStructuredSummaryParams
	fake := &fakeSummaryStore{
		getCallByID: func(context.Context, uuid.UUID) (store.Call, error) { return call, nil },
		getTranscriptByCallID: func(context.Context, uuid.UUID) (store.Transcript, error) {
			return store.Transcript{CallID: call.ID, RawText: "static and silence"}, nil
		},
		getAgentConfigByID: func(context.Context, uuid.UUID) (store.AgentConfig, error) { return config, nil },
		upsertSummary: func(_ context.Context, params store.UpsertStructuredSummaryParams) (store.StructuredSummary, error) {
			stored = params
			return store.StructuredSummary{}, nil
		},
	}
	extractor := &fakeExtractor{
		extract: func(context.Context, string, string) (string, error) {
			// Model could not find the required fields; only free text present
			return `{"call_outcome": null, "driver_status": null, "current_location": "unknown"}`, nil
		},
	}

	r := New(fake, extractor, nil, nil, observability.NewLogger())
	if err := r.Process(ctx, job(call.ID)); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if !stored.Partial {
		t.Error("expected partial summary when every required field is missing")
	}
	if stored.CurrentLocation == nil || *stored.CurrentLocation != "unknown" {
		t.Errorf("expected optional field preserved, got %v", stored.CurrentLocation)
	}
}

func TestProcess_CompleteWhenOneRequiredFieldPresent(t *testing.T) {
	ctx := context.Background()
	config := checkinConfig()
	call := completedCall(config.ID)

	var stored store.UpsertStructuredSummaryParams
	fake := &fakeSummaryStore{
		getCallByID: func(context.Context, uuid.UUID) (store.Call, error) { return call, nil },
		getTranscriptByCallID: func(context.Context, uuid.UUID) (store.Transcript, error) {
			return store.Transcript{CallID: call.ID, RawText: "short call"}, nil
		},
		getAgentConfigByID: func(context.Context, uuid.UUID) (store.AgentConfig, error) { return config, nil },
		upsertSummary: func(_ context.Context, params store.UpsertStructuredSummaryParams) (store.StructuredSummary, error) {
			stored = params
			return store.StructuredSummary{}, nil
		},
	}
	extractor := &fakeExtractor{
		extract: func(context.Context, string, string) (string, error) {
			return `{"driver_status": "Delayed"}`, nil
		},
	}

	r := New(fake, extractor, nil, nil, observability.NewLogger())
	if err := r.Process(ctx, job(call.ID)); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if stored.Partial {
		t.Error("model summaries are partial only when every required field is missing")
	}
}

func TestProcess_FallbackWhenModelUnavailable(t *testing.T) {
	ctx := context.Background()
	config := checkinConfig()
	call := completedCall(config.ID)

	attempts := 0
	var stored store.UpsertStructuredSummaryParams
	fake := &fakeSummaryStore{
		getCallByID: func(context.Context, uuid.UUID) (store.Call, error) { return call, nil },
		getTranscriptByCallID: func(context.Context, uuid.UUID) (store.Transcript, error) {
			return store.Transcript{CallID: call.ID, RawText: "I'm delayed, stuck in heavy traffic outside Dallas"}, nil
		},
		getAgentConfigByID: func(context.Context, uuid.UUID) (store.AgentConfig, error) { return config, nil },
		upsertSummary: func(_ context.Context, params store.UpsertStructuredSummaryParams) (store.StructuredSummary, error) {
			stored = params
			return store.StructuredSummary{}, nil
		},
	}
	extractor := &fakeExtractor{
		extract: func(context.Context, string, string) (string, error) {
			attempts++
			return "", errors.New("openai: service unavailable")
		},
	}

	r := New(fake, extractor, nil, nil, observability.NewLogger())
	if err := r.Process(ctx, job(call.ID)); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if attempts != 2 {
		t.Errorf("expected exactly two model attempts, got %d", attempts)
	}
	if !stored.Partial {
		t.Error("keyword fallback summaries must always be partial")
	}
	if stored.DriverStatus == nil || *stored.DriverStatus != "Delayed" {
		t.Errorf("expected driver status Delayed from keywords, got %v", stored.DriverStatus)
	}
	if stored.DelayReason == nil || *stored.DelayReason != "Heavy Traffic" {
		t.Errorf("expected delay reason Heavy Traffic, got %v", stored.DelayReason)
	}
	if method := stored.RawExtraction["extraction_method"]; method != store.ExtractionMethodFallback {
		t.Errorf("expected fallback extraction method recorded, got %v", method)
	}
}

func TestProcess_ModelGapsFilledFromTranscript(t *testing.T) {
	ctx := context.Background()
	config := checkinConfig()
	call := completedCall(config.ID)

	var stored store.UpsertStructuredSummaryParams
	fake := &fakeSummaryStore{
		getCallByID: func(context.Context, uuid.UUID) (store.Call, error) { return call, nil },
		getTranscriptByCallID: func(context.Context, uuid.UUID) (store.Transcript, error) {
			return store.Transcript{CallID: call.ID, RawText: "I'm stuck in heavy traffic outside Phoenix"}, nil
		},
		getAgentConfigByID: func(context.Context, uuid.UUID) (store.AgentConfig, error) { return config, nil },
		upsertSummary: func(_ context.Context, params store.UpsertStructuredSummaryParams) (store.StructuredSummary, error) {
			stored = params
			return store.StructuredSummary{}, nil
		},
	}
	extractor := &fakeExtractor{
		extract: func(context.Context, string, string) (string, error) {
			// Model answers but leaves the categorical fields empty
			return `{"call_outcome": null, "driver_status": null, "delay_reason": null, "current_location": "outside Phoenix"}`, nil
		},
	}

	r := New(fake, extractor, nil, nil, observability.NewLogger())
	if err := r.Process(ctx, job(call.ID)); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if stored.DriverStatus == nil || *stored.DriverStatus != "Delayed" {
		t.Errorf("expected driver status Delayed filled from transcript keywords, got %v", stored.DriverStatus)
	}
	if stored.DelayReason == nil || *stored.DelayReason != "Heavy Traffic" {
		t.Errorf("expected delay reason Heavy Traffic filled from transcript keywords, got %v", stored.DelayReason)
	}
	if stored.CallOutcome == nil || *stored.CallOutcome != "In-Transit Update" {
		t.Errorf("expected call outcome derived from filled driver status, got %v", stored.CallOutcome)
	}
	if stored.Partial {
		t.Error("expected a complete summary once required fields are filled")
	}
	if method := stored.RawExtraction["extraction_method"]; method != store.ExtractionMethodLLM {
		t.Errorf("keyword gap-fill must not change the extraction method, got %v", method)
	}
}

func TestProcess_SkipRules(t *testing.T) {
	ctx := context.Background()

	t.Run("call that failed in the meantime is skipped", func(t *testing.T) {
		call := store.Call{ID: uuid.New(), Status: store.CallStatusFailed}
		fake := &fakeSummaryStore{
			getCallByID: func(context.Context, uuid.UUID) (store.Call, error) { return call, nil },
		}
		r := New(fake, &fakeExtractor{}, nil, nil, observability.NewLogger())
		if err := r.Process(ctx, job(call.ID)); err != nil {
			t.Fatalf("expected skip without error, got %v", err)
		}
	})

	t.Run("call without transcript is skipped", func(t *testing.T) {
		config := checkinConfig()
		call := completedCall(config.ID)
		fake := &fakeSummaryStore{
			getCallByID: func(context.Context, uuid.UUID) (store.Call, error) { return call, nil },
			getTranscriptByCallID: func(context.Context, uuid.UUID) (store.Transcript, error) {
				return store.Transcript{}, store.ErrNotFound
			},
		}
		r := New(fake, &fakeExtractor{}, nil, nil, observability.NewLogger())
		if err := r.Process(ctx, job(call.ID)); err != nil {
			t.Fatalf("expected skip without error, got %v", err)
		}
	})

	t.Run("unknown call is skipped", func(t *testing.T) {
		fake := &fakeSummaryStore{
			getCallByID: func(context.Context, uuid.UUID) (store.Call, error) {
				return store.Call{}, store.ErrNotFound
			},
		}
		r := New(fake, &fakeExtractor{}, nil, nil, observability.NewLogger())
		if err := r.Process(ctx, job(uuid.New())); err != nil {
			t.Fatalf("expected skip without error, got %v", err)
		}
	})
}

func TestProcess_EmergencyAlert(t *testing.T) {
	ctx := context.Background()
	config := store.AgentConfig{ID: uuid.New(), ScenarioType: store.ScenarioEmergency}
	call := completedCall(config.ID)

	fake := &fakeSummaryStore{
		getCallByID: func(context.Context, uuid.UUID) (store.Call, error) { return call, nil },
		getTranscriptByCallID: func(context.Context, uuid.UUID) (store.Transcript, error) {
			return store.Transcript{CallID: call.ID, RawText: "I blew a tire, I'm safe, load is secure"}, nil
		},
		getAgentConfigByID: func(context.Context, uuid.UUID) (store.AgentConfig, error) { return config, nil },
		upsertSummary: func(_ context.Context, params store.UpsertStructuredSummaryParams) (store.StructuredSummary, error) {
			summary := store.StructuredSummary{CallID: params.CallID, ScenarioType: params.ScenarioType, Partial: params.Partial}
			if params.EmergencyType != nil {
				summary.EmergencyType.String = *params.EmergencyType
				summary.EmergencyType.Valid = true
			}
			return summary, nil
		},
	}
	extractor := &fakeExtractor{
		extract: func(context.Context, string, string) (string, error) {
			return `{
				"call_outcome": "Emergency Escalation",
				"emergency_type": "Breakdown",
				"safety_status": "Driver safe",
				"load_secure": true,
				"escalation_status": "Connected to Human Dispatcher"
			}`, nil
		},
	}
	alerts := &fakeAlertSender{}

	r := New(fake, extractor, alerts, nil, observability.NewLogger())
	if err := r.Process(ctx, job(call.ID)); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if len(alerts.sent) != 1 {
		t.Fatalf("expected one emergency alert, got %d", len(alerts.sent))
	}
	if alerts.sent[0].EmergencyType.String != "Breakdown" {
		t.Errorf("expected Breakdown in the alert, got %q", alerts.sent[0].EmergencyType.String)
	}
}

func TestProcess_InvalidCategoricalValuesDropped(t *testing.T) {
	ctx := context.Background()
	config := checkinConfig()
	call := completedCall(config.ID)

	var stored store.UpsertStructuredSummaryParams
	fake := &fakeSummaryStore{
		getCallByID: func(context.Context, uuid.UUID) (store.Call, error) { return call, nil },
		getTranscriptByCallID: func(context.Context, uuid.UUID) (store.Transcript, error) {
			return store.Transcript{CallID: call.ID, RawText: "on my way"}, nil
		},
		getAgentConfigByID: func(context.Context, uuid.UUID) (store.AgentConfig, error) { return config, nil },
		upsertSummary: func(_ context.Context, params store.UpsertStructuredSummaryParams) (store.StructuredSummary, error) {
			stored = params
			return store.StructuredSummary{}, nil
		},
	}
	extractor := &fakeExtractor{
		extract: func(context.Context, string, string) (string, error) {
			return `{"call_outcome": "In-Transit Update", "driver_status": "Cruising", "delay_reason": "Aliens"}`, nil
		},
	}

	r := New(fake, extractor, nil, nil, observability.NewLogger())
	if err := r.Process(ctx, job(call.ID)); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if stored.DriverStatus != nil {
		t.Errorf("expected invalid driver status dropped, got %v", *stored.DriverStatus)
	}
	if stored.DelayReason != nil {
		t.Errorf("expected invalid delay reason dropped, got %v", *stored.DelayReason)
	}
	if stored.Partial {
		t.Error("call outcome alone keeps the summary complete")
	}
}
