package livefeed

import (
	"sync"
	"time"

	"dispatch-server/internal/store"

	"github.com/google/uuid"
)

// Event is one live feed message pushed to watchers of a call
type Event struct {
	Type      string      `json:"type"`
	CallID    uuid.UUID   `json:"call_id"`
	Status    string      `json:"status,omitempty"`
	Summary   interface{} `json:"summary,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Event types pushed to watchers
const (
	EventTypeStatus  = "call_status"
	EventTypeSummary = "summary"
)

// subscriber receives events for one call. The channel is buffered; a
// subscriber that falls behind loses events rather than blocking publishers.
type subscriber struct {
	events chan Event
}

// Hub fans call updates out to websocket watchers. Publishing never blocks:
// webhook and reconciler paths must not stall on a slow client.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[*subscriber]struct{}
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]map[*subscriber]struct{}),
	}
}

// Subscribe registers a watcher for a call. The returned channel delivers
// events until unsubscribe is called.
func (h *Hub) Subscribe(callID uuid.UUID) (<-chan Event, func()) {
	sub := &subscriber{events: make(chan Event, 16)}

	h.mu.Lock()
	subs, ok := h.subscribers[callID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.subscribers[callID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if subs, ok := h.subscribers[callID]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.subscribers, callID)
			}
		}
		h.mu.Unlock()
	}
	return sub.events, unsubscribe
}

// PublishCallStatus pushes a status change to watchers of the call
func (h *Hub) PublishCallStatus(callID uuid.UUID, status string) {
	h.publish(callID, Event{
		Type:      EventTypeStatus,
		CallID:    callID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}

// PublishSummary pushes an extraction result to watchers of the call
func (h *Hub) PublishSummary(callID uuid.UUID, summary store.StructuredSummary) {
	h.publish(callID, Event{
		Type:      EventTypeSummary,
		CallID:    callID,
		Summary:   summaryPayload(summary),
		Timestamp: time.Now().UTC(),
	})
}

func (h *Hub) publish(callID uuid.UUID, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[callID] {
		select {
		case sub.events <- event:
		default:
			// Watcher is not keeping up; drop the event
		}
	}
}

// summaryPayload flattens the nullable summary columns into a JSON-friendly map
func summaryPayload(summary store.StructuredSummary) map[string]interface{} {
	payload := map[string]interface{}{
		"scenario_type": summary.ScenarioType,
		"partial":       summary.Partial,
	}
	setIfValid := func(key string, value interface{}, valid bool) {
		if valid {
			payload[key] = value
		}
	}
	setIfValid("call_outcome", summary.CallOutcome.String, summary.CallOutcome.Valid)
	setIfValid("driver_status", summary.DriverStatus.String, summary.DriverStatus.Valid)
	setIfValid("current_location", summary.CurrentLocation.String, summary.CurrentLocation.Valid)
	setIfValid("eta", summary.ETA.String, summary.ETA.Valid)
	setIfValid("delay_reason", summary.DelayReason.String, summary.DelayReason.Valid)
	setIfValid("unloading_status", summary.UnloadingStatus.String, summary.UnloadingStatus.Valid)
	setIfValid("pod_reminder_acknowledged", summary.PODAcknowledged.Bool, summary.PODAcknowledged.Valid)
	setIfValid("emergency_type", summary.EmergencyType.String, summary.EmergencyType.Valid)
	setIfValid("safety_status", summary.SafetyStatus.String, summary.SafetyStatus.Valid)
	setIfValid("injury_status", summary.InjuryStatus.String, summary.InjuryStatus.Valid)
	setIfValid("emergency_location", summary.EmergencyLoc.String, summary.EmergencyLoc.Valid)
	setIfValid("load_secure", summary.LoadSecure.Bool, summary.LoadSecure.Valid)
	setIfValid("escalation_status", summary.EscalationStatus.String, summary.EscalationStatus.Valid)
	return payload
}
