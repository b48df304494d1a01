package types

// EventType is the coarse category of an event.
type EventType = string

// Well-known event types. Callers may use any non-empty string.
const (
	EventTypeUserAcquisition EventType = "user_acquisition"
	EventTypeConversion      EventType = "conversion"
	EventTypeEngagement      EventType = "engagement"
	EventTypeChurn           EventType = "churn"
	EventTypeSupport         EventType = "support"
	EventTypeFeedback        EventType = "feedback"
	EventTypeMarketing       EventType = "marketing"
	EventTypePerformance     EventType = "performance"
	EventTypeSettingsChange  EventType = "settings_change"
	EventTypeStatistics      EventType = "statistics"
)

// KnownEventTypes lists the well-known event types in declaration order.
var KnownEventTypes = []EventType{
	EventTypeUserAcquisition,
	EventTypeConversion,
	EventTypeEngagement,
	EventTypeChurn,
	EventTypeSupport,
	EventTypeFeedback,
	EventTypeMarketing,
	EventTypePerformance,
	EventTypeSettingsChange,
	EventTypeStatistics,
}

// IsKnownEventType reports whether t is one of the well-known event types.
func IsKnownEventType(t string) bool {
	for _, known := range KnownEventTypes {
		if known == t {
			return true
		}
	}
	return false
}
