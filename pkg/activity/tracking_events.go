package activity

import "strings"

const (
	VerbApplied   = "tracking.applied"
	VerbPersisted = "tracking.persisted"
	VerbCleared   = "tracking.cleared"

	ObjectTypeTarget = "tracking.target"
)

// TrackingEventInput describes the outcome of one apply, persist or clear
// pass over a tracked target.
type TrackingEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	ObjectID   string
	Channel    string
	TypeName   string
	Key        string
	Tracker    string
	Properties []string
	Completed  []string
	Defaulted  []string
	Vetoed     []string
	Failed     []string
	Metadata   map[string]any
}

// BuildAppliedEvent constructs the event emitted after an apply pass.
func BuildAppliedEvent(input TrackingEventInput) Event {
	return buildTrackingEvent(VerbApplied, input)
}

// BuildPersistedEvent constructs the event emitted after a persist pass.
func BuildPersistedEvent(input TrackingEventInput) Event {
	return buildTrackingEvent(VerbPersisted, input)
}

// BuildClearedEvent constructs the event emitted after saved state was cleared.
func BuildClearedEvent(input TrackingEventInput) Event {
	return buildTrackingEvent(VerbCleared, input)
}

func buildTrackingEvent(verb string, input TrackingEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	if input.TypeName != "" {
		metadata["type"] = input.TypeName
	}
	if input.Key != "" {
		metadata["key"] = input.Key
	}
	if input.Tracker != "" {
		metadata["tracker"] = input.Tracker
	}
	setList(metadata, "properties", input.Properties)
	setList(metadata, "completed", input.Completed)
	setList(metadata, "defaulted", input.Defaulted)
	setList(metadata, "vetoed", input.Vetoed)
	setList(metadata, "failed", input.Failed)

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.TypeName + "_" + input.Key)
	}
	if objectID == "" || objectID == "_" {
		objectID = ObjectTypeTarget
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeTarget,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
	}
}

func setList(metadata map[string]any, key string, values []string) {
	if len(values) == 0 {
		return
	}
	metadata[key] = append([]string{}, values...)
}
