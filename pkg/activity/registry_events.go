package activity

import (
	"strings"
	"time"
)

const (
	// VerbModelRegistered is emitted after a model source is bound to types.
	VerbModelRegistered = "model.registered"
	// VerbModelUnregistered is emitted after a model source is removed.
	VerbModelUnregistered = "model.unregistered"

	ObjectTypeModel = "resource_model"

	modelVerbPrefix = "model."
)

// ModelEventInput describes the common fields of registry lifecycle events.
type ModelEventInput struct {
	ActorID       string
	TenantID      string
	Channel       string
	ModelName     string
	ResourceTypes []string
	Metadata      map[string]any
	OccurredAt    time.Time
}

// BuildModelRegisteredEvent constructs an event for a registration.
func BuildModelRegisteredEvent(input ModelEventInput) Event {
	return buildModelEvent(VerbModelRegistered, input)
}

// BuildModelUnregisteredEvent constructs an event for an unregistration.
func BuildModelUnregisteredEvent(input ModelEventInput) Event {
	return buildModelEvent(VerbModelUnregistered, input)
}

func buildModelEvent(verb string, input ModelEventInput) Event {
	return NormalizeEvent(Event{
		Verb:          verb,
		ActorID:       input.ActorID,
		TenantID:      input.TenantID,
		Channel:       input.Channel,
		ModelName:     input.ModelName,
		ResourceTypes: input.ResourceTypes,
		Metadata:      input.Metadata,
		OccurredAt:    input.OccurredAt,
	})
}

// modelObjectID names the model by its source name, falling back to the
// types it covers for anonymous sources.
func modelObjectID(name string, types []string) string {
	switch {
	case name != "":
		return name
	case len(types) > 0:
		return strings.Join(types, ",")
	default:
		return ObjectTypeModel
	}
}
