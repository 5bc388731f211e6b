package usersink

import (
	"context"
	"fmt"

	"github.com/goliatone/go-models/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Record data keys carrying the model fields of an event.
const (
	DataModelName     = "model_name"
	DataResourceTypes = "resource_types"
)

// Hook records model registry events in a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify maps event into an ActivityRecord. Events failing validation are
// skipped; identifiers that are not UUIDs are recorded as uuid.Nil.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if normalized.Validate() != nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID),
		UserID:     parseUUID(normalized.UserID),
		TenantID:   parseUUID(normalized.TenantID),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       recordData(normalized),
		OccurredAt: normalized.OccurredAt,
	}
	if err := h.Sink.Log(ctx, record); err != nil {
		return fmt.Errorf("usersink: log %s %s: %w", record.Verb, record.ObjectID, err)
	}
	return nil
}

// recordData merges the event metadata with its model fields. The model
// fields win over metadata keys of the same name.
func recordData(event activity.Event) map[string]any {
	if len(event.Metadata) == 0 && event.ModelName == "" && len(event.ResourceTypes) == 0 {
		return nil
	}
	data := make(map[string]any, len(event.Metadata)+2)
	for key, value := range event.Metadata {
		data[key] = value
	}
	if event.ModelName != "" {
		data[DataModelName] = event.ModelName
	}
	if len(event.ResourceTypes) > 0 {
		data[DataResourceTypes] = append([]string(nil), event.ResourceTypes...)
	}
	return data
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(input)
	if err != nil {
		return uuid.Nil
	}
	return id
}
