package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrVerbRequired   = errors.New("activity: verb is required")
	ErrObjectRequired = errors.New("activity: object type and id are required")
)

// Event describes a change to the model registry. IDs are strings so call
// sites are not tied to a UUID type; sinks parse them as they need.
type Event struct {
	Verb       string
	ActorID    string
	UserID     string
	TenantID   string
	ObjectType string
	ObjectID   string
	Channel    string
	// ModelName and ResourceTypes identify the model source and the types it
	// was bound to or removed from.
	ModelName     string
	ResourceTypes []string
	Metadata      map[string]any
	OccurredAt    time.Time
}

// IsModelEvent reports whether verb belongs to the model lifecycle.
func IsModelEvent(verb string) bool {
	return strings.HasPrefix(strings.TrimSpace(verb), modelVerbPrefix)
}

// Validate reports the first field a sink needs that event lacks. Model
// events are validated after NormalizeEvent fills their object fields.
func (e Event) Validate() error {
	if e.Verb == "" {
		return ErrVerbRequired
	}
	if e.ObjectType == "" || e.ObjectID == "" {
		return fmt.Errorf("%w (verb %s)", ErrObjectRequired, e.Verb)
	}
	return nil
}

// ActivityHook receives normalized events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes event and forwards it to every hook. Invalid events are
// dropped. Hook failures are joined, each tagged with the verb and the
// position of the failing hook.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	normalized := NormalizeEvent(event)
	if normalized.Validate() != nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, fmt.Errorf("activity: %s hook %d: %w", normalized.Verb, i, err))
		}
	}
	return errors.Join(errs...)
}

// NormalizeEvent trims identifiers, cleans the resource types and copies
// every slice and map. Model events get the resource_model object type and
// an object id derived from the model name or its types. A missing timestamp
// is set to now.
func NormalizeEvent(event Event) Event {
	normalized := event
	normalized.Verb = strings.ToLower(strings.TrimSpace(event.Verb))
	normalized.ActorID = strings.TrimSpace(event.ActorID)
	normalized.UserID = strings.TrimSpace(event.UserID)
	normalized.TenantID = strings.TrimSpace(event.TenantID)
	normalized.ObjectType = strings.TrimSpace(event.ObjectType)
	normalized.ObjectID = strings.TrimSpace(event.ObjectID)
	normalized.Channel = strings.TrimSpace(event.Channel)
	normalized.ModelName = strings.TrimSpace(event.ModelName)
	normalized.ResourceTypes = cleanTypes(event.ResourceTypes)
	normalized.Metadata = cloneMap(event.Metadata)

	if IsModelEvent(normalized.Verb) {
		if normalized.ObjectType == "" {
			normalized.ObjectType = ObjectTypeModel
		}
		if normalized.ObjectID == "" {
			normalized.ObjectID = modelObjectID(normalized.ModelName, normalized.ResourceTypes)
		}
	}
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	return normalized
}

// cleanTypes drops blank and repeated types, keeping declaration order.
func cleanTypes(types []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(types))
	for _, resourceType := range types {
		resourceType = strings.TrimSpace(resourceType)
		if resourceType == "" {
			continue
		}
		if _, dup := seen[resourceType]; dup {
			continue
		}
		seen[resourceType] = struct{}{}
		out = append(out, resourceType)
	}
	return out
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
