package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "models"

// Config controls activity emission. ActorID and TenantID attribute events
// raised without them, typically the service that bootstraps the registry.
// Verbs, when set, restricts emission to the listed verbs.
type Config struct {
	Enabled  bool
	Channel  string
	ActorID  string
	TenantID string
	Verbs    []string
}

// Emitter forwards registry events to hooks after applying its defaults.
// A nil Emitter is valid and disabled.
type Emitter struct {
	hooks    Hooks
	enabled  bool
	channel  string
	actorID  string
	tenantID string
	verbs    map[string]struct{}
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	var verbs map[string]struct{}
	for _, verb := range cfg.Verbs {
		if verb = strings.ToLower(strings.TrimSpace(verb)); verb != "" {
			if verbs == nil {
				verbs = map[string]struct{}{}
			}
			verbs[verb] = struct{}{}
		}
	}
	live := liveHooks(hooks)
	return &Emitter{
		hooks:    live,
		enabled:  cfg.Enabled && len(live) > 0,
		channel:  channel,
		actorID:  strings.TrimSpace(cfg.ActorID),
		tenantID: strings.TrimSpace(cfg.TenantID),
		verbs:    verbs,
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emits reports whether an event with verb would reach the hooks.
func (e *Emitter) Emits(verb string) bool {
	if !e.Enabled() {
		return false
	}
	if e.verbs == nil {
		return true
	}
	_, ok := e.verbs[strings.ToLower(strings.TrimSpace(verb))]
	return ok
}

// Emit fills the channel, actor and tenant the event lacks and forwards it.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Emits(event.Verb) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if strings.TrimSpace(event.ActorID) == "" {
		event.ActorID = e.actorID
	}
	if strings.TrimSpace(event.TenantID) == "" {
		event.TenantID = e.tenantID
	}
	return e.hooks.Notify(ctx, event)
}

func liveHooks(hooks Hooks) Hooks {
	var live Hooks
	for _, hook := range hooks {
		if hook != nil {
			live = append(live, hook)
		}
	}
	return live
}
