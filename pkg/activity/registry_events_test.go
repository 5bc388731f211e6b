package activity

import (
	"reflect"
	"testing"
	"time"
)

func TestBuildModelRegisteredEventIncludesTypes(t *testing.T) {
	meta := map[string]any{"origin": "bootstrap"}
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	event := BuildModelRegisteredEvent(ModelEventInput{
		ActorID:       " deployer ",
		ModelName:     " article ",
		ResourceTypes: []string{"app/article", " ", "app/page "},
		Metadata:      meta,
		OccurredAt:    at,
	})

	if event.Verb != VerbModelRegistered {
		t.Fatalf("expected verb %s got %s", VerbModelRegistered, event.Verb)
	}
	if event.ObjectType != ObjectTypeModel || event.ObjectID != "article" || event.ModelName != "article" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.ActorID != "deployer" {
		t.Fatalf("expected trimmed actor, got %q", event.ActorID)
	}
	if !reflect.DeepEqual(event.ResourceTypes, []string{"app/article", "app/page"}) {
		t.Fatalf("expected cleaned resource types, got %v", event.ResourceTypes)
	}
	if _, ok := event.Metadata["resource_types"]; ok {
		t.Fatalf("expected resource types outside metadata, got %v", event.Metadata)
	}
	event.Metadata["origin"] = "changed"
	if meta["origin"] != "bootstrap" {
		t.Fatalf("expected input metadata untouched")
	}
	if !event.OccurredAt.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", event.OccurredAt)
	}
	if err := event.Validate(); err != nil {
		t.Fatalf("expected built event to be valid, got %v", err)
	}
}

func TestBuildModelUnregisteredEventFallsBackToTypes(t *testing.T) {
	event := BuildModelUnregisteredEvent(ModelEventInput{
		ResourceTypes: []string{"app/teaser", "app/card"},
	})

	if event.Verb != VerbModelUnregistered {
		t.Fatalf("expected verb %s got %s", VerbModelUnregistered, event.Verb)
	}
	if event.ObjectID != "app/teaser,app/card" {
		t.Fatalf("expected object id from types, got %q", event.ObjectID)
	}
	if event.ModelName != "" {
		t.Fatalf("expected no model name for unnamed model")
	}
}

func TestBuildModelEventDefaultsObjectID(t *testing.T) {
	event := BuildModelRegisteredEvent(ModelEventInput{})
	if event.ObjectID != ObjectTypeModel {
		t.Fatalf("expected fallback object id, got %q", event.ObjectID)
	}
	if event.Metadata != nil || event.ResourceTypes != nil {
		t.Fatalf("expected nil metadata and types, got %+v", event)
	}
	if event.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}

func TestIsModelEvent(t *testing.T) {
	for verb, want := range map[string]bool{
		VerbModelRegistered:   true,
		" model.unregistered": true,
		"session.closed":      false,
		"":                    false,
	} {
		if got := IsModelEvent(verb); got != want {
			t.Fatalf("IsModelEvent(%q) = %v, want %v", verb, got, want)
		}
	}
}
