package models

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// TestResolveMemoizesEveryOutcome checks that, whatever the number of sources
// bound at the most specific level, repeated resolutions consult the registry
// and the mapper at most once per key and only a single candidate resolves.
func TestResolveMemoizesEveryOutcome(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		registry := NewTypeRegistry(NewTypeHierarchy())
		counting := &countingRegistry{inner: registry}
		mapper := &countingMapper{}
		caches := NewSessionCaches()
		session := caches.Open()
		defer session.Close()

		resolver, err := NewResolver(counting, mapper, caches)
		if err != nil {
			rt.Fatalf("new resolver: %v", err)
		}

		sources := rapid.IntRange(0, 4).Draw(rt, "sources")
		for i := 0; i < sources; i++ {
			if err := registry.Register(SourceFor[article](fmt.Sprintf("model-%d", i)), "app/article"); err != nil {
				rt.Fatalf("register: %v", err)
			}
		}
		repeats := rapid.IntRange(1, 5).Draw(rt, "repeats")
		res := session.Resource("/content/a", "app/article", nil)

		for i := 0; i < repeats; i++ {
			model, ok, err := resolver.ResolveMostSpecific(res)
			if err != nil {
				rt.Fatalf("resolve: %v", err)
			}
			if ok != (sources == 1) {
				rt.Fatalf("sources=%d: expected ok=%v, got %v", sources, sources == 1, ok)
			}
			if ok && model == nil {
				rt.Fatalf("expected a model")
			}
		}
		if calls := counting.unnamed.Load(); calls != 1 {
			rt.Fatalf("expected one registry lookup, got %d", calls)
		}
		if calls := mapper.calls.Load(); calls > 1 {
			rt.Fatalf("expected at most one mapping, got %d", calls)
		}
		wantState := EntryNegative
		if sources == 1 {
			wantState = EntryPositive
		}
		if state := caches.Lookup(res, ResolutionKey{Mode: ModeExcludingBaseTypes}).State(); state != wantState {
			rt.Fatalf("expected %s entry, got %s", wantState, state)
		}
	})
}

// TestResolvePicksNearestRegisteredAncestor builds a linear chain and binds one
// source at a random depth; resolution must pick it regardless of the bindings
// made further up the chain.
func TestResolvePicksNearestRegisteredAncestor(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		depth := rapid.IntRange(1, 6).Draw(rt, "depth")
		h := NewTypeHierarchy()
		types := make([]string, depth)
		for i := range types {
			types[i] = fmt.Sprintf("app/level-%d", i)
		}
		for i := 0; i+1 < depth; i++ {
			if err := h.Declare(types[i], types[i+1]); err != nil {
				rt.Fatalf("declare: %v", err)
			}
		}
		registry := NewTypeRegistry(h)
		nearest := rapid.IntRange(0, depth-1).Draw(rt, "nearest")
		want := SourceFor[article]("nearest")
		if err := registry.Register(want, types[nearest]); err != nil {
			rt.Fatalf("register: %v", err)
		}
		for i := nearest + 1; i < depth; i++ {
			if err := registry.Register(SourceFor[teaser](fmt.Sprintf("far-%d", i)), types[i]); err != nil {
				rt.Fatalf("register: %v", err)
			}
		}

		got := registry.LookupCandidates(types[0])
		if len(got) != 1 || got[0].Source != want || got[0].ResourceType != types[nearest] {
			rt.Fatalf("expected %s at %s, got %v", want, types[nearest], got)
		}
	})
}
