package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEntryStates(t *testing.T) {
	model, ok := Absent().Model()
	require.False(t, ok)
	require.Nil(t, model)
	require.Equal(t, EntryAbsent, Absent().State())

	model, ok = Negative().Model()
	require.False(t, ok)
	require.Nil(t, model)
	require.Equal(t, "negative", Negative().State().String())

	payload := &article{Title: "x"}
	model, ok = Positive(payload).Model()
	require.True(t, ok)
	require.Same(t, payload, model)
	require.Equal(t, "positive", Positive(payload).State().String())
}

func TestSessionCachesLookupAndStore(t *testing.T) {
	caches := NewSessionCaches()
	session := caches.Open()
	defer session.Close()
	res := session.Resource("/a", "app/article", nil)
	key := ResolutionKey{Mode: ModeExcludingBaseTypes}

	require.Equal(t, EntryAbsent, caches.Lookup(res, key).State())

	caches.Store(res, key, Negative())
	require.Equal(t, EntryNegative, caches.Lookup(res, key).State())

	payload := &article{}
	caches.Store(res, key, Positive(payload))
	caches.Store(res, key, Positive(payload))
	model, ok := caches.Lookup(res, key).Model()
	require.True(t, ok)
	require.Same(t, payload, model)
	require.Equal(t, 1, session.Len())

	caches.Store(res, key, Absent())
	require.Equal(t, EntryAbsent, caches.Lookup(res, key).State())
	require.Equal(t, 0, session.Len())
}

func TestSessionCachesKeyIncludesResourceType(t *testing.T) {
	caches := NewSessionCaches()
	session := caches.Open()
	defer session.Close()
	res := session.Resource("/a", "app/article", nil)
	key := ResolutionKey{Mode: ModeExcludingBaseTypes}

	caches.Store(res, key, Positive(&article{}))
	require.Equal(t, EntryAbsent, caches.Lookup(res.WithResourceType("app/teaser"), key).State())
}

func TestSessionCachesCloseDiscardsEntries(t *testing.T) {
	caches := NewSessionCaches()
	session := caches.Open()
	res := session.Resource("/a", "app/article", nil)
	key := ResolutionKey{Mode: ModeIncludingBaseTypes}
	caches.Store(res, key, Negative())
	require.Equal(t, 1, caches.Sessions())

	session.Close()
	session.Close()
	require.Equal(t, 0, caches.Sessions())
	require.Equal(t, 0, session.Len())
	require.Equal(t, EntryAbsent, caches.Lookup(res, key).State())

	caches.Store(res, key, Negative())
	require.Equal(t, EntryAbsent, caches.Lookup(res, key).State(), "stores after close must be dropped")
}

func TestSessionCachesAutoOpenSessions(t *testing.T) {
	caches := NewSessionCaches(WithAutoOpenSessions())
	res := NewResource("request-7", "/a", "app/article", nil)
	key := ResolutionKey{}
	require.False(t, caches.IsOpen("request-7"))

	caches.Store(res, key, Absent())
	require.False(t, caches.IsOpen("request-7"), "removals must not open a session")

	caches.Store(res, key, Positive(&article{}))
	require.True(t, caches.IsOpen("request-7"))
	require.Equal(t, EntryPositive, caches.Lookup(res, key).State())

	caches.Store(NewResource("", "/b", "app/article", nil), key, Negative())
	require.False(t, caches.IsOpen(""), "resources without a session id are never cached")

	session := caches.OpenWithID("request-7")
	require.Equal(t, 1, session.Len())
	session.Close()
	require.False(t, caches.IsOpen("request-7"))
}

func TestSessionCachesOpenWithIDRejoins(t *testing.T) {
	caches := NewSessionCaches()
	first := caches.OpenWithID("request-1")
	res := first.Resource("/a", "app/article", nil)
	caches.Store(res, ResolutionKey{}, Negative())

	again := caches.OpenWithID("request-1")
	require.Equal(t, "request-1", again.ID())
	require.Equal(t, 1, again.Len())
	require.Equal(t, 1, caches.Sessions())
}

func TestSessionCachesOpenAssignsUniqueIDs(t *testing.T) {
	caches := NewSessionCaches()
	a, b := caches.Open(), caches.Open()
	defer a.Close()
	defer b.Close()
	require.NotEqual(t, a.ID(), b.ID())
	require.NotEmpty(t, a.ID())
}

func TestSessionCachesExpiration(t *testing.T) {
	caches := NewSessionCaches(WithSessionExpiration(20*time.Millisecond, time.Hour))
	session := caches.Open()
	defer session.Close()
	res := session.Resource("/a", "app/article", nil)
	caches.Store(res, ResolutionKey{}, Negative())
	require.Equal(t, EntryNegative, caches.Lookup(res, ResolutionKey{}).State())

	require.Eventually(t, func() bool {
		return caches.Lookup(res, ResolutionKey{}).State() == EntryAbsent
	}, time.Second, 10*time.Millisecond)
}
