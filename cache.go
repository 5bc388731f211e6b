package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// EntryState tags the three possible states of a cached resolution.
type EntryState uint8

const (
	// EntryAbsent means the resolution was never computed.
	EntryAbsent EntryState = iota
	// EntryNegative means the resolution was computed and yielded no model.
	EntryNegative
	// EntryPositive means the resolution was computed and yielded a model.
	EntryPositive
)

func (s EntryState) String() string {
	switch s {
	case EntryNegative:
		return "negative"
	case EntryPositive:
		return "positive"
	default:
		return "absent"
	}
}

// Entry is an immutable cached resolution outcome.
type Entry struct {
	state EntryState
	model any
}

// Absent returns the entry reported for keys that were never stored.
func Absent() Entry { return Entry{} }

// Negative returns an entry recording that no model resolved.
func Negative() Entry { return Entry{state: EntryNegative} }

// Positive returns an entry holding model.
func Positive(model any) Entry { return Entry{state: EntryPositive, model: model} }

func (e Entry) State() EntryState { return e.state }

// Model returns the cached model; ok is false unless the entry is positive.
func (e Entry) Model() (model any, ok bool) {
	if e.state != EntryPositive {
		return nil, false
	}
	return e.model, true
}

// CacheStore scopes resolution outcomes by the composite key of a resource
// and a ResolutionKey.
type CacheStore interface {
	Lookup(res Resource, key ResolutionKey) Entry
	// Store overwrites the entry for the composite key. Storing Absent()
	// removes it.
	Store(res Resource, key ResolutionKey, entry Entry)
}

const (
	// DefaultSessionExpiration keeps entries for the lifetime of the session.
	DefaultSessionExpiration = gocache.NoExpiration
	DefaultCleanupInterval   = 10 * time.Minute
)

// SessionCaches is the default CacheStore. Every opened Session owns a
// separate cache; resources are routed to it by their session id, so two
// sessions never share entries.
type SessionCaches struct {
	mu              sync.RWMutex
	sessions        map[string]*gocache.Cache
	expiration      time.Duration
	cleanupInterval time.Duration
	autoOpen        bool
}

// SessionCachesOption configures SessionCaches.
type SessionCachesOption func(*SessionCaches)

// WithSessionExpiration bounds the lifetime of individual entries, for
// sessions that outlive a single request.
func WithSessionExpiration(expiration, cleanupInterval time.Duration) SessionCachesOption {
	return func(c *SessionCaches) {
		c.expiration = expiration
		if cleanupInterval > 0 {
			c.cleanupInterval = cleanupInterval
		}
	}
}

// WithAutoOpenSessions makes Store open the session of a resource that
// carries an id no Session was opened for. Such sessions live until a
// Session with the same id is opened and closed. Resources without a session
// id are still never cached.
func WithAutoOpenSessions() SessionCachesOption {
	return func(c *SessionCaches) {
		c.autoOpen = true
	}
}

// NewSessionCaches constructs a store without open sessions.
func NewSessionCaches(opts ...SessionCachesOption) *SessionCaches {
	c := &SessionCaches{
		sessions:        make(map[string]*gocache.Cache),
		expiration:      DefaultSessionExpiration,
		cleanupInterval: DefaultCleanupInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Open starts a session with a fresh identity.
func (c *SessionCaches) Open() *Session {
	return c.OpenWithID(uuid.NewString())
}

// OpenWithID starts, or rejoins, the session identified by id.
func (c *SessionCaches) OpenWithID(id string) *Session {
	c.open(id)
	return &Session{id: id, caches: c}
}

// IsOpen reports whether entries for session id are being cached.
func (c *SessionCaches) IsOpen(id string) bool {
	return c.session(id) != nil
}

func (c *SessionCaches) open(id string) *gocache.Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	cache, ok := c.sessions[id]
	if !ok {
		cache = gocache.New(c.expiration, c.cleanupInterval)
		c.sessions[id] = cache
	}
	return cache
}

// Lookup implements CacheStore. Resources of sessions that are not open are
// always absent.
func (c *SessionCaches) Lookup(res Resource, key ResolutionKey) Entry {
	cache := c.session(res.SessionID())
	if cache == nil {
		return Absent()
	}
	value, found := cache.Get(CompositeKey(res, key))
	if !found {
		return Absent()
	}
	entry, ok := value.(Entry)
	if !ok {
		return Absent()
	}
	return entry
}

// Store implements CacheStore. Stores for sessions that are not open are
// dropped unless WithAutoOpenSessions is set.
func (c *SessionCaches) Store(res Resource, key ResolutionKey, entry Entry) {
	cache := c.session(res.SessionID())
	if cache == nil && c.autoOpen && res.SessionID() != "" && entry.State() != EntryAbsent {
		cache = c.open(res.SessionID())
	}
	if cache == nil {
		return
	}
	composite := CompositeKey(res, key)
	if entry.State() == EntryAbsent {
		cache.Delete(composite)
		return
	}
	cache.Set(composite, entry, gocache.DefaultExpiration)
}

// Sessions returns the number of open sessions.
func (c *SessionCaches) Sessions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *SessionCaches) session(id string) *gocache.Cache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessions[id]
}

func (c *SessionCaches) close(id string) {
	c.mu.Lock()
	cache := c.sessions[id]
	delete(c.sessions, id)
	c.mu.Unlock()
	if cache != nil {
		cache.Flush()
	}
}

// Session is one resolver context, typically one request. Entries cached
// within it are discarded by Close.
type Session struct {
	id     string
	caches *SessionCaches
}

func (s *Session) ID() string { return s.id }

// Resource builds a resource owned by the session.
func (s *Session) Resource(path, resourceType string, properties map[string]any) *ResourceRef {
	return NewResource(s.id, path, resourceType, properties)
}

// Len returns the number of entries cached in the session.
func (s *Session) Len() int {
	cache := s.caches.session(s.id)
	if cache == nil {
		return 0
	}
	return cache.ItemCount()
}

// Close discards every entry of the session. Closing twice is a no-op.
func (s *Session) Close() {
	s.caches.close(s.id)
}
