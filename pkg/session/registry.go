// Package session tracks live chat connections. The registry is sharded
// so registration and snapshotting under broadcast load do not contend
// on a single lock.
package session

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

// Sink is the delivery side of a live session. TryPush must not block;
// it reports whether the frame was handed to the connection.
type Sink interface {
	TryPush(frame []byte) bool
	Close()
}

// Session is one live connection of a user to a crew channel.
type Session struct {
	ID       string
	UserID   string
	CrewID   string
	Started  time.Time
	lastSeen int64
	sink     Sink
}

// NewSession builds a session around sink. The caller registers it.
func NewSession(id, userID, crewID string, sink Sink) *Session {
	now := time.Now()
	return &Session{
		ID:       id,
		UserID:   userID,
		CrewID:   crewID,
		Started:  now,
		lastSeen: now.UnixNano(),
		sink:     sink,
	}
}

// Touch records activity on the session.
func (s *Session) Touch() { atomic.StoreInt64(&s.lastSeen, time.Now().UnixNano()) }

// LastSeen returns the time of the most recent activity.
func (s *Session) LastSeen() time.Time { return time.Unix(0, atomic.LoadInt64(&s.lastSeen)) }

// TryPush forwards a frame to the connection without blocking.
func (s *Session) TryPush(frame []byte) bool { return s.sink.TryPush(frame) }

// Close tears down the underlying connection.
func (s *Session) Close() { s.sink.Close() }

const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Registry holds all live sessions across crews. A (user, crew) pair
// owns at most one live session; registering a second one displaces the
// first.
type Registry struct {
	shards [shardCount]shard
	count  int64
	ownMu  sync.Mutex
	owners map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{owners: make(map[string]*Session)}
	for i := range r.shards {
		r.shards[i].sessions = make(map[string]*Session)
	}
	return r
}

func (r *Registry) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &r.shards[h.Sum32()%shardCount]
}

func ownerKey(userID, crewID string) string { return userID + "\x00" + crewID }

// Register adds s. The (user, crew) ownership claim is taken under one
// lock, so of any number of simultaneous connects for the same pair
// exactly one session survives; the displaced one is unregistered,
// closed and returned. Re-registering an ID replaces the previous entry.
func (r *Registry) Register(s *Session) *Session {
	sh := r.shardFor(s.ID)
	sh.mu.Lock()
	dup := sh.sessions[s.ID] != nil
	sh.sessions[s.ID] = s
	sh.mu.Unlock()
	if !dup {
		atomic.AddInt64(&r.count, 1)
	}

	key := ownerKey(s.UserID, s.CrewID)
	r.ownMu.Lock()
	prev := r.owners[key]
	r.owners[key] = s
	r.ownMu.Unlock()
	if prev == nil || prev == s {
		return nil
	}
	if prev.ID != s.ID {
		r.Unregister(prev.ID)
	}
	prev.Close()
	return prev
}

// Unregister removes the session by ID and reports whether it was live.
// The sink is not closed; the caller owns teardown.
func (r *Registry) Unregister(id string) bool {
	sh := r.shardFor(id)
	sh.mu.Lock()
	s, ok := sh.sessions[id]
	if ok {
		delete(sh.sessions, id)
	}
	sh.mu.Unlock()
	if !ok {
		return false
	}
	atomic.AddInt64(&r.count, -1)
	r.disown(s)
	return true
}

// disown releases s's (user, crew) ownership claim unless a newer
// session already took it over.
func (r *Registry) disown(s *Session) {
	key := ownerKey(s.UserID, s.CrewID)
	r.ownMu.Lock()
	if r.owners[key] == s {
		delete(r.owners, key)
	}
	r.ownMu.Unlock()
}

// Get returns the session by ID.
func (r *Registry) Get(id string) (*Session, bool) {
	sh := r.shardFor(id)
	sh.mu.RLock()
	s, ok := sh.sessions[id]
	sh.mu.RUnlock()
	return s, ok
}

// Snapshot returns the sessions currently attached to crewID. The slice
// is a point-in-time copy; sessions may leave while it is walked.
func (r *Registry) Snapshot(crewID string) []*Session {
	var out []*Session
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		for _, s := range sh.sessions {
			if s.CrewID == crewID {
				out = append(out, s)
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// ForUser returns every live session belonging to userID.
func (r *Registry) ForUser(userID string) []*Session {
	var out []*Session
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		for _, s := range sh.sessions {
			if s.UserID == userID {
				out = append(out, s)
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int { return int(atomic.LoadInt64(&r.count)) }

// SweepExpired unregisters and closes sessions idle longer than maxIdle
// and returns them.
func (r *Registry) SweepExpired(maxIdle time.Duration) []*Session {
	cutoff := time.Now().Add(-maxIdle)
	var pruned []*Session
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for id, s := range sh.sessions {
			if s.LastSeen().Before(cutoff) {
				delete(sh.sessions, id)
				pruned = append(pruned, s)
			}
		}
		sh.mu.Unlock()
	}
	if n := len(pruned); n > 0 {
		atomic.AddInt64(&r.count, int64(-n))
	}
	for _, s := range pruned {
		r.disown(s)
		s.Close()
	}
	return pruned
}
