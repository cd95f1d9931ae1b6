package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn is one message exchange unit, owned by its session and immutable
// once appended.
type Turn struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	SQLGenerated string    `json:"sql_generated,omitempty"`
	ResultCount  int       `json:"result_count,omitempty"`
	Failed       bool      `json:"failed,omitempty"`
}

type entry struct {
	mu           sync.Mutex
	createdAt    time.Time
	lastActivity time.Time
	turns        []Turn
}

// Store holds live conversations keyed by an opaque session id. Appends on
// one session are serialized by a per-session mutex so turn order matches
// arrival order at the store; distinct sessions never contend.
//
// The original behavior left session growth unbounded; here idle sessions
// are evicted after idleTTL (0 disables eviction).
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	idleTTL  time.Duration

	cancel chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func NewStore(idleTTL time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		idleTTL:  idleTTL,
		cancel:   make(chan struct{}),
	}
}

// NewID mints a server-side session identifier. Client-minted ids
// (web_<epoch millis>) are accepted as-is and never rewritten.
func NewID() string {
	return "session_" + time.Now().Format("20060102_150405") + "_" + uuid.NewString()[:8]
}

// GetOrCreate registers the session id if unseen. It reports whether a new
// session was created.
func (s *Store) GetOrCreate(id string) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		e.mu.Lock()
		e.lastActivity = now
		e.mu.Unlock()
		return false
	}
	s.sessions[id] = &entry{createdAt: now, lastActivity: now}
	return true
}

// AppendTurn adds a turn to the session, creating it on first use. The turn
// id and timestamp are filled in when the caller left them zero.
func (s *Store) AppendTurn(id string, turn Turn) Turn {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		e = &entry{createdAt: time.Now()}
		s.sessions[id] = e
	}
	s.mu.Unlock()

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	e.mu.Lock()
	e.turns = append(e.turns, turn)
	e.lastActivity = time.Now()
	e.mu.Unlock()
	return turn
}

// Snapshot returns a copy of the session's turns in append order.
func (s *Store) Snapshot(id string) ([]Turn, bool) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	turns := make([]Turn, len(e.turns))
	copy(turns, e.turns)
	return turns, true
}

// Context renders the most recent turns before the current message as
// "role: content" lines for the query agent. Empty when the session has no
// prior turns.
func (s *Store) Context(id string, maxTurns int) string {
	turns, ok := s.Snapshot(id)
	if !ok || len(turns) == 0 {
		return ""
	}
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.Role+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

// Reset drops the session's history, if any, and mints a fresh id for the
// caller to continue under. Unknown ids are not an error: the caller simply
// starts fresh.
func (s *Store) Reset(id string) string {
	if id != "" {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
	}
	return NewID()
}

// End removes the session and reports whether it existed.
func (s *Store) End(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// List returns the ids of all live sessions.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartSweeper evicts idle sessions on the given interval until Close.
// No-op when eviction is disabled.
func (s *Store) StartSweeper(interval time.Duration) {
	if s.idleTTL <= 0 || interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.cancel:
				return
			case <-ticker.C:
				s.sweep(time.Now())
			}
		}
	}()
}

func (s *Store) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, e := range s.sessions {
		e.mu.Lock()
		idle := now.Sub(e.lastActivity)
		e.mu.Unlock()
		if idle > s.idleTTL {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (s *Store) Close() {
	s.once.Do(func() {
		close(s.cancel)
	})
	s.wg.Wait()
}
