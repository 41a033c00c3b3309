package admission

import (
	"sync"

	"quantbot-go/internal/trade"
)

type entry struct {
	strategy string
	bucket   string
	key      string
}

// State is the indexed view of currently open trades. All limit checks and
// the dedup set read from the same indexes, so counts cannot drift from the
// set of tracked records.
type State struct {
	mu         sync.RWMutex
	entries    map[string]entry           // record ID -> entry
	byKey      map[string]string          // combination key -> record ID
	byStrategy map[string]map[string]bool // strategy -> record IDs
	byBucket   map[string]map[string]bool // bucket key -> record IDs
}

func NewState() *State {
	return &State{
		entries:    make(map[string]entry),
		byKey:      make(map[string]string),
		byStrategy: make(map[string]map[string]bool),
		byBucket:   make(map[string]map[string]bool),
	}
}

// Track registers an open record in every index.
func (s *State) Track(rec trade.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := trade.BucketKey(rec.Pair, rec.Timeframe, rec.Direction, rec.Strategy)
	s.entries[rec.ID] = entry{strategy: rec.Strategy, bucket: bucket, key: rec.CombinationKey}
	s.byKey[rec.CombinationKey] = rec.ID
	if s.byStrategy[rec.Strategy] == nil {
		s.byStrategy[rec.Strategy] = make(map[string]bool)
	}
	s.byStrategy[rec.Strategy][rec.ID] = true
	if s.byBucket[bucket] == nil {
		s.byBucket[bucket] = make(map[string]bool)
	}
	s.byBucket[bucket][rec.ID] = true
}

// Release removes a record from every index. Safe to call more than once.
func (s *State) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	delete(s.entries, id)
	if s.byKey[e.key] == id {
		delete(s.byKey, e.key)
	}
	delete(s.byStrategy[e.strategy], id)
	if len(s.byStrategy[e.strategy]) == 0 {
		delete(s.byStrategy, e.strategy)
	}
	delete(s.byBucket[e.bucket], id)
	if len(s.byBucket[e.bucket]) == 0 {
		delete(s.byBucket, e.bucket)
	}
	return true
}

// Load seeds the state from persisted records, keeping only open ones.
// Used after a journal or database restore so limits survive restarts.
func (s *State) Load(records []trade.Record) {
	for _, rec := range records {
		if rec.State == trade.StateOpen {
			s.Track(rec)
		}
	}
}

// HasKey reports whether a combination key is currently open.
func (s *State) HasKey(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byKey[key]
	return ok
}

func (s *State) GlobalOpen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *State) StrategyOpen(strategy string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byStrategy[strategy])
}

func (s *State) BucketOpen(bucket string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byBucket[bucket])
}

// Snapshot returns per-strategy open counts for logging and feedback.
func (s *State) Snapshot() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.byStrategy))
	for strategy, ids := range s.byStrategy {
		out[strategy] = len(ids)
	}
	return out
}
