package state

import (
	"sort"
	"sync"
)

// KeySet is a mutex-guarded set of user ids.
type KeySet struct {
	mu   sync.RWMutex
	keys map[int64]struct{}
}

// NewKeySet returns a set holding ids.
func NewKeySet(ids ...int64) *KeySet {
	s := &KeySet{keys: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		s.keys[id] = struct{}{}
	}
	return s
}

// Add inserts id and reports whether it was absent.
func (s *KeySet) Add(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[id]; ok {
		return false
	}
	s.keys[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether it was present.
func (s *KeySet) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[id]; !ok {
		return false
	}
	delete(s.keys, id)
	return true
}

// Contains reports membership of id.
func (s *KeySet) Contains(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[id]
	return ok
}

// Replace swaps the whole content, used when reloading from storage.
func (s *KeySet) Replace(ids []int64) {
	next := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	s.mu.Lock()
	s.keys = next
	s.mu.Unlock()
}

// Len returns the number of ids.
func (s *KeySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Slice returns the ids in ascending order.
func (s *KeySet) Slice() []int64 {
	s.mu.RLock()
	out := make([]int64, 0, len(s.keys))
	for id := range s.keys {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
