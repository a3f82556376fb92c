package agent

import (
	"sort"
	"sync"
)

// Store holds pending notifications keyed (userID, type). One slot per key:
// a repeat dispatch for the same pair overwrites the previous record.
type Store struct {
	mu    sync.Mutex
	users map[string]map[Type]*Pending
}

func NewStore() *Store {
	return &Store{users: make(map[string]map[Type]*Pending)}
}

// Put inserts or overwrites the record for (p.UserID, p.Type). The oldest
// records (by CreatedAt) are evicted until the user fits within max distinct
// types, so a lowered cap converges on the next write; copies of everything
// evicted are returned. Overwriting the same type never counts against the
// cap.
func (s *Store) Put(p *Pending, max int) (evicted []Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byType := s.users[p.UserID]
	if byType == nil {
		byType = make(map[Type]*Pending)
		s.users[p.UserID] = byType
	}
	delete(byType, p.Type)

	if max > 0 {
		for len(byType) >= max {
			var oldest *Pending
			for _, q := range byType {
				if oldest == nil || q.CreatedAt.Before(oldest.CreatedAt) {
					oldest = q
				}
			}
			delete(byType, oldest.Type)
			evicted = append(evicted, *oldest)
		}
	}

	cp := *p
	byType[p.Type] = &cp
	return evicted
}

// Get returns a copy of the record for (userID, typ), if present.
func (s *Store) Get(userID string, typ Type) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.users[userID][typ]; ok {
		return *p, true
	}
	return Pending{}, false
}

// Remove deletes the record for (userID, typ) and returns a copy of what was
// removed.
func (s *Store) Remove(userID string, typ Type) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byType := s.users[userID]
	p, ok := byType[typ]
	if !ok {
		return Pending{}, false
	}
	delete(byType, typ)
	if len(byType) == 0 {
		delete(s.users, userID)
	}
	return *p, true
}

// User returns copies of all records for one user, oldest first. Ties on
// CreatedAt break by type name so matching order is deterministic.
func (s *Store) User(userID string) []Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	byType := s.users[userID]
	if len(byType) == 0 {
		return nil
	}
	out := make([]Pending, 0, len(byType))
	for _, p := range byType {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// TakeExpired removes and returns every record with ExpiresAt <= nowMs.
// Removal happens atomically with the scan, so a confirmation racing the
// sweep resolves exactly one way.
func (s *Store) TakeExpired(nowMs int64) []Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Pending
	for userID, byType := range s.users {
		for typ, p := range byType {
			if p.ExpiresAt <= nowMs {
				out = append(out, *p)
				delete(byType, typ)
			}
		}
		if len(byType) == 0 {
			delete(s.users, userID)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt != out[j].ExpiresAt {
			return out[i].ExpiresAt < out[j].ExpiresAt
		}
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Counts returns the number of tracked users and pending records per type.
func (s *Store) Counts() (users int, perType map[Type]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	perType = make(map[Type]int)
	for _, byType := range s.users {
		for typ := range byType {
			perType[typ]++
		}
	}
	return len(s.users), perType
}
