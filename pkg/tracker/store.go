package tracker

import (
	"sort"
	"sync"
	"time"
)

// Store holds the canonical operation records. It is the sole owner of every
// Operation instance: reads return defensive copies and writes go through
// Update so check-then-set transitions stay atomic under the store's lock.
//
// Mutation through Update is reserved for the Tracker; external callers only
// read. This indirection is what lets the lifecycle API enforce the state
// machine.
type Store interface {
	// Insert adds a new operation record. The store takes ownership.
	Insert(op *Operation)

	// Get returns a snapshot of the operation, or false if the id is unknown.
	Get(id string) (*Operation, bool)

	// List returns filtered, sorted, paginated snapshots.
	List(filter ListFilter) []*Operation

	// Update applies fn to the canonical record under the store's lock and
	// returns false if the id is unknown. fn must not retain the record.
	Update(id string, fn func(op *Operation)) bool

	// Len returns the number of operations held.
	Len() int
}

// MemoryStore is the in-memory Store implementation. A single mutex guards
// every access: lifecycle transitions are check-then-set and would race
// under parallel mutators otherwise.
//
// Operations are never deleted; once created a record exists for the
// lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	ops  map[string]*Operation
	next uint64
}

// NewMemoryStore creates an empty in-memory operation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ops: make(map[string]*Operation),
	}
}

// Insert adds a new operation record and stamps its insertion sequence.
func (s *MemoryStore) Insert(op *Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	op.seq = s.next
	s.ops[op.ID] = op
}

// Get returns a snapshot of the operation, or false if the id is unknown.
func (s *MemoryStore) Get(id string) (*Operation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.ops[id]
	if !ok {
		return nil, false
	}
	return op.Clone(), true
}

// Update applies fn to the canonical record under the store's lock.
func (s *MemoryStore) Update(id string, fn func(op *Operation)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[id]
	if !ok {
		return false
	}
	fn(op)
	return true
}

// Len returns the number of operations held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.ops)
}

// List returns filtered, sorted, paginated snapshots. The default sort key
// is start time descending; ties are broken by insertion order. An unknown
// sort key keeps insertion order.
func (s *MemoryStore) List(filter ListFilter) []*Operation {
	s.mu.RLock()

	matched := make([]*Operation, 0, len(s.ops))
	for _, op := range s.ops {
		if filter.Type != "" && op.Type != filter.Type {
			continue
		}
		if filter.Status != "" && op.Status != filter.Status {
			continue
		}
		matched = append(matched, op.Clone())
	}
	s.mu.RUnlock()

	sortOperations(matched, filter.SortBy, filter.SortDirection)

	// Paginate after sorting.
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*Operation{}
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched
}

// sortOperations orders snapshots by the requested key. Insertion order is
// the secondary ordering for every key and the only ordering for unknown
// keys.
func sortOperations(ops []*Operation, sortBy string, dir SortDirection) {
	if sortBy == "" {
		sortBy = SortByStartedAt
	}
	if dir == "" {
		dir = SortDesc
	}
	desc := dir == SortDesc

	var less func(a, b *Operation) int
	switch sortBy {
	case SortByStartedAt:
		less = func(a, b *Operation) int {
			return compareTimes(a.StartedAt, b.StartedAt)
		}
	case SortByCreatedAt:
		less = func(a, b *Operation) int {
			switch {
			case a.CreatedAt.Before(b.CreatedAt):
				return -1
			case a.CreatedAt.After(b.CreatedAt):
				return 1
			default:
				return 0
			}
		}
	case SortByProgress:
		less = func(a, b *Operation) int {
			switch {
			case a.Progress < b.Progress:
				return -1
			case a.Progress > b.Progress:
				return 1
			default:
				return 0
			}
		}
	default:
		// Unknown sort key: insertion order only.
		sort.Slice(ops, func(i, j int) bool {
			if desc {
				return ops[i].seq > ops[j].seq
			}
			return ops[i].seq < ops[j].seq
		})
		return
	}

	sort.Slice(ops, func(i, j int) bool {
		c := less(ops[i], ops[j])
		if c == 0 {
			return ops[i].seq < ops[j].seq
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// compareTimes orders optional timestamps; missing timestamps sort before
// any present one.
func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.Before(*b):
		return -1
	case a.After(*b):
		return 1
	default:
		return 0
	}
}
