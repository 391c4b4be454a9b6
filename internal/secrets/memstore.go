package secrets

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemStore implementa Store en memoria. Para tests y desarrollo.
type MemStore struct {
	mu       sync.RWMutex
	versions map[string][]Version // name -> versiones, orden de inserción
}

func NewMemStore() *MemStore {
	return &MemStore{versions: make(map[string][]Version)}
}

func (s *MemStore) GetActive(ctx context.Context, name string) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[name] {
		if v.Active {
			out := v
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) History(ctx context.Context, name string) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.versions[name]
	out := make([]Version, len(list))
	copy(out, list)
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

func (s *MemStore) Append(ctx context.Context, v *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.versions[v.Name]
	max := 0
	for i := range list {
		if list[i].Number > max {
			max = list[i].Number
		}
		list[i].Active = false
	}
	v.Number = max + 1
	v.Active = true
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	s.versions[v.Name] = append(list, *v)
	return nil
}

func (s *MemStore) Prune(ctx context.Context, name string, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.versions[name]
	if len(list) <= keep {
		return 0, nil
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Number > list[j].Number })

	kept := list[:keep]
	removed := 0
	for _, v := range list[keep:] {
		if v.Active {
			kept = append(kept, v) // la activa jamás se poda
			continue
		}
		removed++
	}
	s.versions[name] = kept
	return removed, nil
}

func (s *MemStore) Close() error { return nil }
