package memory

import (
	"context"
	"sort"
)

// BlockList implements ports.BlockList.
type BlockList struct {
	s *Store
}

func (b *BlockList) IsBlocked(_ context.Context, number string) (bool, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	_, ok := b.s.blocked[number]
	return ok, nil
}

func (b *BlockList) Add(_ context.Context, numbers ...string) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	for _, n := range numbers {
		b.s.blocked[n] = struct{}{}
	}
	return nil
}

func (b *BlockList) Remove(_ context.Context, number string) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	delete(b.s.blocked, number)
	return nil
}

func (b *BlockList) Clear(_ context.Context) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	b.s.blocked = make(map[string]struct{})
	return nil
}

func (b *BlockList) List(_ context.Context) ([]string, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	out := make([]string, 0, len(b.s.blocked))
	for n := range b.s.blocked {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}
