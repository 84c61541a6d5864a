package lock

import (
	"context"
	"sync"
)

// Memory is an in-process Locker.
type Memory struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string]chan struct{})}
}

func (m *Memory) slot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.slots[key] = ch
	}
	return ch
}

// Lock blocks until every key is held or ctx is done. On failure nothing
// stays held.
func (m *Memory) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	held := make([]chan struct{}, 0, len(keys))

	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, key := range keys {
		ch := m.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			releaseAll()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}
