package dialogue

import (
	"context"
	"fmt"
	"sync"
)

type pair struct {
	npc  string
	user string
}

// pairSlot 的 refs 统计持有者与等待者, 归零时从 map 中移除
type pairSlot struct {
	ch   chan struct{}
	refs int
}

// PairLocks serializes turns per (npc, user). Each pair owns a channel of
// capacity one used as a mutex, so waiting honours ctx cancellation.
// Entries live only while some turn holds or waits on the pair.
type PairLocks struct {
	mu    sync.Mutex
	locks map[pair]*pairSlot
}

// NewPairLocks returns an empty lock set.
func NewPairLocks() *PairLocks {
	return &PairLocks{locks: make(map[pair]*pairSlot)}
}

func (p *PairLocks) ref(key pair) *pairSlot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.locks[key]
	if !ok {
		s = &pairSlot{ch: make(chan struct{}, 1)}
		p.locks[key] = s
	}
	s.refs++
	return s
}

func (p *PairLocks) unref(key pair, s *pairSlot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(p.locks, key)
	}
}

// Acquire blocks until the pair is free or ctx is done. The returned func
// releases the pair and is safe to call more than once.
func (p *PairLocks) Acquire(ctx context.Context, npc, user string) (func(), error) {
	key := pair{npc: npc, user: user}
	s := p.ref(key)
	select {
	case <-ctx.Done():
		p.unref(key, s)
		return nil, fmt.Errorf("failed to acquire turn for %s/%s: %w", npc, user, ctx.Err())
	case s.ch <- struct{}{}:
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			p.unref(key, s)
		})
	}, nil
}

// Len reports how many pairs are currently held or waited on.
func (p *PairLocks) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
