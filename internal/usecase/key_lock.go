package usecase

import (
	"context"
	"sync"

	"stockledger/internal/domain/model"
)

// キー（商品×倉庫）ごとの排他。
// 待ちは到着順（chanの送信待ちキューはFIFO）で、ctxでキャンセルできる。
type keyLock struct {
	mu    sync.Mutex
	slots map[model.StockKey]*keySlot
}

type keySlot struct {
	ch   chan struct{}
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{slots: make(map[model.StockKey]*keySlot)}
}

func (l *keyLock) Acquire(ctx context.Context, key model.StockKey) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &keySlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.leave(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.leave(key, s)
		})
	}, nil
}

// 誰も使っていないキーは消す
func (l *keyLock) leave(key model.StockKey, s *keySlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *keyLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
