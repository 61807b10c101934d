// Package store 缓存每个交易所、交易对最新发布的订单簿。
// 分发器的多个 worker 会并发写入，读写由 RWMutex 保护；
// 时间戳早于缓存的视图被视为乱序投递并丢弃。
package store

import (
	"context"
	"sync"

	"market-stream-reconciler/internal/core/model"
)

// Store 最新订单簿缓存
type Store struct {
	mu sync.RWMutex
	// books 第一层 key: 交易所，第二层 key: 交易对
	books map[string]map[string]*model.OrderBook
}

// New 创建新的订单簿缓存
func New() *Store {
	return &Store{
		books: make(map[string]map[string]*model.OrderBook, 6),
	}
}

// Update 更新缓存，档位发生变化时返回 true
// 档位相同（只有时间戳变化）或时间戳倒退时返回 false
func (s *Store) Update(ob *model.OrderBook) bool {
	if ob == nil || ob.Platform == "" || ob.Symbol == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exBooks, ok := s.books[ob.Platform]
	if !ok {
		exBooks = make(map[string]*model.OrderBook)
		s.books[ob.Platform] = exBooks
	}
	last, ok := exBooks[ob.Symbol]
	if ok && ob.Timestamp < last.Timestamp {
		return false
	}
	exBooks[ob.Symbol] = ob.Clone()
	return !ok || !last.SameLevels(ob)
}

// Get 获取指定交易所与交易对的最新订单簿副本，不存在时返回 nil
func (s *Store) Get(platform, symbol string) *model.OrderBook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exBooks, ok := s.books[platform]
	if !ok {
		return nil
	}
	return exBooks[symbol].Clone()
}

// Len 缓存的订单簿数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, exBooks := range s.books {
		n += len(exBooks)
	}
	return n
}

// Consumer 只更新缓存的订单簿消费者
func (s *Store) Consumer() model.BookConsumer {
	return func(_ context.Context, ob *model.OrderBook) error {
		s.Update(ob)
		return nil
	}
}

// Dedupe 更新缓存，仅在档位变化时转发给 next
func (s *Store) Dedupe(next ...model.BookConsumer) model.BookConsumer {
	return func(ctx context.Context, ob *model.OrderBook) error {
		if !s.Update(ob) {
			return nil
		}
		for _, c := range next {
			if err := c(ctx, ob); err != nil {
				return err
			}
		}
		return nil
	}
}
