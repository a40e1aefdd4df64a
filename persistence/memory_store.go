package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/agenthive/types"
)

// MemoryMessageStore 是 MessageStore 的内存实现.
// 适合开发和测试。数据在重新启动时丢失。
type MemoryMessageStore struct {
	messages map[string]*types.Message
	order    []string // 按保存顺序排列的消息 ID
	cap      int      // 0 表示不限制
	mu       sync.RWMutex
	closed   bool
}

// NewMemoryMessageStore 创建内存消息存储器。cap 为保留消息数上限，
// 0 表示不限制。
func NewMemoryMessageStore(cap int) *MemoryMessageStore {
	return &MemoryMessageStore{
		messages: make(map[string]*types.Message),
		cap:      cap,
	}
}

// Close 关闭存储器
func (s *MemoryMessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping 检查存储器是否健康
func (s *MemoryMessageStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// SaveMessage 持久化一条消息
func (s *MemoryMessageStore) SaveMessage(ctx context.Context, msg *types.Message) error {
	if msg == nil || msg.ID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if _, exists := s.messages[msg.ID]; !exists {
		s.order = append(s.order, msg.ID)
	}
	cp := *msg
	s.messages[msg.ID] = &cp

	// 超出上限时淘汰最旧的消息
	if s.cap > 0 {
		for len(s.order) > s.cap {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.messages, oldest)
		}
	}
	return nil
}

// GetMessage 按 ID 检索消息
func (s *MemoryMessageStore) GetMessage(ctx context.Context, msgID string) (*types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	msg, ok := s.messages[msgID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

// RecentMessages 返回最近的消息（最新在前）
func (s *MemoryMessageStore) RecentMessages(ctx context.Context, limit int) ([]*types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}

	out := make([]*types.Message, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.messages[s.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}

// Cleanup 删除早于给定时长的消息
func (s *MemoryMessageStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-olderThan)
	kept := s.order[:0]
	removed := 0
	for _, id := range s.order {
		if s.messages[id].CreatedAt.Before(cutoff) {
			delete(s.messages, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed, nil
}

// Stats 返回存储统计信息
func (s *MemoryMessageStore) Stats(ctx context.Context) (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	stats := &StoreStats{TotalMessages: len(s.order)}
	if len(s.order) > 0 {
		stats.OldestMessage = s.messages[s.order[0]].CreatedAt
		stats.NewestMessage = s.messages[s.order[len(s.order)-1]].CreatedAt
	}
	return stats, nil
}
