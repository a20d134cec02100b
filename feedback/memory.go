package feedback

import (
	"context"
	"sync"
)

// MemoryCollector 把事件保存在内存中，用于测试与单机调试。
// Limit > 0 时只保留最近 Limit 条。
type MemoryCollector struct {
	Limit int

	mu     sync.Mutex
	events []Event
	closed bool
}

func NewMemoryCollector(limit int) *MemoryCollector {
	return &MemoryCollector{Limit: limit}
}

func (c *MemoryCollector) Record(_ context.Context, events ...Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.events = append(c.events, events...)
	if c.Limit > 0 && len(c.events) > c.Limit {
		c.events = append(c.events[:0:0], c.events[len(c.events)-c.Limit:]...)
	}
	return nil
}

// Events 返回已记录事件的副本。
func (c *MemoryCollector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// OfType 返回指定类型的事件。
func (c *MemoryCollector) OfType(t Type) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (c *MemoryCollector) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
