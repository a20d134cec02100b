package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/reelkit/core"
)

// MemoryStore 是内存实现的 KeyValueStore，用于测试/开发/单机部署。
// 支持 TTL（过期时间），但进程重启后数据丢失。
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]*entry
	hashes map[string]map[string][]byte
	zsets  map[string]map[string]float64 // zset key -> member -> score

	clean *time.Ticker
	stop  chan struct{}
	once  sync.Once
}

type entry struct {
	value  []byte
	expire time.Time // 零值表示不过期
}

func (e *entry) expired(now time.Time) bool {
	return !e.expire.IsZero() && now.After(e.expire)
}

func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		data:   make(map[string]*entry),
		hashes: make(map[string]map[string][]byte),
		zsets:  make(map[string]map[string]float64),
		clean:  time.NewTicker(10 * time.Second),
		stop:   make(chan struct{}),
	}
	go ms.cleanup()
	return ms
}

var (
	_ core.Store         = (*MemoryStore)(nil)
	_ core.KeyValueStore = (*MemoryStore)(nil)
)

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, core.ErrStoreNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = newEntry(value, ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	delete(m.hashes, key)
	delete(m.zsets, key)
	return nil
}

func (m *MemoryStore) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	now := time.Now()
	for _, k := range keys {
		e, ok := m.data[k]
		if !ok || e.expired(now) {
			continue
		}
		result[k] = append([]byte(nil), e.value...)
	}
	return result, nil
}

func (m *MemoryStore) BatchSet(_ context.Context, kvs map[string][]byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range kvs {
		m.data[k] = newEntry(v, ttl)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		m.clean.Stop()
		close(m.stop)
	})
	return nil
}

func newEntry(value []byte, ttl []int) *entry {
	e := &entry{value: append([]byte(nil), value...)}
	if len(ttl) > 0 && ttl[0] > 0 {
		e.expire = time.Now().Add(time.Duration(ttl[0]) * time.Second)
	}
	return e
}

func (m *MemoryStore) cleanup() {
	for {
		select {
		case <-m.stop:
			return
		case <-m.clean.C:
			m.mu.Lock()
			now := time.Now()
			for k, e := range m.data {
				if e.expired(now) {
					delete(m.data, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// KeyValueStore 扩展方法

func (m *MemoryStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	m.zsets[key][member] = score
	return nil
}

func (m *MemoryStore) ZRem(_ context.Context, key string, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if zset, ok := m.zsets[key]; ok {
		delete(zset, member)
	}
	return nil
}

func (m *MemoryStore) ZRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	zset, ok := m.zsets[key]
	if !ok || len(zset) == 0 {
		return nil, nil
	}
	members := make([]string, 0, len(zset))
	for member := range zset {
		members = append(members, member)
	}
	return rangeByScore(members, func(member string) float64 { return zset[member] }, start, stop), nil
}

func (m *MemoryStore) ZScore(_ context.Context, key string, member string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	score, ok := m.zsets[key][member]
	if !ok {
		return 0, core.ErrStoreNotFound
	}
	return score, nil
}

func (m *MemoryStore) HGet(_ context.Context, key, field string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.hashes[key][field]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) HSet(_ context.Context, key, field string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string][]byte)
	}
	m.hashes[key][field] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) HDel(_ context.Context, key, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.hashes[key]; ok {
		delete(h, field)
	}
	return nil
}

func (m *MemoryStore) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := m.hashes[key]
	result := make(map[string][]byte, len(h))
	for field, v := range h {
		result[field] = append([]byte(nil), v...)
	}
	return result, nil
}

// rangeByScore 按分数降序（同分按成员字典序倒序）排序后截取 [start, stop]，stop < 0 表示到末尾。
// 与 Redis ZREVRANGE 的语义一致，供内存与 Badger 实现共用。
func rangeByScore(members []string, score func(string) float64, start, stop int64) []string {
	sort.Slice(members, func(i, j int) bool {
		si, sj := score(members[i]), score(members[j])
		if si != sj {
			return si > sj
		}
		return members[i] > members[j]
	})

	n := int64(len(members))
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil
	}
	return append([]string(nil), members[start:stop+1]...)
}
