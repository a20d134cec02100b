package filter

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/rushteam/reelkit/core"
)

const (
	DefaultDismissedKey      = "dismissed:bloom"
	DefaultDismissedCapacity = 10000
	DefaultDismissedFPRate   = 0.001
)

// DismissedSet 记录用户标记“不感兴趣”的影片，底层为布隆过滤器并整体持久化到 core.Store。
//
// 首次访问时从 Store 加载；每次 Add 后整体写回。Store 为 nil 时只保存在内存中。
// Contains 可能误判为存在（概率由 fpRate 决定），不会漏判。
type DismissedSet struct {
	store    core.Store
	key      string
	capacity uint
	fpRate   float64

	mu     sync.Mutex
	bf     *bloom.BloomFilter
	loaded bool
}

var _ core.Blocklist = (*DismissedSet)(nil)

// NewDismissedSet 创建集合，capacity / fpRate 为 0 时使用默认值。
func NewDismissedSet(store core.Store, key string, capacity uint, fpRate float64) *DismissedSet {
	if key == "" {
		key = DefaultDismissedKey
	}
	if capacity == 0 {
		capacity = DefaultDismissedCapacity
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = DefaultDismissedFPRate
	}
	return &DismissedSet{store: store, key: key, capacity: capacity, fpRate: fpRate}
}

// load 必须在持有 mu 时调用。
func (d *DismissedSet) load(ctx context.Context) error {
	if d.loaded {
		return nil
	}
	bf := bloom.NewWithEstimates(d.capacity, d.fpRate)
	if d.store != nil {
		data, err := d.store.Get(ctx, d.key)
		switch {
		case core.IsStoreNotFound(err):
		case err != nil:
			return fmt.Errorf("dismissed: load: %w", err)
		default:
			if _, err := bf.ReadFrom(bytes.NewReader(data)); err != nil {
				return fmt.Errorf("dismissed: decode: %w", err)
			}
		}
	}
	d.bf = bf
	d.loaded = true
	return nil
}

func movieKey(id int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return b[:]
}

// Add 记录一部影片并写回 Store；写回失败时内存中的集合保持不变。
func (d *DismissedSet) Add(ctx context.Context, movieID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.load(ctx); err != nil {
		return err
	}
	next := d.bf.Copy()
	next.Add(movieKey(movieID))
	if err := d.persist(ctx, next); err != nil {
		return err
	}
	d.bf = next
	return nil
}

// Contains 判断影片是否（可能）被标记过。
func (d *DismissedSet) Contains(ctx context.Context, movieID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.load(ctx); err != nil {
		return false, err
	}
	return d.bf.Test(movieKey(movieID)), nil
}

// Reset 清空集合并删除持久化数据。
func (d *DismissedSet) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bf = bloom.NewWithEstimates(d.capacity, d.fpRate)
	d.loaded = true
	if d.store == nil {
		return nil
	}
	if err := d.store.Delete(ctx, d.key); err != nil && !core.IsStoreNotFound(err) {
		return err
	}
	return nil
}

// ApproximateCount 估算已记录的影片数。
func (d *DismissedSet) ApproximateCount(ctx context.Context) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.load(ctx); err != nil {
		return 0, err
	}
	return d.bf.ApproximatedSize(), nil
}

func (d *DismissedSet) persist(ctx context.Context, bf *bloom.BloomFilter) error {
	if d.store == nil {
		return nil
	}
	var buf bytes.Buffer
	if _, err := bf.WriteTo(&buf); err != nil {
		return fmt.Errorf("dismissed: encode: %w", err)
	}
	if err := d.store.Set(ctx, d.key, buf.Bytes()); err != nil {
		return fmt.Errorf("dismissed: save: %w", err)
	}
	return nil
}

// DismissedFilter 剔除用户标记“不感兴趣”的影片。
type DismissedFilter struct {
	Set core.Blocklist
}

func (f *DismissedFilter) Name() string { return "filter.dismissed" }

func (f *DismissedFilter) ShouldFilter(ctx context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	if f.Set == nil {
		return false, nil
	}
	return f.Set.Contains(ctx, item.ID)
}
