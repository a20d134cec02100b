package filter

import (
	"context"
	"sync"

	"github.com/rushteam/reelkit/core"
)

// BlacklistFilter 是黑名单过滤器，过滤掉黑名单中的影片。
// 黑名单由静态 ID 与 Store 中的列表合并而成，Store 列表在 Prepare 时加载一次。
type BlacklistFilter struct {
	// IDs 是配置中的静态黑名单
	IDs []int64

	// Store 用于从存储中读取黑名单（可选）
	Store BlacklistStore

	// Key 是 Store 中的黑名单 key（可选）
	Key string

	mu     sync.RWMutex
	loaded map[int64]struct{}
}

// BlacklistStore 是黑名单存储接口。
type BlacklistStore interface {
	// GetBlacklist 获取黑名单影片 ID 列表，key 不存在时返回空列表
	GetBlacklist(ctx context.Context, key string) ([]int64, error)
}

// NewBlacklistFilter 创建一个黑名单过滤器。
func NewBlacklistFilter(ids []int64, store BlacklistStore, key string) *BlacklistFilter {
	return &BlacklistFilter{
		IDs:   ids,
		Store: store,
		Key:   key,
	}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) Prepare(ctx context.Context, _ *core.RecommendContext) error {
	set := make(map[int64]struct{}, len(f.IDs))
	for _, id := range f.IDs {
		set[id] = struct{}{}
	}
	if f.Store != nil && f.Key != "" {
		ids, err := f.Store.GetBlacklist(ctx, f.Key)
		if err != nil {
			return err
		}
		for _, id := range ids {
			set[id] = struct{}{}
		}
	}
	f.mu.Lock()
	f.loaded = set
	f.mu.Unlock()
	return nil
}

func (f *BlacklistFilter) ShouldFilter(
	_ context.Context,
	_ *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}

	f.mu.RLock()
	set := f.loaded
	f.mu.RUnlock()
	if set != nil {
		_, ok := set[item.ID]
		return ok, nil
	}

	// 未经 Prepare 直接调用时只检查静态列表
	for _, id := range f.IDs {
		if item.ID == id {
			return true, nil
		}
	}
	return false, nil
}
