package filter

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/rushteam/reelkit/core"
)

// StoreAdapter 将 core.Store 适配为黑名单存储，列表以 JSON 数组保存。
type StoreAdapter struct {
	store core.Store
}

// NewStoreAdapter 创建一个 core.Store 适配器。
func NewStoreAdapter(s core.Store) *StoreAdapter {
	return &StoreAdapter{store: s}
}

var _ BlacklistStore = (*StoreAdapter)(nil)

// GetBlacklist 从 Store 读取黑名单，key 不存在时返回空列表。
func (a *StoreAdapter) GetBlacklist(ctx context.Context, key string) ([]int64, error) {
	data, err := a.store.Get(ctx, key)
	if core.IsStoreNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SetBlacklist 覆盖写入黑名单。
func (a *StoreAdapter) SetBlacklist(ctx context.Context, key string, ids []int64) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, key, data)
}
