package recall

import (
	"context"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pipeline"
)

// Curated 是人工精选召回源，从 Store 读取影片 ID 列表。
//   - 如果 Store 实现了 KeyValueStore，优先使用 ZRange（有序集合，按分数降序）
//   - 否则从普通 key 读取 JSON 数组
//   - Store 中没有数据时使用内存中的 IDs
//
// 召回结果只有 ID，标题与类型由补全节点从目录拉取。
// Curated 同时实现了 Source 和 Node 接口，可以直接在 Pipeline 中使用。
type Curated struct {
	Store core.Store
	Key   string  // 存储 key，例如 "curated:movies"
	IDs   []int64 // 内存兜底列表
	TopN  int64   // ZRange 读取数量，<= 0 时为 100
}

func (r *Curated) Name() string        { return "recall.curated" }
func (r *Curated) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *Curated) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口
func (r *Curated) Recall(
	ctx context.Context,
	_ *core.RecommendContext,
) ([]*core.Item, error) {
	ids, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		ids = r.IDs
	}

	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.NewItem(id))
	}
	return out, nil
}

func (r *Curated) load(ctx context.Context) ([]int64, error) {
	if r.Store == nil || r.Key == "" {
		return nil, nil
	}

	if kv, ok := r.Store.(core.KeyValueStore); ok {
		top := r.TopN
		if top <= 0 {
			top = 100
		}
		members, err := kv.ZRange(ctx, r.Key, 0, top-1)
		if err != nil && !core.IsStoreNotFound(err) {
			return nil, err
		}
		if len(members) > 0 {
			ids := make([]int64, 0, len(members))
			for _, m := range members {
				if id, err := strconv.ParseInt(m, 10, 64); err == nil {
					ids = append(ids, id)
				}
			}
			return ids, nil
		}
	}

	data, err := r.Store.Get(ctx, r.Key)
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
