package feature

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pipeline"
	"github.com/rushteam/reelkit/pkg/utils"
)

// DefaultEnrichConcurrency 是补全阶段的默认并发度。
const DefaultEnrichConcurrency = 8

// EnrichNode 是候选补全节点：为每个候选拉取演职员与关键词，使其可以在共享词表上编码。
//
// 单个候选补全失败（网络错误、字段缺失）时跳过该候选，不中断整次重算；
// 只有 ctx 被取消时返回错误。输出保持输入顺序。
type EnrichNode struct {
	Hydrator *Hydrator

	// Concurrency 同时补全的候选数，<= 0 时使用 DefaultEnrichConcurrency
	Concurrency int64

	// OnSkip 在候选被跳过时回调（可选，用于监控打点），可能被并发调用
	OnSkip func(item *core.Item, err error)

	Logger zerolog.Logger
}

func (n *EnrichNode) Name() string        { return "feature.enrich" }
func (n *EnrichNode) Kind() pipeline.Kind { return pipeline.KindPostProcess }

func (n *EnrichNode) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	limit := n.Concurrency
	if limit <= 0 {
		limit = DefaultEnrichConcurrency
	}
	sem := semaphore.NewWeighted(limit)

	results := make([]*core.Item, len(items))
	done := make(chan struct{}, len(items))
	started := 0

	for i, it := range items {
		if it == nil {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		started++
		go func(i int, it *core.Item) {
			defer func() {
				sem.Release(1)
				done <- struct{}{}
			}()
			base := core.MovieRecord{ID: it.ID}
			if it.Movie != nil {
				base = *it.Movie
			}
			rec, err := n.Hydrator.Hydrate(ctx, base)
			if err != nil {
				n.skip(it, err)
				return
			}
			it.Movie = &rec
			it.PutLabel("enriched", utils.Label{Value: "true", Source: "enrich"})
			results[i] = it
		}(i, it)
	}
	for j := 0; j < started; j++ {
		<-done
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, len(items))
	for _, it := range results {
		if it != nil {
			out = append(out, it)
		}
	}
	return out, nil
}

func (n *EnrichNode) skip(it *core.Item, err error) {
	it.PutLabel("skip_reason", utils.Label{Value: "enrich", Source: "enrich"})
	n.Logger.Debug().Err(err).Int64("movie_id", it.ID).Msg("skip candidate")
	if n.OnSkip != nil {
		n.OnSkip(it, err)
	}
}
