package filter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pipeline"
	"github.com/rushteam/reelkit/pkg/utils"
)

// FilterNode 是过滤 Node，可以组合多个过滤器进行过滤。
// 如果任何一个过滤器返回 true，该物品就会被过滤掉。
// 单个过滤器出错时记录日志并视为“不过滤”，不中断流程。
type FilterNode struct {
	Filters []Filter
	Logger  zerolog.Logger
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	active := make([]Filter, 0, len(n.Filters))
	for _, f := range n.Filters {
		if p, ok := f.(Preparer); ok {
			if err := p.Prepare(ctx, rctx); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				n.Logger.Warn().Err(err).Str("filter", f.Name()).Msg("prepare filter failed, skipped")
				continue
			}
		}
		active = append(active, f)
	}

	out := make([]*core.Item, 0, len(items))
	filtered := 0

	for _, item := range items {
		if item == nil {
			continue
		}

		reason := ""
		for _, f := range active {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				n.Logger.Debug().Err(err).Str("filter", f.Name()).Int64("movie_id", item.ID).Msg("filter error")
				continue
			}
			if ok {
				reason = f.Name()
				break
			}
		}

		if reason != "" {
			filtered++
			item.PutLabel("filtered", utils.Label{Value: "true", Source: reason})
			continue
		}
		out = append(out, item)
	}

	n.Logger.Debug().Int("in", len(items)).Int("filtered", filtered).Msg("filter done")
	return out, nil
}
