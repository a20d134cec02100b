package filter

import (
	"context"

	"github.com/rushteam/reelkit/core"
)

// LibraryFilter 剔除本地影片库中已收藏或已评分的影片（RecommendContext.Exclude）。
type LibraryFilter struct{}

func (LibraryFilter) Name() string { return "filter.library" }

func (LibraryFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	return rctx.Excluded(item.ID), nil
}
