package rank

import (
	"context"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pipeline"
	"github.com/rushteam/reelkit/pkg/utils"
)

// PopularityNode 以目录热度作为分数，用于画像为空时的兜底排序。
type PopularityNode struct{}

func (n *PopularityNode) Name() string        { return "rank.popularity" }
func (n *PopularityNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *PopularityNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	for _, it := range items {
		if it == nil {
			continue
		}
		if it.Movie != nil {
			it.Score = it.Movie.Popularity
		}
		it.PutLabel("rank_model", utils.Label{Value: "popularity", Source: "rank"})
	}
	core.SortItems(items)
	return items, nil
}
