package rerank

import (
	"context"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pipeline"
	"github.com/rushteam/reelkit/pkg/conv"
)

// ParamLimit 是 RecommendContext.Params 中的截断数量参数名。
const ParamLimit = "limit"

// TopNNode 是一个 Top-N 截断节点，用于在排序后截取前 N 个物品。
// 通常在排序（Rank）节点之后使用，用于限制返回结果数量。
//
// 截断数量优先取 rctx.Params["limit"]，其次取 N；都 <= 0 时不截断。
//
//	pipeline := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &rank.OverlapNode{...},   // 打分
//	        &rerank.SortNode{},       // 全序
//	        &rerank.TopNNode{N: 20},  // 截取 Top 20
//	    },
//	}
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if rctx != nil {
		if v, ok := conv.ToInt(rctx.Params[ParamLimit]); ok && v > 0 {
			limit = v
		}
	}
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
