// Package rerank 提供排序后的调整节点：全序排序、多样性打散与截断。
package rerank

import (
	"context"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pipeline"
)

// SortNode 按 core.ItemLess 排序：分数降序，同分评分降序，再按 ID 升序。
// 打分节点之后的任何重排都应以此为最终顺序的基础，保证相同输入产出相同结果。
type SortNode struct{}

func (n *SortNode) Name() string        { return "rerank.sort" }
func (n *SortNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *SortNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	out := items[:0]
	for _, it := range items {
		if it != nil {
			out = append(out, it)
		}
	}
	core.SortItems(out)
	return out, nil
}
