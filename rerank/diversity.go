package rerank

import (
	"context"
	"strconv"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pipeline"
	"github.com/rushteam/reelkit/pkg/utils"
)

// Diversity 是类别打散：同一类别在前列最多出现 MaxPerCategory 次，超出的候选保持相对顺序后移。
// 类别来源优先级：
// - label[LabelKey].Value（LabelKey 非空时）
// - 影片的第一个类型 ID
type Diversity struct {
	LabelKey       string
	MaxPerCategory int // <= 0 时为 1
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	limit := n.MaxPerCategory
	if limit <= 0 {
		limit = 1
	}

	seen := make(map[string]int, 32)
	head := make([]*core.Item, 0, len(items))
	var tail []*core.Item

	for _, it := range items {
		if it == nil {
			continue
		}
		cate := n.category(it)
		if cate == "" {
			head = append(head, it)
			continue
		}
		if seen[cate] >= limit {
			it.PutLabel("diversity", utils.Label{Value: "deferred", Source: "rerank"})
			tail = append(tail, it)
			continue
		}
		seen[cate]++
		head = append(head, it)
	}
	return append(head, tail...), nil
}

func (n *Diversity) category(it *core.Item) string {
	if n.LabelKey != "" && it.Labels != nil {
		if lbl, ok := it.Labels[n.LabelKey]; ok && lbl.Value != "" {
			return lbl.Value
		}
	}
	if it.Movie != nil && len(it.Movie.GenreIDs) > 0 {
		return strconv.FormatInt(it.Movie.GenreIDs[0], 10)
	}
	return ""
}
