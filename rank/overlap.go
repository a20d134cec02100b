// Package rank 提供候选打分节点：口味画像重合度与热度。
package rank

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pipeline"
	"github.com/rushteam/reelkit/pkg/utils"
)

const (
	MetricOverlap = "overlap" // 命中特征的画像权重之和
	MetricCosine  = "cosine"  // 画像权重向量与 multi-hot 向量的余弦相似度
)

// OverlapNode 用共享向量索引为候选计算内容向量，并按口味画像打分。
//
//   - 写入 item.Vector、Features["overlap"]、Features["matched"]
//   - 写入 labels：rank_model、match_reason（权重最高的若干命中特征）
//   - 按 core.ItemLess 排序
//
// 画像为空时所有候选得 0 分，顺序退化为评分降序、ID 升序。
type OverlapNode struct {
	Vectors core.VectorIndex
	Metric  string // overlap（默认）/ cosine

	// ReasonSize 是 match_reason 中保留的特征数，<= 0 时为 3
	ReasonSize int
}

func (n *OverlapNode) Name() string        { return "rank.overlap" }
func (n *OverlapNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *OverlapNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	if n.Vectors == nil {
		return nil, errors.New("rank.overlap: vector index not configured")
	}
	var profile *core.TasteProfile
	if rctx != nil {
		profile = rctx.Profile
	}
	metric := n.Metric
	if metric == "" {
		metric = MetricOverlap
	}

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if it == nil {
			continue
		}
		rec := core.MovieRecord{ID: it.ID}
		if it.Movie != nil {
			rec = *it.Movie
		}
		v := n.Vectors.Compute(rec)
		it.Vector = &v

		dot, matched := Overlap(profile, v)
		score := dot
		if metric == MetricCosine {
			score = Cosine(profile, v)
		}
		it.Score = score
		if it.Features == nil {
			it.Features = make(map[string]float64)
		}
		it.Features["overlap"] = dot
		it.Features["matched"] = float64(len(matched))
		it.PutLabel("rank_model", utils.Label{Value: metric, Source: "rank"})
		if reason := n.reason(profile, matched); reason != "" {
			it.PutLabel("match_reason", utils.Label{Value: reason, Source: "rank"})
		}
	}

	core.SortItems(items)
	return items, nil
}

func (n *OverlapNode) reason(profile *core.TasteProfile, matched []int) string {
	if len(matched) == 0 {
		return ""
	}
	size := n.ReasonSize
	if size <= 0 {
		size = 3
	}
	idx := append([]int(nil), matched...)
	sort.SliceStable(idx, func(a, b int) bool {
		return profile.Weight(idx[a]) > profile.Weight(idx[b])
	})
	if len(idx) > size {
		idx = idx[:size]
	}
	keys := make([]string, 0, len(idx))
	for _, i := range idx {
		if i < len(profile.FeatureKeys) {
			keys = append(keys, profile.FeatureKeys[i])
		}
	}
	return strings.Join(keys, ",")
}

// Overlap 返回向量与画像的重合分（命中位的画像权重之和）及命中下标。
func Overlap(profile *core.TasteProfile, v core.ContentVector) (float64, []int) {
	if profile.Empty() {
		return 0, nil
	}
	var score float64
	var matched []int
	for i, b := range v.Vector {
		if !b {
			continue
		}
		if w := profile.Weight(i); w > 0 {
			score += w
			matched = append(matched, i)
		}
	}
	return score, matched
}

// Cosine 返回画像权重向量与 multi-hot 向量的余弦相似度，任一方为零向量时为 0。
func Cosine(profile *core.TasteProfile, v core.ContentVector) float64 {
	if profile.Empty() {
		return 0
	}
	dot, _ := Overlap(profile, v)
	bits := float64(v.Count())
	if bits == 0 || dot == 0 {
		return 0
	}
	var norm float64
	for _, w := range profile.Weights {
		norm += w * w
	}
	return dot / (math.Sqrt(norm) * math.Sqrt(bits))
}
