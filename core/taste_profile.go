package core

import (
	"sort"
	"strings"
)

// TasteProfile 是用户口味画像：对收藏/高分影片的内容向量做频次累加。
// Weights[i] 为表达第 i 个特征的来源影片数量，与 FeatureKeys 按下标对齐。
type TasteProfile struct {
	Weights     []float64
	FeatureKeys []string
	// Sources 是参与构建画像的影片 ID（去重，按加入顺序）
	Sources []int64
}

// Empty 返回画像是否没有任何正权重。
func (p *TasteProfile) Empty() bool {
	if p == nil {
		return true
	}
	for _, w := range p.Weights {
		if w > 0 {
			return false
		}
	}
	return true
}

// Add 把一个内容向量累加进画像，词表增长时权重数组按需扩展。
func (p *TasteProfile) Add(v ContentVector) {
	if len(v.FeatureKeys) > len(p.FeatureKeys) {
		p.FeatureKeys = append(p.FeatureKeys[:0:0], v.FeatureKeys...)
	}
	if n := len(v.Vector); n > len(p.Weights) {
		grown := make([]float64, n)
		copy(grown, p.Weights)
		p.Weights = grown
	}
	for i, b := range v.Vector {
		if b {
			p.Weights[i]++
		}
	}
	p.Sources = append(p.Sources, v.MovieID)
}

// Weight 返回第 i 个特征的权重，越界视为 0。
func (p *TasteProfile) Weight(i int) float64 {
	if p == nil || i < 0 || i >= len(p.Weights) {
		return 0
	}
	return p.Weights[i]
}

// TopFeatures 返回指定前缀（如 "genre:"）下权重最高的 n 个特征 key。
// 权重相同按下标升序，保证结果稳定。
func (p *TasteProfile) TopFeatures(prefix string, n int) []string {
	if p == nil || n <= 0 {
		return nil
	}
	idx := make([]int, 0)
	for i, key := range p.FeatureKeys {
		if i < len(p.Weights) && p.Weights[i] > 0 && strings.HasPrefix(key, prefix) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return p.Weights[idx[a]] > p.Weights[idx[b]]
	})
	if len(idx) > n {
		idx = idx[:n]
	}
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, p.FeatureKeys[i])
	}
	return out
}
