package core

import (
	"sort"

	"github.com/rushteam/reelkit/pkg/utils"
)

// Item 是推荐链路中的统一承载结构：影片、向量、分数、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
type Item struct {
	ID    int64
	Score float64

	// Movie 在召回阶段由目录摘要填充，补全节点追加演职员与关键词
	Movie *MovieRecord

	// Vector 由打分节点通过共享索引计算
	Vector *ContentVector

	Features map[string]float64
	Labels   map[string]utils.Label
}

func NewItem(id int64) *Item {
	return &Item{
		ID:       id,
		Features: make(map[string]float64),
		Labels:   make(map[string]utils.Label),
	}
}

// NewCandidateItem 用目录摘要创建 Item。
func NewCandidateItem(c Candidate) *Item {
	it := NewItem(c.ID)
	rec := c.Record()
	it.Movie = &rec
	return it
}

// VoteAverage 返回影片评分，未知时为 0。
func (it *Item) VoteAverage() float64 {
	if it.Movie == nil {
		return 0
	}
	return it.Movie.VoteAverage
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// ItemLess 是推荐结果的全序：分数降序，同分按影片评分降序，再按 ID 升序。
func ItemLess(a, b *Item) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if va, vb := a.VoteAverage(), b.VoteAverage(); va != vb {
		return va > vb
	}
	return a.ID < b.ID
}

// SortItems 按 ItemLess 原地排序。
func SortItems(items []*Item) {
	sort.SliceStable(items, func(i, j int) bool { return ItemLess(items[i], items[j]) })
}
