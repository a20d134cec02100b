// Package reelkit 是一个基于内容特征的电影推荐内核。
//
// 设计要点：
// - Vector-first: 影片按类型/演员/导演/关键词编码为共享词表上的 multi-hot 向量，词表只增不减
// - Profile 打分: 收藏与高分影片累计为口味画像，候选得分为命中特征的权重之和
// - Pipeline-first: 重算链路通过 Node 串联（Recall → Filter → Enrich → Rank → ReRank），可由 YAML 组装
// - 原子缓存: 重算结果整体替换，失败或取消时旧结果保持不变
package reelkit

import (
	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pipeline"
)

// 轻量 facade：便于用户直接 import "reelkit" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

type Item = core.Item
type TasteProfile = core.TasteProfile
type RecommendationEntry = core.RecommendationEntry

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
