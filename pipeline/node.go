package pipeline

import (
	"context"

	"github.com/rushteam/reelkit/core"
)

// Kind 用于标记 Node 类型，方便观测/治理/编排（例如按阶段打点）。
type Kind string

const (
	KindRecall      Kind = "recall"      // 召回阶段：从目录拉取候选
	KindFilter      Kind = "filter"      // 过滤阶段：剔除已收藏/已评分/不感兴趣的影片
	KindRank        Kind = "rank"        // 排序阶段：按口味画像打分
	KindReRank      Kind = "rerank"      // 重排阶段：排序、多样性与截断
	KindPostProcess Kind = "postprocess" // 后处理阶段：补全演职员与关键词
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用“输入 items -> 输出 items”的形态，方便 Recall 生成、Filter 截断、ReRank 重排等操作。
//
// 约定：
//   - 返回的切片可以复用输入切片的底层数组
//   - 只有不可恢复的错误（ctx 取消、全部召回源失败）才返回 error；单个候选的问题应跳过并打标签
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}

// NodeFunc 把普通函数包装为 Node，便于测试与临时扩展。
type NodeFunc struct {
	NodeName string
	NodeKind Kind
	Fn       func(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) ([]*core.Item, error)
}

func (f NodeFunc) Name() string { return f.NodeName }
func (f NodeFunc) Kind() Kind   { return f.NodeKind }

func (f NodeFunc) Process(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	return f.Fn(ctx, rctx, items)
}
