// Package filter 提供候选过滤：剔除本地影片库已有的、用户标记不感兴趣的、黑名单中的影片，以及表达式过滤。
package filter

import (
	"context"

	"github.com/rushteam/reelkit/core"
)

// Filter 是过滤器的抽象接口，用于判断一个 Item 是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断 item 是否应该被过滤
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// Preparer 是可选接口：FilterNode 在逐个判断前调用一次 Prepare，
// 用于一次性加载外部数据（黑名单、布隆过滤器），避免每个候选都访问存储。
type Preparer interface {
	Prepare(ctx context.Context, rctx *core.RecommendContext) error
}
