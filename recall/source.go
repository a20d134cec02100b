// Package recall 提供候选召回：按口味类型发现、热门、趋势与人工精选，并发 fan-out 后合并。
package recall

import (
	"context"
	"errors"

	"github.com/rushteam/reelkit/core"
)

// ErrSkipped 表示召回源本次没有查询目录（例如画像中没有类型特征），
// Fanout 不把它计入成功或失败。
var ErrSkipped = errors.New("recall: source skipped")

// Source 表示一个可复用的召回源（类型发现/热门/趋势/精选/...）。
// 你可以把它理解为“可并发 fan-out 的策略单元”。
//
// 返回空列表不算失败；返回 ErrSkipped 表示未执行；其余 error 计入 Fanout 的失败数。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}
