package filter

import (
	"context"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pkg/dsl"
)

// ExprFilter 用 CEL 表达式过滤候选。
//
// 默认表达式为 true 的候选被剔除；Keep 为 true 时反过来，只保留表达式为 true 的候选。
//
//	&ExprFilter{Expr: "movie.vote_average < 5.0"}          // 剔除低分片
//	&ExprFilter{Expr: "movie.popularity >= 1.0", Keep: true} // 只保留有热度的影片
type ExprFilter struct {
	Expr string
	Keep bool

	prg *dsl.Program
}

// NewExprFilter 编译表达式并创建过滤器。
func NewExprFilter(expr string, keep bool) (*ExprFilter, error) {
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{Expr: expr, Keep: keep, prg: prg}, nil
}

func (f *ExprFilter) Name() string { return "filter.expr" }

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	prg := f.prg
	if prg == nil {
		var err error
		if prg, err = dsl.Compile(f.Expr); err != nil {
			return false, err
		}
	}
	match, err := prg.Match(item, rctx)
	if err != nil {
		return false, err
	}
	return match != f.Keep, nil
}
