package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/reelkit/core"
)

// Pipeline 把推荐逻辑拆成可组合的 Node 链：召回 -> 过滤 -> 补全 -> 打分 -> 重排。
type Pipeline struct {
	Nodes []Node

	// Logger 记录每个 Node 的耗时与输出规模，零值不输出
	Logger zerolog.Logger
}

// Run 依次执行各 Node。每个 Node 之前检查 ctx，取消后立即返回 ctx.Err()。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		p.Logger.Debug().
			Str("node", node.Name()).
			Str("kind", string(node.Kind())).
			Int("in", len(cur)).
			Int("out", len(next)).
			Dur("elapsed", time.Since(start)).
			Msg("node done")
		cur = next
	}
	return cur, nil
}

// Kinds 返回各 Node 的阶段，用于校验编排顺序与展示。
func (p *Pipeline) Kinds() []Kind {
	out := make([]Kind, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		out = append(out, n.Kind())
	}
	return out
}
