package recall

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pipeline"
	"github.com/rushteam/reelkit/pkg/utils"
)

const (
	MergeFirst = "first" // 按 ID 去重，保留第一次出现的位置，合并后来者的 labels
	MergeUnion = "union" // 不去重
)

// Fanout 是一个 Recall Node：并发执行多个召回源，并合并结果。
//
// 合并结果只依赖 Sources 的顺序与各源返回的内容，与完成先后无关。
// 单个召回源失败或超时只记录日志。返回 ErrSkipped 的召回源不参与统计；
// 实际执行的召回源全部失败，或有召回源失败且合并后没有候选时，返回 core.ErrNoCandidates。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MaxPerSource  int           // 每个召回源最多保留的候选数（0 表示不限制）
	MergeStrategy string        // first（默认）/ union

	Logger zerolog.Logger
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	results := make([][]*core.Item, len(n.Sources))
	errs := make([]error, len(n.Sources))

	eg := new(errgroup.Group)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		i, src := i, src
		eg.Go(func() error {
			recallCtx := ctx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(ctx, n.Timeout)
				defer cancel()
			}

			items, err := src.Recall(recallCtx, rctx)
			if err != nil {
				errs[i] = err
				return nil
			}
			if n.MaxPerSource > 0 && len(items) > n.MaxPerSource {
				items = items[:n.MaxPerSource]
			}

			// 记录召回来源 label，方便 explain / 观测
			for _, it := range items {
				if it == nil {
					continue
				}
				it.PutLabel("recall_source", utils.Label{Value: src.Name(), Source: "recall"})
				it.PutLabel("recall_priority", utils.Label{Value: strconv.Itoa(i), Source: "recall"})
			}
			results[i] = items
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstErr error
	failed, skipped := 0, 0
	for i, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, ErrSkipped):
			skipped++
			n.Logger.Debug().Str("source", n.Sources[i].Name()).Msg("recall source skipped")
		default:
			failed++
			if firstErr == nil {
				firstErr = err
			}
			n.Logger.Warn().Err(err).Str("source", n.Sources[i].Name()).Msg("recall source failed")
		}
	}
	if failed > 0 && failed == len(n.Sources)-skipped {
		return nil, core.WrapDomainError(core.ModuleRecommend, core.ErrorCodeUnavailable,
			"recommend: all candidate sources failed", firstErr)
	}

	var all []*core.Item
	for _, items := range results {
		all = append(all, items...)
	}
	if failed > 0 && len(compact(all)) == 0 {
		return nil, core.WrapDomainError(core.ModuleRecommend, core.ErrorCodeUnavailable,
			"recommend: no candidates while some sources failed", firstErr)
	}

	switch n.MergeStrategy {
	case MergeUnion:
		return compact(all), nil
	default:
		return mergeFirst(all), nil
	}
}

// mergeFirst 按 ID 去重，保留第一个出现的（默认策略）。
func mergeFirst(all []*core.Item) []*core.Item {
	seen := make(map[int64]*core.Item, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		if old, ok := seen[it.ID]; ok {
			for k, v := range it.Labels {
				if k == "recall_priority" {
					continue
				}
				old.PutLabel(k, v)
			}
			continue
		}
		seen[it.ID] = it
		out = append(out, it)
	}
	return out
}

func compact(all []*core.Item) []*core.Item {
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if it != nil {
			out = append(out, it)
		}
	}
	return out
}
