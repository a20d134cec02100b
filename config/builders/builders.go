// Package builders 注册内置 Node 的配置构建器，空导入即生效。
package builders

import (
	"errors"
	"fmt"

	"github.com/rushteam/reelkit/config"
	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/feature"
	"github.com/rushteam/reelkit/filter"
	"github.com/rushteam/reelkit/pipeline"
	"github.com/rushteam/reelkit/pkg/conv"
	"github.com/rushteam/reelkit/rank"
	"github.com/rushteam/reelkit/recall"
	"github.com/rushteam/reelkit/rerank"
)

func init() {
	config.Register("recall.fanout", BuildFanoutNode)
	config.Register("recall.curated", BuildCuratedNode)
	config.Register("filter", BuildFilterNode)
	config.Register("feature.enrich", BuildEnrichNode)
	config.Register("rank.overlap", BuildOverlapNode)
	config.Register("rank.popularity", BuildPopularityNode)
	config.Register("rerank.sort", BuildSortNode)
	config.Register("rerank.diversity", BuildDiversityNode)
	config.Register("rerank.topn", BuildTopNNode)
}

var errNoCatalog = errors.New("catalog not configured")

// BuildFanoutNode 构建多路召回。
//
//	type: recall.fanout
//	config:
//	  timeout: 5s
//	  max_concurrent: 3
//	  max_per_source: 100
//	  merge_strategy: first
//	  sources:
//	    - {type: discover, top_genres: 3}
//	    - {type: popular}
//	    - {type: trending}
//	    - {type: curated, key: "curated:movies", ids: [603, 13]}
func BuildFanoutNode(cfg map[string]any, res *pipeline.Resources) (pipeline.Node, error) {
	raw := conv.ConfigGetMaps(cfg, "sources")
	if len(raw) == 0 {
		return nil, fmt.Errorf("recall.fanout: sources not found or invalid")
	}
	sources := make([]recall.Source, 0, len(raw))
	for _, sc := range raw {
		src, err := buildSource(sc, res)
		if err != nil {
			return nil, fmt.Errorf("recall.fanout: %w", err)
		}
		sources = append(sources, src)
	}

	merge := conv.ConfigGet(cfg, "merge_strategy", recall.MergeFirst)
	if merge != recall.MergeFirst && merge != recall.MergeUnion {
		return nil, fmt.Errorf("recall.fanout: unknown merge_strategy %q", merge)
	}
	return &recall.Fanout{
		Sources:       sources,
		Timeout:       conv.ConfigGetDuration(cfg, "timeout", 0),
		MaxConcurrent: int(conv.ConfigGetInt64(cfg, "max_concurrent", 0)),
		MaxPerSource:  int(conv.ConfigGetInt64(cfg, "max_per_source", 0)),
		MergeStrategy: merge,
		Logger:        res.Logger,
	}, nil
}

func buildSource(sc map[string]any, res *pipeline.Resources) (recall.Source, error) {
	typ := conv.ConfigGet(sc, "type", "")
	if typ != "curated" && res.Catalog == nil {
		return nil, fmt.Errorf("source %s: %w", typ, errNoCatalog)
	}
	switch typ {
	case "discover":
		return &recall.GenreDiscover{
			Catalog:   res.Catalog,
			TopGenres: int(conv.ConfigGetInt64(sc, "top_genres", recall.DefaultTopGenres)),
		}, nil
	case "popular":
		return &recall.Popular{Catalog: res.Catalog}, nil
	case "trending":
		return &recall.Trending{Catalog: res.Catalog}, nil
	case "curated":
		return curated(sc, res), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", typ)
	}
}

func curated(cfg map[string]any, res *pipeline.Resources) *recall.Curated {
	c := &recall.Curated{
		Key:  conv.ConfigGet(cfg, "key", ""),
		IDs:  conv.SliceAnyToInt64(cfg["ids"]),
		TopN: conv.ConfigGetInt64(cfg, "top_n", 0),
	}
	if res.Store != nil {
		c.Store = res.Store
	}
	return c
}

// BuildCuratedNode 构建单独使用的人工精选召回。
func BuildCuratedNode(cfg map[string]any, res *pipeline.Resources) (pipeline.Node, error) {
	return curated(cfg, res), nil
}

// BuildFilterNode 构建过滤节点。
//
//	type: filter
//	config:
//	  filters:
//	    - {type: library}
//	    - {type: dismissed}
//	    - {type: blacklist, ids: [1, 2], key: "blacklist:movies"}
//	    - {type: expr, expr: "movie.vote_average >= 6.0", keep: true}
func BuildFilterNode(cfg map[string]any, res *pipeline.Resources) (pipeline.Node, error) {
	raw := conv.ConfigGetMaps(cfg, "filters")
	if len(raw) == 0 {
		return nil, fmt.Errorf("filter: filters not found or invalid")
	}
	filters := make([]filter.Filter, 0, len(raw))
	for _, fc := range raw {
		f, err := buildFilter(fc, res)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		filters = append(filters, f)
	}
	return &filter.FilterNode{Filters: filters, Logger: res.Logger}, nil
}

func buildFilter(fc map[string]any, res *pipeline.Resources) (filter.Filter, error) {
	switch typ := conv.ConfigGet(fc, "type", ""); typ {
	case "library":
		return filter.LibraryFilter{}, nil
	case "dismissed":
		if res.Dismissed == nil {
			return nil, errors.New("dismissed: dismissed set not configured")
		}
		return &filter.DismissedFilter{Set: res.Dismissed}, nil
	case "blacklist":
		var bs filter.BlacklistStore
		if res.Store != nil {
			bs = filter.NewStoreAdapter(res.Store)
		}
		return filter.NewBlacklistFilter(conv.SliceAnyToInt64(fc["ids"]), bs, conv.ConfigGet(fc, "key", "")), nil
	case "expr":
		return filter.NewExprFilter(conv.ConfigGet(fc, "expr", ""), conv.ConfigGet(fc, "keep", false))
	default:
		return nil, fmt.Errorf("unknown filter type %q", typ)
	}
}

// BuildEnrichNode 构建候选补全节点。
func BuildEnrichNode(cfg map[string]any, res *pipeline.Resources) (pipeline.Node, error) {
	if res.Catalog == nil {
		return nil, fmt.Errorf("feature.enrich: %w", errNoCatalog)
	}
	return &feature.EnrichNode{
		Hydrator: &feature.Hydrator{
			Catalog: res.Catalog,
			MaxCast: int(conv.ConfigGetInt64(cfg, "max_cast", feature.DefaultMaxCast)),
		},
		Concurrency: conv.ConfigGetInt64(cfg, "concurrency", feature.DefaultEnrichConcurrency),
		OnSkip:      res.OnSkip,
		Logger:      res.Logger,
	}, nil
}

// BuildOverlapNode 构建画像重合度打分节点，metric 为 overlap（默认）或 cosine。
func BuildOverlapNode(cfg map[string]any, res *pipeline.Resources) (pipeline.Node, error) {
	if res.Vectors == nil {
		return nil, errors.New("rank.overlap: vector index not configured")
	}
	metric := conv.ConfigGet(cfg, "metric", rank.MetricOverlap)
	if metric != rank.MetricOverlap && metric != rank.MetricCosine {
		return nil, fmt.Errorf("rank.overlap: unknown metric %q", metric)
	}
	return &rank.OverlapNode{
		Vectors:    res.Vectors,
		Metric:     metric,
		ReasonSize: int(conv.ConfigGetInt64(cfg, "reason_size", 0)),
	}, nil
}

func BuildPopularityNode(map[string]any, *pipeline.Resources) (pipeline.Node, error) {
	return &rank.PopularityNode{}, nil
}

func BuildSortNode(map[string]any, *pipeline.Resources) (pipeline.Node, error) {
	return &rerank.SortNode{}, nil
}

func BuildDiversityNode(cfg map[string]any, _ *pipeline.Resources) (pipeline.Node, error) {
	return &rerank.Diversity{
		LabelKey:       conv.ConfigGet(cfg, "label_key", ""),
		MaxPerCategory: int(conv.ConfigGetInt64(cfg, "max_per_category", 1)),
	}, nil
}

func BuildTopNNode(cfg map[string]any, _ *pipeline.Resources) (pipeline.Node, error) {
	n := conv.ConfigGetInt64(cfg, "n", 0)
	if n < 0 {
		return nil, fmt.Errorf("rerank.topn: n must be >= 0, got %d: %w", n, core.ErrInvalidInput)
	}
	return &rerank.TopNNode{N: int(n)}, nil
}
