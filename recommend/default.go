package recommend

import (
	"github.com/rushteam/reelkit/feature"
	"github.com/rushteam/reelkit/filter"
	"github.com/rushteam/reelkit/pipeline"
	"github.com/rushteam/reelkit/rank"
	"github.com/rushteam/reelkit/recall"
	"github.com/rushteam/reelkit/rerank"
)

// DefaultPipeline 返回标准重算链路：
//
//	recall.fanout(discover, popular, trending) -> filter(library, dismissed)
//	-> feature.enrich -> rank.overlap -> rerank.sort -> rerank.topn
func DefaultPipeline(res *pipeline.Resources, cfg Config) *pipeline.Pipeline {
	sources := []recall.Source{
		&recall.GenreDiscover{Catalog: res.Catalog, TopGenres: cfg.TopGenres},
		&recall.Popular{Catalog: res.Catalog},
		&recall.Trending{Catalog: res.Catalog},
	}
	return &pipeline.Pipeline{
		Nodes: []pipeline.Node{
			&recall.Fanout{
				Sources:       sources,
				Timeout:       cfg.SourceTimeout,
				MaxConcurrent: len(sources),
				MaxPerSource:  cfg.MaxPerSource,
				MergeStrategy: recall.MergeFirst,
				Logger:        res.Logger,
			},
			&filter.FilterNode{Filters: libraryFilters(res), Logger: res.Logger},
			&feature.EnrichNode{
				Hydrator:    &feature.Hydrator{Catalog: res.Catalog, MaxCast: cfg.MaxCast},
				Concurrency: cfg.EnrichConcurrency,
				OnSkip:      res.OnSkip,
				Logger:      res.Logger,
			},
			&rank.OverlapNode{Vectors: res.Vectors, Metric: cfg.Metric},
			&rerank.SortNode{},
			&rerank.TopNNode{N: cfg.DefaultLimit},
		},
		Logger: res.Logger,
	}
}

// FallbackPipeline 是画像为空时的热门兜底：热度降序，同热度按评分降序、ID 升序。
func FallbackPipeline(res *pipeline.Resources, cfg Config) *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Nodes: []pipeline.Node{
			&recall.Fanout{
				Sources:      []recall.Source{&recall.Popular{Catalog: res.Catalog}},
				Timeout:      cfg.SourceTimeout,
				MaxPerSource: cfg.MaxPerSource,
				Logger:       res.Logger,
			},
			&filter.FilterNode{Filters: libraryFilters(res), Logger: res.Logger},
			&rank.PopularityNode{},
			&rerank.TopNNode{N: cfg.DefaultLimit},
		},
		Logger: res.Logger,
	}
}

func libraryFilters(res *pipeline.Resources) []filter.Filter {
	filters := []filter.Filter{filter.LibraryFilter{}}
	if res.Dismissed != nil {
		filters = append(filters, &filter.DismissedFilter{Set: res.Dismissed})
	}
	return filters
}
