package recall

import (
	"context"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/feature"
)

// DefaultTopGenres 是按口味发现时使用的类型数。
const DefaultTopGenres = 3

// GenreDiscover 取画像中权重最高的若干类型，向目录查询包含任一类型的影片。
// 画像为空或不含类型特征时不查询目录，返回 ErrSkipped。
type GenreDiscover struct {
	Catalog   core.CatalogClient
	TopGenres int
}

func (r *GenreDiscover) Name() string { return "recall.discover" }

func (r *GenreDiscover) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if rctx == nil || rctx.Profile.Empty() {
		return nil, ErrSkipped
	}
	n := r.TopGenres
	if n <= 0 {
		n = DefaultTopGenres
	}
	genres := feature.IDs(rctx.Profile.TopFeatures(feature.CategoryGenre+":", n), feature.CategoryGenre)
	if len(genres) == 0 {
		return nil, ErrSkipped
	}
	cands, err := r.Catalog.DiscoverByGenres(ctx, genres)
	if err != nil {
		return nil, err
	}
	return candidateItems(cands), nil
}

// Popular 召回目录热门影片。
type Popular struct {
	Catalog core.CatalogClient
}

func (r *Popular) Name() string { return "recall.popular" }

func (r *Popular) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	cands, err := r.Catalog.GetPopular(ctx)
	if err != nil {
		return nil, err
	}
	return candidateItems(cands), nil
}

// Trending 召回目录本周趋势影片。
type Trending struct {
	Catalog core.CatalogClient
}

func (r *Trending) Name() string { return "recall.trending" }

func (r *Trending) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	cands, err := r.Catalog.GetTrending(ctx)
	if err != nil {
		return nil, err
	}
	return candidateItems(cands), nil
}

func candidateItems(cands []core.Candidate) []*core.Item {
	out := make([]*core.Item, 0, len(cands))
	for _, c := range cands {
		out = append(out, core.NewCandidateItem(c))
	}
	return out
}
