package feature

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/reelkit/core"
)

// DefaultMaxCast 是参与特征编码的署名演员上限。
const DefaultMaxCast = 10

// Hydrator 从远端目录补全影片的演职员与关键词。
// 摘要缺少标题或类型时额外拉取详情。
type Hydrator struct {
	Catalog core.CatalogClient

	// MaxCast 取署名顺序前 N 位演员，<= 0 时使用 DefaultMaxCast
	MaxCast int

	// Now 用于填充 UpdatedAt，为空时使用 time.Now
	Now func() time.Time
}

// Hydrate 返回补全后的记录副本；任一子请求失败即返回错误，rec 不被修改。
func (h *Hydrator) Hydrate(ctx context.Context, rec core.MovieRecord) (core.MovieRecord, error) {
	if h.Catalog == nil {
		return rec, fmt.Errorf("feature: hydrate %d: catalog is nil", rec.ID)
	}

	var (
		details  core.MovieDetails
		credits  core.Credits
		keywords []core.Keyword
		needInfo = rec.Title == "" || rec.GenreIDs == nil
	)

	eg, egCtx := errgroup.WithContext(ctx)
	if needInfo {
		eg.Go(func() error {
			var err error
			details, err = h.Catalog.GetMovieDetails(egCtx, rec.ID)
			return err
		})
	}
	eg.Go(func() error {
		var err error
		credits, err = h.Catalog.GetCredits(egCtx, rec.ID)
		return err
	})
	eg.Go(func() error {
		var err error
		keywords, err = h.Catalog.GetKeywords(egCtx, rec.ID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return rec, fmt.Errorf("feature: hydrate %d: %w", rec.ID, err)
	}

	out := rec
	if needInfo {
		if details.Title == "" {
			return rec, fmt.Errorf("feature: hydrate %d: details missing title", rec.ID)
		}
		out.Title = details.Title
		out.GenreIDs = make([]int64, 0, len(details.Genres))
		for _, g := range details.Genres {
			out.GenreIDs = append(out.GenreIDs, g.ID)
		}
		out.VoteAverage = details.VoteAverage
		out.Popularity = details.Popularity
	}

	out.CastIDs = topCast(credits.Cast, h.maxCast())
	out.DirectorID = nil
	if d, ok := credits.Director(); ok {
		id := d.ID
		out.DirectorID = &id
	}
	out.KeywordIDs = make([]int64, 0, len(keywords))
	for _, k := range keywords {
		out.KeywordIDs = append(out.KeywordIDs, k.ID)
	}
	out.UpdatedAt = h.now()
	return out, nil
}

func (h *Hydrator) maxCast() int {
	if h.MaxCast <= 0 {
		return DefaultMaxCast
	}
	return h.MaxCast
}

func (h *Hydrator) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// topCast 按署名顺序取前 n 位演员 ID。
func topCast(cast []core.CastMember, n int) []int64 {
	sorted := append([]core.CastMember(nil), cast...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]int64, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, c.ID)
	}
	return out
}
