package feature

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/reelkit/core"
)

type stubCatalog struct {
	details  map[int64]core.MovieDetails
	credits  map[int64]core.Credits
	keywords map[int64][]core.Keyword
	failing  map[int64]bool
}

func (s *stubCatalog) GetMovieDetails(_ context.Context, id int64) (core.MovieDetails, error) {
	if s.failing[id] {
		return core.MovieDetails{}, core.ErrCatalogUnavailable
	}
	d, ok := s.details[id]
	if !ok {
		return core.MovieDetails{}, core.ErrCatalogNotFound
	}
	return d, nil
}

func (s *stubCatalog) GetCredits(_ context.Context, id int64) (core.Credits, error) {
	if s.failing[id] {
		return core.Credits{}, core.ErrCatalogUnavailable
	}
	return s.credits[id], nil
}

func (s *stubCatalog) GetKeywords(_ context.Context, id int64) ([]core.Keyword, error) {
	if s.failing[id] {
		return nil, core.ErrCatalogUnavailable
	}
	return s.keywords[id], nil
}

func (s *stubCatalog) DiscoverByGenres(context.Context, []int64) ([]core.Candidate, error) {
	return nil, nil
}
func (s *stubCatalog) GetPopular(context.Context) ([]core.Candidate, error)  { return nil, nil }
func (s *stubCatalog) GetTrending(context.Context) ([]core.Candidate, error) { return nil, nil }

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		details: map[int64]core.MovieDetails{
			1: {ID: 1, Title: "Heat", Genres: []core.Genre{{ID: 80, Name: "Crime"}}, VoteAverage: 7.9, Popularity: 50},
		},
		credits: map[int64]core.Credits{
			1: {
				ID: 1,
				Cast: []core.CastMember{
					{ID: 3, Order: 2}, {ID: 1, Order: 0}, {ID: 2, Order: 1},
				},
				Crew: []core.CrewMember{{ID: 50, Job: "Producer"}, {ID: 60, Job: "Director"}},
			},
			2: {ID: 2, Cast: []core.CastMember{{ID: 9, Order: 0}}},
		},
		keywords: map[int64][]core.Keyword{
			1: {{ID: 700}, {ID: 701}},
		},
		failing: map[int64]bool{},
	}
}

func TestHydrator_Hydrate(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h := &Hydrator{Catalog: newStubCatalog(), MaxCast: 2, Now: func() time.Time { return now }}

	rec, err := h.Hydrate(context.Background(), core.MovieRecord{ID: 1})
	if err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if rec.Title != "Heat" || !reflect.DeepEqual(rec.GenreIDs, []int64{80}) {
		t.Errorf("details not applied: %+v", rec)
	}
	if !reflect.DeepEqual(rec.CastIDs, []int64{1, 2}) {
		t.Errorf("CastIDs = %v, want billing order top 2", rec.CastIDs)
	}
	if rec.DirectorID == nil || *rec.DirectorID != 60 {
		t.Errorf("DirectorID = %v, want 60", rec.DirectorID)
	}
	if !reflect.DeepEqual(rec.KeywordIDs, []int64{700, 701}) {
		t.Errorf("KeywordIDs = %v", rec.KeywordIDs)
	}
	if !rec.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v", rec.UpdatedAt)
	}
}

func TestHydrator_SkipsDetailsWhenSummaryComplete(t *testing.T) {
	h := &Hydrator{Catalog: newStubCatalog()}
	// 2 没有详情，但摘要已有标题与类型
	rec, err := h.Hydrate(context.Background(), core.MovieRecord{ID: 2, Title: "Summary", GenreIDs: []int64{18}})
	if err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if rec.DirectorID != nil {
		t.Errorf("DirectorID = %v, want nil", *rec.DirectorID)
	}
	if rec.Title != "Summary" {
		t.Errorf("Title = %q", rec.Title)
	}
}

func TestHydrator_Errors(t *testing.T) {
	cat := newStubCatalog()
	cat.failing[1] = true
	h := &Hydrator{Catalog: cat}

	_, err := h.Hydrate(context.Background(), core.MovieRecord{ID: 1})
	if !errors.Is(err, core.ErrCatalogUnavailable) {
		t.Errorf("err = %v, want catalog unavailable", err)
	}

	_, err = h.Hydrate(context.Background(), core.MovieRecord{ID: 404})
	if !core.IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestEnrichNode_SkipsFailedCandidates(t *testing.T) {
	cat := newStubCatalog()
	cat.failing[2] = true

	var skipped []int64
	n := &EnrichNode{
		Hydrator:    &Hydrator{Catalog: cat},
		Concurrency: 1,
		OnSkip:      func(it *core.Item, _ error) { skipped = append(skipped, it.ID) },
	}

	items := []*core.Item{
		core.NewItem(1),
		core.NewCandidateItem(core.Candidate{ID: 2, Title: "x", GenreIDs: []int64{1}}),
		core.NewItem(404),
	}
	out, err := n.Process(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 1 || out[0].ID != 1 {
		t.Fatalf("out = %v, want only movie 1", ids(out))
	}
	if out[0].Movie == nil || len(out[0].Movie.KeywordIDs) != 2 {
		t.Errorf("movie 1 not enriched: %+v", out[0].Movie)
	}
	if len(skipped) != 2 {
		t.Errorf("skipped = %v, want 2 entries", skipped)
	}
}

func TestEnrichNode_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := &EnrichNode{Hydrator: &Hydrator{Catalog: newStubCatalog()}}
	if _, err := n.Process(ctx, nil, []*core.Item{core.NewItem(1)}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func ids(items []*core.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
