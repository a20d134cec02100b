package rank

import (
	"context"
	"math"
	"testing"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/vector"
)

func director(id int64) *int64 { return &id }

func profileFrom(idx *vector.Index, recs ...core.MovieRecord) *core.TasteProfile {
	p := &core.TasteProfile{}
	for _, r := range recs {
		p.Add(idx.Compute(r))
	}
	return p
}

func candidate(id int64, vote float64, genres ...int64) *core.Item {
	it := core.NewItem(id)
	it.Movie = &core.MovieRecord{ID: id, GenreIDs: genres, VoteAverage: vote}
	return it
}

func TestOverlapNode(t *testing.T) {
	idx := vector.NewIndex()
	// 两部收藏：动作片出现两次，犯罪片一次
	profile := profileFrom(idx,
		core.MovieRecord{ID: 1, GenreIDs: []int64{28, 80}, DirectorID: director(500)},
		core.MovieRecord{ID: 2, GenreIDs: []int64{28}},
	)

	items := []*core.Item{
		candidate(10, 6.0, 35),     // 0 分
		candidate(11, 7.0, 80),     // 1 分
		candidate(12, 5.0, 28, 80), // 3 分
		candidate(13, 8.0, 28),     // 2 分，与 14 同分
		candidate(14, 9.0, 28),     // 2 分，评分更高排前
		candidate(15, 6.0, 35),     // 0 分，与 10 同分同评分，按 ID
	}
	n := &OverlapNode{Vectors: idx}
	out, err := n.Process(context.Background(), &core.RecommendContext{Profile: profile}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want := []int64{12, 14, 13, 11, 10, 15}
	for i, id := range want {
		if out[i].ID != id {
			t.Fatalf("order[%d] = %d, want %d (full: %v)", i, out[i].ID, id, scores(out))
		}
	}
	if out[0].Score != 3 || out[0].Features["matched"] != 2 {
		t.Errorf("top item score = %v, features = %v", out[0].Score, out[0].Features)
	}
	if out[0].Vector == nil || out[0].Vector.Count() != 2 {
		t.Errorf("top item vector = %+v", out[0].Vector)
	}
	if lbl := out[0].Labels["match_reason"]; lbl.Value != "genre:28,genre:80" {
		t.Errorf("match_reason = %q", lbl.Value)
	}
	if _, ok := out[4].Labels["match_reason"]; ok {
		t.Error("zero-score item should have no match_reason")
	}
}

func TestOverlapNode_EmptyProfile(t *testing.T) {
	idx := vector.NewIndex()
	items := []*core.Item{candidate(3, 5, 28), candidate(2, 9, 28), candidate(1, 5, 28)}
	out, err := (&OverlapNode{Vectors: idx}).Process(context.Background(), &core.RecommendContext{}, items)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{2, 1, 3}
	for i, id := range want {
		if out[i].ID != id || out[i].Score != 0 {
			t.Errorf("out[%d] = %d (%.1f), want %d", i, out[i].ID, out[i].Score, id)
		}
	}
}

func TestOverlapNode_NoIndex(t *testing.T) {
	if _, err := (&OverlapNode{}).Process(context.Background(), nil, []*core.Item{candidate(1, 1)}); err == nil {
		t.Error("Process() without index should fail")
	}
}

func TestCosine(t *testing.T) {
	idx := vector.NewIndex()
	profile := profileFrom(idx, core.MovieRecord{ID: 1, GenreIDs: []int64{28, 80}})

	same := idx.Compute(core.MovieRecord{ID: 2, GenreIDs: []int64{28, 80}})
	if got := Cosine(profile, same); math.Abs(got-1) > 1e-9 {
		t.Errorf("Cosine(identical) = %v, want 1", got)
	}
	half := idx.Compute(core.MovieRecord{ID: 3, GenreIDs: []int64{28}})
	if got := Cosine(profile, half); math.Abs(got-1/math.Sqrt2) > 1e-9 {
		t.Errorf("Cosine(half) = %v", got)
	}
	none := idx.Compute(core.MovieRecord{ID: 4})
	if got := Cosine(profile, none); got != 0 {
		t.Errorf("Cosine(empty vector) = %v", got)
	}
	if got := Cosine(nil, same); got != 0 {
		t.Errorf("Cosine(nil profile) = %v", got)
	}
}

func TestPopularityNode(t *testing.T) {
	items := []*core.Item{candidate(1, 5), candidate(2, 5), candidate(3, 5)}
	items[0].Movie.Popularity = 10
	items[1].Movie.Popularity = 50
	items[2].Movie.Popularity = 10
	out, _ := (&PopularityNode{}).Process(context.Background(), nil, items)
	want := []int64{2, 1, 3}
	for i, id := range want {
		if out[i].ID != id {
			t.Errorf("out[%d] = %d, want %d", i, out[i].ID, id)
		}
	}
}

func scores(items []*core.Item) map[int64]float64 {
	out := make(map[int64]float64, len(items))
	for _, it := range items {
		out[it.ID] = it.Score
	}
	return out
}
