package rerank

import (
	"context"
	"testing"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pkg/utils"
)

func item(id int64, score, vote float64, genres ...int64) *core.Item {
	it := core.NewItem(id)
	it.Score = score
	it.Movie = &core.MovieRecord{ID: id, VoteAverage: vote, GenreIDs: genres}
	return it
}

func idsOf(items []*core.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func sameIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSortNode(t *testing.T) {
	items := []*core.Item{
		item(5, 1, 7),
		nil,
		item(3, 2, 6),
		item(4, 2, 8),
		item(2, 1, 7),
		item(1, 0, 9),
	}
	out, err := (&SortNode{}).Process(context.Background(), nil, items)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := idsOf(out), []int64{4, 3, 2, 5, 1}; !sameIDs(got, want) {
		t.Errorf("Process() = %v, want %v", got, want)
	}
}

func TestDiversity(t *testing.T) {
	tests := []struct {
		name string
		node *Diversity
		want []int64
	}{
		{name: "one per genre", node: &Diversity{}, want: []int64{1, 3, 5, 2, 4}},
		{name: "two per genre", node: &Diversity{MaxPerCategory: 2}, want: []int64{1, 2, 3, 5, 4}},
		{name: "label key", node: &Diversity{LabelKey: "recall_source"}, want: []int64{1, 2, 3, 5, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := []*core.Item{
				item(1, 5, 0, 28),
				item(2, 4, 0, 28),
				item(3, 3, 0, 35),
				item(4, 2, 0, 28),
				item(5, 1, 0),
			}
			items[0].PutLabel("recall_source", utils.Label{Value: "discover"})
			items[1].PutLabel("recall_source", utils.Label{Value: "trending"})
			items[2].PutLabel("recall_source", utils.Label{Value: "popular"})
			items[3].PutLabel("recall_source", utils.Label{Value: "discover"})

			out, err := tt.node.Process(context.Background(), nil, items)
			if err != nil {
				t.Fatal(err)
			}
			if got := idsOf(out); !sameIDs(got, tt.want) {
				t.Errorf("Process() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopNNode(t *testing.T) {
	mk := func() []*core.Item {
		return []*core.Item{item(1, 3, 0), item(2, 2, 0), item(3, 1, 0)}
	}
	tests := []struct {
		name string
		node *TopNNode
		rctx *core.RecommendContext
		want int
	}{
		{name: "no limit", node: &TopNNode{}, want: 3},
		{name: "fixed", node: &TopNNode{N: 2}, want: 2},
		{name: "larger than input", node: &TopNNode{N: 10}, want: 3},
		{name: "param overrides", node: &TopNNode{N: 2}, rctx: &core.RecommendContext{Params: map[string]any{"limit": 1}}, want: 1},
		{name: "zero param ignored", node: &TopNNode{N: 2}, rctx: &core.RecommendContext{Params: map[string]any{"limit": 0}}, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := tt.node.Process(context.Background(), tt.rctx, mk())
			if len(out) != tt.want {
				t.Errorf("len = %d, want %d", len(out), tt.want)
			}
		})
	}
}
