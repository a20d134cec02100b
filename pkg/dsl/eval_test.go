package dsl

import (
	"testing"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pkg/utils"
)

func TestEval(t *testing.T) {
	item := core.NewItem(949)
	item.Score = 3
	item.Movie = &core.MovieRecord{ID: 949, Title: "Heat", GenreIDs: []int64{28, 80}, VoteAverage: 7.9, Popularity: 60}
	item.PutLabel("recall_source", utils.Label{Value: "discover", Source: "recall"})
	rctx := &core.RecommendContext{Scene: "home", Params: map[string]any{"limit": 20}}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "empty", expr: "", want: true},
		{name: "vote", expr: "movie.vote_average >= 6.5", want: true},
		{name: "genre in", expr: "80 in movie.genre_ids", want: true},
		{name: "genre not in", expr: "35 in movie.genre_ids", want: false},
		{name: "label", expr: `label.recall_source == "discover"`, want: true},
		{name: "has label", expr: `has(label.skip_reason)`, want: false},
		{name: "score and scene", expr: `item.score > 2.0 && rctx.scene == "home"`, want: true},
		{name: "params", expr: `rctx.params.limit > 10`, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.expr, item, rctx)
			if err != nil {
				t.Fatalf("Eval(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	if _, err := Compile("movie.vote_average >="); err == nil {
		t.Error("Compile() with syntax error should fail")
	}
	if _, err := Compile(`"text"`); err == nil {
		t.Error("Compile() with non-bool expression should fail")
	}

	p, err := Compile("movie.popularity > 1.0")
	if err != nil {
		t.Fatal(err)
	}
	again, _ := Compile("movie.popularity > 1.0")
	if p != again {
		t.Error("Compile() should return the cached program")
	}
	if _, err := p.Match(core.NewItem(1), nil); err == nil {
		t.Error("Match() on missing field should fail")
	}
}
