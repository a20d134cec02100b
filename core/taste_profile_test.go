package core

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestTasteProfile_Add(t *testing.T) {
	p := &TasteProfile{}
	if !p.Empty() {
		t.Fatal("new profile should be empty")
	}

	p.Add(ContentVector{
		MovieID:     1,
		Vector:      []bool{true, false, true},
		FeatureKeys: []string{"genre:12", "genre:18", "cast:1"},
	})
	p.Add(ContentVector{
		MovieID:     2,
		Vector:      []bool{true, true, false, true},
		FeatureKeys: []string{"genre:12", "genre:18", "cast:1", "keyword:7"},
	})

	want := []float64{2, 1, 1, 1}
	if !reflect.DeepEqual(p.Weights, want) {
		t.Errorf("Weights = %v, want %v", p.Weights, want)
	}
	if len(p.FeatureKeys) != 4 {
		t.Errorf("FeatureKeys len = %d, want 4", len(p.FeatureKeys))
	}
	if !reflect.DeepEqual(p.Sources, []int64{1, 2}) {
		t.Errorf("Sources = %v", p.Sources)
	}
	if p.Empty() {
		t.Error("profile should not be empty")
	}
	if got := p.Weight(10); got != 0 {
		t.Errorf("Weight out of range = %v, want 0", got)
	}
}

func TestTasteProfile_TopFeatures(t *testing.T) {
	p := &TasteProfile{
		FeatureKeys: []string{"genre:12", "cast:1", "genre:18", "genre:35", "genre:99"},
		Weights:     []float64{1, 5, 3, 1, 0},
	}

	tests := []struct {
		name   string
		prefix string
		n      int
		want   []string
	}{
		{name: "top genres", prefix: "genre:", n: 2, want: []string{"genre:18", "genre:12"}},
		{name: "ties keep index order", prefix: "genre:", n: 3, want: []string{"genre:18", "genre:12", "genre:35"}},
		{name: "zero weight excluded", prefix: "genre:", n: 10, want: []string{"genre:18", "genre:12", "genre:35"}},
		{name: "other prefix", prefix: "cast:", n: 1, want: []string{"cast:1"}},
		{name: "n zero", prefix: "genre:", n: 0, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.TopFeatures(tt.prefix, tt.n)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TopFeatures(%q, %d) = %v, want %v", tt.prefix, tt.n, got, tt.want)
			}
		})
	}
}

func TestDomainError_Wrapping(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("load favorites: %w", WrapDomainError(ModuleCatalog, ErrorCodeUnavailable, "catalog: unavailable", cause))

	if !IsUnavailable(err) {
		t.Error("IsUnavailable should see through fmt.Errorf wrapping")
	}
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Error("errors.Is should match by module and code")
	}
	if errors.Is(err, ErrMovieNotFound) {
		t.Error("errors.Is should not match a different code")
	}
	if !errors.Is(err, cause) {
		t.Error("underlying cause should be reachable")
	}
	if IsStoreNotFound(ErrMovieNotFound) {
		t.Error("movie not found is not a store error")
	}
	if !IsNotFound(ErrMovieNotFound) {
		t.Error("IsNotFound should match movie not found")
	}
}
