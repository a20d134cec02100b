package feature

import (
	"reflect"
	"testing"

	"github.com/rushteam/reelkit/core"
)

func TestEncode(t *testing.T) {
	director := int64(900)
	tests := []struct {
		name string
		rec  core.MovieRecord
		want []string
	}{
		{
			name: "all categories in fixed order",
			rec: core.MovieRecord{
				KeywordIDs: []int64{700},
				DirectorID: &director,
				CastIDs:    []int64{1001},
				GenreIDs:   []int64{12},
			},
			want: []string{"genre:12", "cast:1001", "director:900", "keyword:700"},
		},
		{
			name: "no director no placeholder",
			rec:  core.MovieRecord{GenreIDs: []int64{18}},
			want: []string{"genre:18"},
		},
		{
			name: "duplicates dropped",
			rec:  core.MovieRecord{GenreIDs: []int64{18, 12, 18}},
			want: []string{"genre:18", "genre:12"},
		},
		{
			name: "empty",
			rec:  core.MovieRecord{},
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.rec)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Encode() = %v, want %v", got, tt.want)
			}
			if again := Encode(tt.rec); !reflect.DeepEqual(again, got) {
				t.Errorf("Encode() not deterministic: %v vs %v", again, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		key      string
		category string
		id       int64
		ok       bool
	}{
		{key: "genre:12", category: "genre", id: 12, ok: true},
		{key: "cast:-3", category: "cast", id: -3, ok: true},
		{key: "genre", ok: false},
		{key: ":12", ok: false},
		{key: "genre:abc", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			c, id, ok := Parse(tt.key)
			if ok != tt.ok || c != tt.category || id != tt.id {
				t.Errorf("Parse(%q) = (%q, %d, %v), want (%q, %d, %v)", tt.key, c, id, ok, tt.category, tt.id, tt.ok)
			}
		})
	}
}

func TestIDs(t *testing.T) {
	keys := []string{"genre:12", "cast:1", "genre:35", "bad"}
	if got := IDs(keys, CategoryGenre); !reflect.DeepEqual(got, []int64{12, 35}) {
		t.Errorf("IDs() = %v", got)
	}
}
