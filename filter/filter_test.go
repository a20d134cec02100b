package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/store"
)

func itemsOf(ids ...int64) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		it := core.NewItem(id)
		it.Movie = &core.MovieRecord{ID: id, VoteAverage: float64(id)}
		out = append(out, it)
	}
	return out
}

func ids(items []*core.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func equalIDs(a, b []int64) bool {
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

type errFilter struct{}

func (errFilter) Name() string { return "filter.err" }
func (errFilter) ShouldFilter(context.Context, *core.RecommendContext, *core.Item) (bool, error) {
	return true, errors.New("boom")
}

func TestFilterNode(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()

	adapter := NewStoreAdapter(kv)
	if err := adapter.SetBlacklist(ctx, "blacklist", []int64{4}); err != nil {
		t.Fatal(err)
	}

	dismissed := NewDismissedSet(kv, "", 0, 0)
	_ = dismissed.Add(ctx, 5)

	expr, err := NewExprFilter("movie.vote_average >= 7.0", false)
	if err != nil {
		t.Fatal(err)
	}

	rctx := &core.RecommendContext{Exclude: map[int64]struct{}{1: {}}}
	tests := []struct {
		name    string
		filters []Filter
		want    []int64
	}{
		{name: "none", filters: nil, want: []int64{1, 2, 3, 4, 5, 6, 7}},
		{name: "library", filters: []Filter{LibraryFilter{}}, want: []int64{2, 3, 4, 5, 6, 7}},
		{name: "blacklist static and stored", filters: []Filter{NewBlacklistFilter([]int64{2}, adapter, "blacklist")}, want: []int64{1, 3, 5, 6, 7}},
		{name: "dismissed", filters: []Filter{&DismissedFilter{Set: dismissed}}, want: []int64{1, 2, 3, 4, 6, 7}},
		{name: "expr drop", filters: []Filter{expr}, want: []int64{1, 2, 3, 4, 5, 6}},
		{name: "expr keep", filters: []Filter{&ExprFilter{Expr: "movie.vote_average >= 6.0", Keep: true}}, want: []int64{6, 7}},
		{name: "error keeps item", filters: []Filter{errFilter{}}, want: []int64{1, 2, 3, 4, 5, 6, 7}},
		{name: "combined", filters: []Filter{LibraryFilter{}, NewBlacklistFilter(nil, adapter, "blacklist"), &DismissedFilter{Set: dismissed}, expr}, want: []int64{2, 3, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &FilterNode{Filters: tt.filters}
			out, err := n.Process(ctx, rctx, itemsOf(1, 2, 3, 4, 5, 6, 7))
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if got := ids(out); !equalIDs(got, tt.want) {
				t.Errorf("Process() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterNode_LabelsFiltered(t *testing.T) {
	items := itemsOf(1, 2)
	n := &FilterNode{Filters: []Filter{LibraryFilter{}}}
	_, _ = n.Process(context.Background(), &core.RecommendContext{Exclude: map[int64]struct{}{2: {}}}, items)
	lbl, ok := items[1].Labels["filtered"]
	if !ok || lbl.Source != "filter.library" {
		t.Errorf("filtered label = %+v, %v", lbl, ok)
	}
	if _, ok := items[0].Labels["filtered"]; ok {
		t.Error("kept item should not carry filtered label")
	}
}

func TestDismissedSet_Persisted(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()

	a := NewDismissedSet(kv, "d", 100, 0.01)
	for _, id := range []int64{10, 20, 30} {
		if err := a.Add(ctx, id); err != nil {
			t.Fatalf("Add(%d) error = %v", id, err)
		}
	}

	// 新实例从 Store 加载
	b := NewDismissedSet(kv, "d", 100, 0.01)
	for _, id := range []int64{10, 20, 30} {
		if ok, err := b.Contains(ctx, id); err != nil || !ok {
			t.Errorf("Contains(%d) = %v, %v", id, ok, err)
		}
	}
	if ok, _ := b.Contains(ctx, 99); ok {
		t.Error("Contains(99) = true on a sparse filter")
	}
	if n, _ := b.ApproximateCount(ctx); n < 2 || n > 4 {
		t.Errorf("ApproximateCount() = %d", n)
	}

	if err := b.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	c := NewDismissedSet(kv, "d", 100, 0.01)
	if ok, _ := c.Contains(ctx, 10); ok {
		t.Error("Contains(10) after Reset = true")
	}
}

func TestDismissedSet_CorruptData(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	_ = kv.Set(ctx, "d", []byte("garbage"))

	s := NewDismissedSet(kv, "d", 0, 0)
	if _, err := s.Contains(ctx, 1); err == nil {
		t.Error("Contains() on corrupt data should fail")
	}

	n := &FilterNode{Filters: []Filter{&DismissedFilter{Set: s}}}
	out, err := n.Process(ctx, nil, itemsOf(1, 2))
	if err != nil || len(out) != 2 {
		t.Errorf("Process() = %v, %v; corrupt set must not drop items", ids(out), err)
	}
}

// readOnlyStore 让写入失败，读取正常。
type readOnlyStore struct {
	*store.MemoryStore
	readOnly bool
}

func (s *readOnlyStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	if s.readOnly {
		return errors.New("disk full")
	}
	return s.MemoryStore.Set(ctx, key, value, ttl...)
}

func TestDismissedSet_AddKeepsStateOnWriteError(t *testing.T) {
	ctx := context.Background()
	kv := &readOnlyStore{MemoryStore: store.NewMemoryStore()}
	defer kv.Close()

	s := NewDismissedSet(kv, "d", 100, 0.01)
	if err := s.Add(ctx, 10); err != nil {
		t.Fatalf("Add(10) error = %v", err)
	}

	kv.readOnly = true
	if err := s.Add(ctx, 20); err == nil {
		t.Fatal("Add(20) should fail when the store rejects writes")
	}
	if ok, _ := s.Contains(ctx, 20); ok {
		t.Error("Contains(20) = true after a failed Add")
	}
	if ok, _ := s.Contains(ctx, 10); !ok {
		t.Error("Contains(10) = false, earlier Add lost")
	}

	kv.readOnly = false
	if err := s.Add(ctx, 20); err != nil {
		t.Fatalf("Add(20) retry error = %v", err)
	}
	if ok, _ := NewDismissedSet(kv, "d", 100, 0.01).Contains(ctx, 20); !ok {
		t.Error("retried Add not persisted")
	}
}
