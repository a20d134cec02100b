package store

import (
	"context"
	"os"
	"reflect"
	"testing"

	"github.com/rushteam/reelkit/core"
)

// kvBackends 返回可在本地运行的 KeyValueStore 实现；设置 REELKIT_TEST_REDIS 时追加 Redis。
func kvBackends(t *testing.T) map[string]core.KeyValueStore {
	t.Helper()

	mem := NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })

	bdg, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadgerStore() error = %v", err)
	}
	t.Cleanup(func() { _ = bdg.Close() })

	backends := map[string]core.KeyValueStore{
		"memory": mem,
		"badger": bdg,
	}

	if addr := os.Getenv("REELKIT_TEST_REDIS"); addr != "" {
		r, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr, DB: 15})
		if err != nil {
			t.Fatalf("NewRedisStore() error = %v", err)
		}
		_ = r.Client().FlushDB(context.Background()).Err()
		t.Cleanup(func() { _ = r.Close() })
		backends["redis"] = r
	}
	return backends
}

func TestKeyValueStore_Basic(t *testing.T) {
	ctx := context.Background()
	for name, kv := range kvBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := kv.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
				t.Errorf("Get(missing) err = %v, want not found", err)
			}

			if err := kv.Set(ctx, "a", []byte("1")); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, err := kv.Get(ctx, "a")
			if err != nil || string(got) != "1" {
				t.Errorf("Get(a) = %q, %v", got, err)
			}

			if err := kv.BatchSet(ctx, map[string][]byte{"b": []byte("2"), "c": []byte("3")}); err != nil {
				t.Fatalf("BatchSet() error = %v", err)
			}
			batch, err := kv.BatchGet(ctx, []string{"a", "b", "c", "nope"})
			if err != nil {
				t.Fatalf("BatchGet() error = %v", err)
			}
			if len(batch) != 3 || string(batch["c"]) != "3" {
				t.Errorf("BatchGet() = %v", batch)
			}

			if err := kv.Delete(ctx, "a"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := kv.Get(ctx, "a"); !core.IsStoreNotFound(err) {
				t.Errorf("Get after Delete err = %v", err)
			}
		})
	}
}

func TestKeyValueStore_Hash(t *testing.T) {
	ctx := context.Background()
	for name, kv := range kvBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := kv.HGet(ctx, "h", "f"); !core.IsStoreNotFound(err) {
				t.Errorf("HGet(missing) err = %v", err)
			}
			_ = kv.HSet(ctx, "h", "f1", []byte("x"))
			_ = kv.HSet(ctx, "h", "f2", []byte("y"))
			_ = kv.HSet(ctx, "other", "f1", []byte("z"))

			all, err := kv.HGetAll(ctx, "h")
			if err != nil {
				t.Fatalf("HGetAll() error = %v", err)
			}
			want := map[string][]byte{"f1": []byte("x"), "f2": []byte("y")}
			if !reflect.DeepEqual(all, want) {
				t.Errorf("HGetAll() = %v, want %v", all, want)
			}

			_ = kv.HDel(ctx, "h", "f1")
			if _, err := kv.HGet(ctx, "h", "f1"); !core.IsStoreNotFound(err) {
				t.Errorf("HGet after HDel err = %v", err)
			}

			_ = kv.Delete(ctx, "h")
			all, _ = kv.HGetAll(ctx, "h")
			if len(all) != 0 {
				t.Errorf("HGetAll after Delete = %v", all)
			}
			if v, err := kv.HGet(ctx, "other", "f1"); err != nil || string(v) != "z" {
				t.Errorf("unrelated hash affected: %q, %v", v, err)
			}
		})
	}
}

func TestKeyValueStore_SortedSet(t *testing.T) {
	ctx := context.Background()
	for name, kv := range kvBackends(t) {
		t.Run(name, func(t *testing.T) {
			_ = kv.ZAdd(ctx, "z", 1, "a")
			_ = kv.ZAdd(ctx, "z", 3, "b")
			_ = kv.ZAdd(ctx, "z", 2, "c")
			_ = kv.ZAdd(ctx, "z", 2.5, "a") // 更新分数

			tests := []struct {
				name        string
				start, stop int64
				want        []string
			}{
				{name: "all", start: 0, stop: -1, want: []string{"b", "a", "c"}},
				{name: "top1", start: 0, stop: 0, want: []string{"b"}},
				{name: "tail", start: 1, stop: 10, want: []string{"a", "c"}},
				{name: "out of range", start: 5, stop: 6, want: nil},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := kv.ZRange(ctx, "z", tt.start, tt.stop)
					if err != nil {
						t.Fatalf("ZRange() error = %v", err)
					}
					if len(got) == 0 && len(tt.want) == 0 {
						return
					}
					if !reflect.DeepEqual(got, tt.want) {
						t.Errorf("ZRange(%d, %d) = %v, want %v", tt.start, tt.stop, got, tt.want)
					}
				})
			}

			score, err := kv.ZScore(ctx, "z", "a")
			if err != nil || score != 2.5 {
				t.Errorf("ZScore(a) = %v, %v", score, err)
			}
			_ = kv.ZRem(ctx, "z", "a")
			if _, err := kv.ZScore(ctx, "z", "a"); !core.IsStoreNotFound(err) {
				t.Errorf("ZScore after ZRem err = %v", err)
			}
			if err := kv.ZRem(ctx, "z", "never"); err != nil {
				t.Errorf("ZRem(missing) error = %v", err)
			}
		})
	}
}

func TestMemoryStore_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	defer m.Close()

	buf := []byte("abc")
	_ = m.Set(ctx, "k", buf)
	buf[0] = 'x'
	got, _ := m.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value aliased caller buffer: %q", got)
	}
	got[1] = 'y'
	again, _ := m.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("returned value aliased store: %q", again)
	}
}
