// Package vector 维护影片内容向量：共享、只增不减的特征词表，以及按影片缓存的 multi-hot 向量。
package vector

import (
	"sync"
	"sync/atomic"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/feature"
)

// Index 是内容向量索引。
//
// 不变量：
//   - 词表只追加：特征一旦分配下标，之后永不改变
//   - 缓存向量按影片单调：重算只置位、不清位，直到 Invalidate
//   - 其他影片的缓存向量在词表增长时不立即扩展，下次读写时由 grow 补零
//
// 词表与缓存由同一把锁保护；锁内不做任何 I/O。
// 一个进程内通常只持有一个 Index，由调用方显式创建并注入。
type Index struct {
	mu    sync.Mutex
	vocab map[string]int
	keys  []string
	cache map[int64][]bool

	size atomic.Int64
}

var _ core.VectorIndex = (*Index)(nil)

func NewIndex() *Index {
	return &Index{
		vocab: make(map[string]int),
		cache: make(map[int64][]bool),
	}
}

// Compute 计算影片的内容向量并更新缓存。
// 返回的 Vector 与 FeatureKeys 是独立副本，长度均为调用时的词表大小。
func (x *Index) Compute(rec core.MovieRecord) core.ContentVector {
	features := feature.Encode(rec)

	x.mu.Lock()
	defer x.mu.Unlock()

	bits := make([]int, 0, len(features))
	for _, f := range features {
		bits = append(bits, x.register(f))
	}

	v := grow(x.cache[rec.ID], len(x.keys))
	for _, i := range bits {
		v[i] = true
	}
	x.cache[rec.ID] = v

	return core.ContentVector{
		MovieID:     rec.ID,
		Vector:      append([]bool(nil), v...),
		FeatureKeys: append([]string(nil), x.keys...),
	}
}

// lookup 返回缓存中的向量（扩展到当前词表长度），不存在时 ok 为 false。
func (x *Index) lookup(movieID int64) (core.ContentVector, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	v, ok := x.cache[movieID]
	if !ok {
		return core.ContentVector{}, false
	}
	v = grow(v, len(x.keys))
	x.cache[movieID] = v
	return core.ContentVector{
		MovieID:     movieID,
		Vector:      append([]bool(nil), v...),
		FeatureKeys: append([]string(nil), x.keys...),
	}, true
}

// Invalidate 删除影片的缓存向量，词表不变；不存在时无操作。
func (x *Index) Invalidate(movieID int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.cache, movieID)
}

// Clear 清空词表与全部缓存。
// 会丢弃所有下标分配，仅用于测试隔离与关停。
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.vocab = make(map[string]int)
	x.keys = nil
	x.cache = make(map[int64][]bool)
	x.size.Store(0)
}

// Size 返回当前词表大小，不加锁。
func (x *Index) Size() int {
	return int(x.size.Load())
}

// Len 返回缓存的影片数量。
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.cache)
}

// IndexOf 返回特征的下标。
func (x *Index) IndexOf(feature string) (int, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	i, ok := x.vocab[feature]
	return i, ok
}

// Features 返回词表快照（按下标顺序）。
func (x *Index) Features() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.keys...)
}

// register 返回特征下标，新特征追加到词表末尾。调用方必须持有 mu。
func (x *Index) register(f string) int {
	if i, ok := x.vocab[f]; ok {
		return i
	}
	i := len(x.keys)
	x.vocab[f] = i
	x.keys = append(x.keys, f)
	x.size.Store(int64(len(x.keys)))
	return i
}

// grow 把向量零扩展到 n 位；v 为 nil 时分配新数组。
// 所有缓存向量的扩展都经过这里。
func grow(v []bool, n int) []bool {
	if len(v) >= n {
		return v
	}
	if cap(v) >= n {
		return v[:n]
	}
	out := make([]bool, n, n+n/4)
	copy(out, v)
	return out
}
