package core

import (
	"context"
	"time"
)

// RecommendationEntry 是一条排序后的推荐结果。
// 同一次重算产出的条目共享 RunID 与 CreatedAt，Rank 从 0 开始。
type RecommendationEntry struct {
	MovieID   int64     `json:"movie_id"`
	Title     string    `json:"title,omitempty"`
	Score     float64   `json:"score"`
	Rank      int       `json:"rank"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RecommendationStore 是推荐结果缓存的领域接口。
//
// 语义：
//   - UpsertAll 原子替换整份结果（先清空再写入，对读方不可见中间态）
//   - GetAll 按 Rank 升序返回
//   - ObserveAll 返回实时序列：先推送当前值，之后每次替换/清空都推送一次，ctx 结束时关闭；
//     ctx 必须可取消，不可取消的 ctx 返回 ErrInvalidInput
type RecommendationStore interface {
	UpsertAll(ctx context.Context, entries []RecommendationEntry) error
	GetAll(ctx context.Context) ([]RecommendationEntry, error)
	ObserveAll(ctx context.Context) (<-chan []RecommendationEntry, error)
	Clear(ctx context.Context) error
}

// ContentVector 是一部影片在共享特征词表上的 multi-hot 向量。
// Vector 与 FeatureKeys 均为调用时的独立副本，按下标对齐。
type ContentVector struct {
	MovieID     int64    `json:"movie_id"`
	Vector      []bool   `json:"vector"`
	FeatureKeys []string `json:"feature_keys"`
}

// Count 返回为 true 的位数。
func (v ContentVector) Count() int {
	n := 0
	for _, b := range v.Vector {
		if b {
			n++
		}
	}
	return n
}

// VectorIndex 是内容向量索引的消费接口，由 vector.Index 实现。
type VectorIndex interface {
	Compute(rec MovieRecord) ContentVector
	Invalidate(movieID int64)
	Size() int
}

// Blocklist 是用户标记“不感兴趣”的影片集合，由 filter.DismissedSet 实现。
// Contains 允许假阳性（布隆过滤器），不允许假阴性。
type Blocklist interface {
	Add(ctx context.Context, movieID int64) error
	Contains(ctx context.Context, movieID int64) (bool, error)
}
