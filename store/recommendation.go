package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/rushteam/reelkit/core"
)

// DefaultRecommendationKey 是推荐结果在 Store 中的 key。
const DefaultRecommendationKey = "recommendations"

// KVRecommendationStore 是基于 core.Store 的推荐结果缓存。
//
// 整份结果序列化后写在一个 key 下，替换只有一次 Set，读方看不到新旧混合的中间态。
// ObserveAll 的推送只覆盖本进程内的写入。
type KVRecommendationStore struct {
	store core.Store
	key   string

	// mu 串行化写入与订阅登记，保证订阅者收到的序列与写入顺序一致
	mu     sync.Mutex
	subs   map[int]chan []core.RecommendationEntry
	nextID int
}

func NewKVRecommendationStore(s core.Store, key string) *KVRecommendationStore {
	if key == "" {
		key = DefaultRecommendationKey
	}
	return &KVRecommendationStore{
		store: s,
		key:   key,
		subs:  make(map[int]chan []core.RecommendationEntry),
	}
}

var _ core.RecommendationStore = (*KVRecommendationStore)(nil)

// UpsertAll 原子替换整份推荐结果。
func (s *KVRecommendationStore) UpsertAll(ctx context.Context, entries []core.RecommendationEntry) error {
	sorted := sortByRank(entries)
	data, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("store: encode recommendations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("store: put recommendations: %w", err)
	}
	s.publish(sorted)
	return nil
}

// GetAll 按 Rank 升序返回；没有缓存时返回空切片。
func (s *KVRecommendationStore) GetAll(ctx context.Context) ([]core.RecommendationEntry, error) {
	data, err := s.store.Get(ctx, s.key)
	if core.IsStoreNotFound(err) {
		return []core.RecommendationEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get recommendations: %w", err)
	}
	var entries []core.RecommendationEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("store: decode recommendations: %w", err)
	}
	return sortByRank(entries), nil
}

func (s *KVRecommendationStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("store: clear recommendations: %w", err)
	}
	s.publish([]core.RecommendationEntry{})
	return nil
}

// ObserveAll 先推送当前结果，之后每次 UpsertAll/Clear 推送新结果。
// 消费慢时只保留最新一份；ctx 结束后取消订阅并关闭 channel。
// ctx 必须可取消（例如 context.WithCancel），否则订阅永远不会释放，此时返回 core.ErrInvalidInput。
func (s *KVRecommendationStore) ObserveAll(ctx context.Context) (<-chan []core.RecommendationEntry, error) {
	if ctx.Done() == nil {
		return nil, fmt.Errorf("store: observe recommendations needs a cancelable context: %w", core.ErrInvalidInput)
	}
	s.mu.Lock()
	current, err := s.GetAll(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	ch := make(chan []core.RecommendationEntry, 1)
	ch <- current
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

// publish 向所有订阅者推送，调用方必须持有 mu。
func (s *KVRecommendationStore) publish(entries []core.RecommendationEntry) {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- append([]core.RecommendationEntry(nil), entries...)
	}
}

func sortByRank(entries []core.RecommendationEntry) []core.RecommendationEntry {
	out := append([]core.RecommendationEntry{}, entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}
