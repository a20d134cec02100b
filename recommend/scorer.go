// Package recommend 实现基于内容向量的影片推荐：
// 用收藏/高分影片构建口味画像，从目录召回候选，按画像重合度打分，并维护可查询的推荐缓存。
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/feature"
	"github.com/rushteam/reelkit/feedback"
	"github.com/rushteam/reelkit/pipeline"
	"github.com/rushteam/reelkit/pkg/logging"
	"github.com/rushteam/reelkit/rerank"
)

// 空画像策略
const (
	PolicyPopular = "popular" // 按热门榜兜底
	PolicyEmpty   = "empty"   // 写入并返回空列表
)

const (
	DefaultLimit          = 20
	DefaultRatedThreshold = 7.0
	DefaultUserID         = "local"
)

// State 是推荐缓存的逻辑状态。
type State string

const (
	StateStale State = "STALE" // 为空或已过期
	StateFresh State = "FRESH" // 刚完成重算，之后没有影响结果的变更
)

// Config 是推荐打分的参数，零值字段使用默认值。
type Config struct {
	// DefaultLimit 是 limit == 0 时的截断数量
	DefaultLimit int `koanf:"default_limit" validate:"gte=0"`

	// RatedThreshold 评分不低于该值的影片参与画像构建
	RatedThreshold float64 `koanf:"rated_threshold" validate:"gte=0,lte=10"`

	// EmptyProfilePolicy 画像为空时的策略：popular（默认）/ empty
	EmptyProfilePolicy string `koanf:"empty_profile_policy" validate:"omitempty,oneof=popular empty"`

	// TopGenres 按口味发现时使用的类型数
	TopGenres int `koanf:"top_genres" validate:"gte=0"`

	// MaxCast 候选补全时保留的署名演员数
	MaxCast int `koanf:"max_cast" validate:"gte=0"`

	// EnrichConcurrency 候选补全并发度
	EnrichConcurrency int64 `koanf:"enrich_concurrency" validate:"gte=0"`

	// SourceTimeout 单个召回源超时
	SourceTimeout time.Duration `koanf:"source_timeout"`

	// MaxPerSource 单个召回源最多保留的候选数
	MaxPerSource int `koanf:"max_per_source" validate:"gte=0"`

	// Metric 打分方式：overlap（默认）/ cosine
	Metric string `koanf:"metric" validate:"omitempty,oneof=overlap cosine"`

	UserID string `koanf:"user_id"`
}

// DefaultConfig 返回默认参数。
func DefaultConfig() Config {
	return Config{
		DefaultLimit:       DefaultLimit,
		RatedThreshold:     DefaultRatedThreshold,
		EmptyProfilePolicy: PolicyPopular,
		TopGenres:          3,
		MaxCast:            feature.DefaultMaxCast,
		EnrichConcurrency:  feature.DefaultEnrichConcurrency,
		SourceTimeout:      5 * time.Second,
		Metric:             "overlap",
		UserID:             DefaultUserID,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = d.DefaultLimit
	}
	if c.RatedThreshold <= 0 {
		c.RatedThreshold = d.RatedThreshold
	}
	if c.EmptyProfilePolicy == "" {
		c.EmptyProfilePolicy = d.EmptyProfilePolicy
	}
	if c.UserID == "" {
		c.UserID = d.UserID
	}
	return c
}

// Option 配置 Scorer。
type Option func(*Scorer)

func WithConfig(cfg Config) Option {
	return func(s *Scorer) { s.cfg = cfg }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scorer) { s.logger = l }
}

// WithClock 替换时钟，用于固定 CreatedAt。
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Scorer) { s.metrics = m }
}

func WithCollector(c feedback.Collector) Option {
	return func(s *Scorer) { s.collector = c }
}

// WithDismissed 启用“不感兴趣”集合：Dismiss 写入，默认链路过滤。
func WithDismissed(b core.Blocklist) Option {
	return func(s *Scorer) { s.dismissed = b }
}

// WithStore 指定链路节点共享的 KV 存储（精选召回、黑名单使用）。
func WithStore(kv core.KeyValueStore) Option {
	return func(s *Scorer) { s.kv = kv }
}

// WithPipeline 替换画像非空时的重算链路（如从 YAML 构建）。
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(s *Scorer) { s.pipeline = p }
}

// WithFallbackPipeline 替换空画像 popular 策略下的链路。
func WithFallbackPipeline(p *pipeline.Pipeline) Option {
	return func(s *Scorer) { s.fallback = p }
}

// Scorer 是推荐打分入口。
//
// 并发模型：
//   - ComputeRecommendations 在入口串行，同一时刻最多一次重算
//   - 画像构建、召回、补全都在锁外访问共享向量索引，每次 Compute 是独立的短临界区
//   - 写缓存（UpsertAll）是重算的最后一步；失败或取消时旧缓存保持不变
//   - 重算期间如发生收藏/评分变更，完成后缓存仍标记为 STALE
type Scorer struct {
	movies  core.MovieStore
	catalog core.CatalogClient
	vectors core.VectorIndex
	recs    core.RecommendationStore

	cfg       Config
	pipeline  *pipeline.Pipeline
	fallback  *pipeline.Pipeline
	dismissed core.Blocklist
	kv        core.KeyValueStore
	collector feedback.Collector
	metrics   *Metrics
	hydrator  *feature.Hydrator
	logger    zerolog.Logger
	now       func() time.Time

	// computeMu 串行化重算
	computeMu sync.Mutex

	// stateMu 保护 state 与 gen；gen 在每次失效时递增
	stateMu sync.Mutex
	state   State
	gen     uint64
}

// NewScorer 创建 Scorer；未通过 Option 指定链路时使用 DefaultPipeline / FallbackPipeline。
func NewScorer(
	movies core.MovieStore,
	catalog core.CatalogClient,
	vectors core.VectorIndex,
	recs core.RecommendationStore,
	opts ...Option,
) (*Scorer, error) {
	if movies == nil || catalog == nil || vectors == nil || recs == nil {
		return nil, fmt.Errorf("recommend: movie store, catalog, vector index and recommendation store are required: %w", core.ErrInvalidInput)
	}
	s := &Scorer{
		movies:    movies,
		catalog:   catalog,
		vectors:   vectors,
		recs:      recs,
		cfg:       DefaultConfig(),
		collector: feedback.Nop{},
		logger:    logging.With("recommend"),
		now:       time.Now,
		state:     StateStale,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = s.cfg.withDefaults()
	if s.collector == nil {
		s.collector = feedback.Nop{}
	}
	s.hydrator = &feature.Hydrator{Catalog: catalog, MaxCast: s.cfg.MaxCast, Now: s.now}

	res := s.Resources()
	if s.pipeline == nil {
		s.pipeline = DefaultPipeline(res, s.cfg)
	}
	if s.fallback == nil {
		s.fallback = FallbackPipeline(res, s.cfg)
	}
	return s, nil
}

// Resources 返回构建链路节点所需的共享依赖，供 YAML 链路复用。
func (s *Scorer) Resources() *pipeline.Resources {
	return &pipeline.Resources{
		Catalog:   s.catalog,
		Vectors:   s.vectors,
		Store:     s.kv,
		Dismissed: s.dismissed,
		OnSkip:    s.onSkip,
		Logger:    s.logger,
	}
}

// SetPipeline 在两次重算之间替换重算链路，nil 表示恢复默认链路。
func (s *Scorer) SetPipeline(p *pipeline.Pipeline) {
	if p == nil {
		p = DefaultPipeline(s.Resources(), s.cfg)
	}
	s.computeMu.Lock()
	s.pipeline = p
	s.computeMu.Unlock()
}

func (s *Scorer) onSkip(item *core.Item, err error) {
	reason := "enrich"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		reason = "canceled"
	}
	s.metrics.CandidateSkipped(reason)
}

// State 返回推荐缓存的逻辑状态。
func (s *Scorer) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Stats 是打分器的运行概况，用于健康检查。
type Stats struct {
	State      State `json:"state"`
	Vocabulary int   `json:"vocabulary"`
	// Dismissed 是“不感兴趣”集合的估算大小，未配置时为 -1
	Dismissed int64 `json:"dismissed"`
}

// approxCounter 由 filter.DismissedSet 实现。
type approxCounter interface {
	ApproximateCount(ctx context.Context) (uint32, error)
}

// Stats 返回当前状态、词表大小与已屏蔽影片的估算数。
func (s *Scorer) Stats(ctx context.Context) (Stats, error) {
	st := Stats{State: s.State(), Vocabulary: s.vectors.Size(), Dismissed: -1}
	if c, ok := s.dismissed.(approxCounter); ok {
		n, err := c.ApproximateCount(ctx)
		if err != nil {
			return st, fmt.Errorf("recommend: dismissed count: %w", err)
		}
		st.Dismissed = int64(n)
	}
	return st, nil
}

func (s *Scorer) generation() uint64 {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.gen
}

func (s *Scorer) markStale() {
	s.stateMu.Lock()
	s.gen++
	s.state = StateStale
	s.stateMu.Unlock()
}

// markFresh 只在重算开始后没有发生失效时生效。
func (s *Scorer) markFresh(gen uint64) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.gen != gen {
		return false
	}
	s.state = StateFresh
	return true
}

// ComputeRecommendations 重新计算推荐并原子替换缓存，返回刚写入的结果。
//
// limit < 0 返回 core.ErrInvalidInput；limit == 0 使用 Config.DefaultLimit。
// 画像构建失败、全部召回源失败或部分失败且没有候选时返回错误，缓存不变。
func (s *Scorer) ComputeRecommendations(ctx context.Context, limit int) ([]core.RecommendationEntry, error) {
	if limit < 0 {
		s.metrics.observeRecompute(ResultInvalid, 0)
		return nil, fmt.Errorf("recommend: limit %d: %w", limit, core.ErrInvalidInput)
	}
	if limit == 0 {
		limit = s.cfg.DefaultLimit
	}

	s.computeMu.Lock()
	defer s.computeMu.Unlock()

	start := time.Now()
	gen := s.generation()
	entries, err := s.compute(ctx, limit, gen)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		s.metrics.observeRecompute(ResultOK, elapsed)
	case ctx.Err() != nil:
		s.metrics.observeRecompute(ResultCanceled, elapsed)
		s.logger.Info().Err(err).Dur("elapsed", elapsed).Msg("recompute canceled")
	default:
		s.metrics.observeRecompute(ResultError, elapsed)
		s.logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("recompute failed")
	}
	return entries, err
}

func (s *Scorer) compute(ctx context.Context, limit int, gen uint64) ([]core.RecommendationEntry, error) {
	profile, exclude, err := s.buildProfile(ctx)
	if err != nil {
		return nil, err
	}
	rctx := &core.RecommendContext{
		UserID:  s.cfg.UserID,
		Scene:   "recommend",
		Profile: profile,
		Exclude: exclude,
		Params:  map[string]any{rerank.ParamLimit: limit},
	}
	s.logger.Debug().
		Int("limit", limit).
		Int("profile_sources", len(profile.Sources)).
		Int("vocabulary", s.vectors.Size()).
		Msg("recompute start")

	var items []*core.Item
	p := s.pipeline
	if profile.Empty() {
		p = nil
		if s.cfg.EmptyProfilePolicy == PolicyPopular {
			p = s.fallback
		}
	}
	if p != nil {
		items, err = p.Run(ctx, rctx, nil)
		if err != nil {
			return nil, fmt.Errorf("recommend: %w", err)
		}
	}
	if len(items) > limit {
		items = items[:limit]
	}

	// 写入前最后一次检查取消，之后只剩一次原子替换
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := s.entries(items)
	if err := s.recs.UpsertAll(ctx, entries); err != nil {
		return nil, fmt.Errorf("recommend: persist: %w", err)
	}
	fresh := s.markFresh(gen)

	s.logger.Info().
		Int("candidates", len(items)).
		Int("persisted", len(entries)).
		Bool("fresh", fresh).
		Bool("empty_profile", profile.Empty()).
		Msg("recompute done")

	if len(entries) > 0 {
		events := feedback.RecommendedEvents(entries, items, entries[0].CreatedAt)
		if err := s.collector.Record(ctx, events...); err != nil {
			s.logger.Warn().Err(err).Msg("record recommended events")
		}
	}
	return entries, nil
}

// buildProfile 用收藏影片与评分不低于阈值的影片构建画像；
// 所有收藏与评过分的影片都进入剔除集合。任一读取失败即中止。
func (s *Scorer) buildProfile(ctx context.Context) (*core.TasteProfile, map[int64]struct{}, error) {
	favorites, err := s.movies.GetFavorites(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("recommend: load favorites: %w", err)
	}
	rated, err := s.movies.GetRated(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("recommend: load rated: %w", err)
	}

	profile := &core.TasteProfile{}
	exclude := make(map[int64]struct{}, len(favorites)+len(rated))
	add := func(rec core.MovieRecord) {
		if _, dup := exclude[rec.ID]; dup {
			return
		}
		exclude[rec.ID] = struct{}{}
		profile.Add(s.vectors.Compute(rec))
	}
	for _, rec := range favorites {
		add(rec)
	}
	for _, rec := range rated {
		if rec.Rating >= s.cfg.RatedThreshold {
			add(rec)
			continue
		}
		exclude[rec.ID] = struct{}{}
	}
	return profile, exclude, nil
}

func (s *Scorer) entries(items []*core.Item) []core.RecommendationEntry {
	runID := uuid.NewString()
	at := s.now()
	out := make([]core.RecommendationEntry, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		e := core.RecommendationEntry{
			MovieID:   it.ID,
			Score:     it.Score,
			Rank:      len(out),
			RunID:     runID,
			CreatedAt: at,
		}
		if it.Movie != nil {
			e.Title = it.Movie.Title
		}
		out = append(out, e)
	}
	return out
}

// GetCachedRecommendations 读取缓存的推荐结果（按 Rank 升序），不触发重算。
func (s *Scorer) GetCachedRecommendations(ctx context.Context) ([]core.RecommendationEntry, error) {
	entries, err := s.recs.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("recommend: get cached: %w", err)
	}
	return entries, nil
}

// ObserveRecommendations 返回缓存的实时序列，ctx 结束时关闭。
func (s *Scorer) ObserveRecommendations(ctx context.Context) (<-chan []core.RecommendationEntry, error) {
	return s.recs.ObserveAll(ctx)
}

// InvalidateCache 清空推荐缓存，不影响向量缓存。
func (s *Scorer) InvalidateCache(ctx context.Context) error {
	s.markStale()
	if err := s.recs.Clear(ctx); err != nil {
		return fmt.Errorf("recommend: clear cache: %w", err)
	}
	return nil
}

// SetFavorite 更新收藏标记并使推荐缓存失效。
// 收藏本地不存在的影片时先从目录补全并写入影片库。
func (s *Scorer) SetFavorite(ctx context.Context, movieID int64, favorite bool) error {
	err := s.movies.UpdateFavoriteFlag(ctx, movieID, favorite)
	if errors.Is(err, core.ErrMovieNotFound) && favorite {
		err = s.importMovie(ctx, movieID, func(rec *core.MovieRecord) { rec.Favorite = true })
	}
	if err != nil {
		return fmt.Errorf("recommend: set favorite %d: %w", movieID, err)
	}

	typ := feedback.TypeFavorite
	if !favorite {
		typ = feedback.TypeUnfavorite
	}
	return s.changed(ctx, feedback.Event{Type: typ, MovieID: movieID})
}

// SetRating 更新评分（0 表示取消）并使推荐缓存失效，评分范围 [0, 10]，NaN 视为非法。
func (s *Scorer) SetRating(ctx context.Context, movieID int64, rating float64) error {
	if !(rating >= 0 && rating <= 10) {
		return fmt.Errorf("recommend: rating %v out of range: %w", rating, core.ErrInvalidInput)
	}
	err := s.movies.UpdateRating(ctx, movieID, rating)
	if errors.Is(err, core.ErrMovieNotFound) && rating > 0 {
		err = s.importMovie(ctx, movieID, func(rec *core.MovieRecord) { rec.Rating = rating })
	}
	if err != nil {
		return fmt.Errorf("recommend: set rating %d: %w", movieID, err)
	}
	return s.changed(ctx, feedback.Event{Type: feedback.TypeRated, MovieID: movieID, Value: rating})
}

// Dismiss 把影片加入“不感兴趣”集合并使推荐缓存失效。
func (s *Scorer) Dismiss(ctx context.Context, movieID int64) error {
	if s.dismissed == nil {
		return core.NewDomainError(core.ModuleRecommend, core.ErrorCodeNotSupported, "recommend: dismissed set not configured")
	}
	if err := s.dismissed.Add(ctx, movieID); err != nil {
		return fmt.Errorf("recommend: dismiss %d: %w", movieID, err)
	}
	return s.changed(ctx, feedback.Event{Type: feedback.TypeDismissed, MovieID: movieID})
}

// importMovie 从目录补全影片并写入影片库；特征数据是新的，旧向量缓存一并失效。
func (s *Scorer) importMovie(ctx context.Context, movieID int64, mutate func(*core.MovieRecord)) error {
	rec, err := s.hydrator.Hydrate(ctx, core.MovieRecord{ID: movieID})
	if err != nil {
		return err
	}
	mutate(&rec)
	if err := s.movies.Upsert(ctx, rec); err != nil {
		return err
	}
	s.vectors.Invalidate(movieID)
	return nil
}

func (s *Scorer) changed(ctx context.Context, ev feedback.Event) error {
	if err := s.InvalidateCache(ctx); err != nil {
		return err
	}
	ev.Timestamp = s.now().Unix()
	if err := s.collector.Record(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("type", string(ev.Type)).Msg("record feedback")
	}
	return nil
}
