package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/reelkit/core"
)

// 影片库在 KeyValueStore 中的布局
const (
	movieHashKey     = "movies"
	favoritesZSetKey = "movies:favorites" // score = 收藏时间（unix 秒）
	ratedZSetKey     = "movies:rated"     // score = 用户评分
	genreHashKey     = "genres"
)

// KVMovieStore 是基于任意 KeyValueStore 的本地影片库。
// 记录以 JSON 存在 Hash 中，收藏与评分各维护一个有序集合索引。
type KVMovieStore struct {
	kv  core.KeyValueStore
	now func() time.Time
}

func NewKVMovieStore(kv core.KeyValueStore) *KVMovieStore {
	return &KVMovieStore{kv: kv, now: time.Now}
}

var (
	_ core.MovieStore = (*KVMovieStore)(nil)
	_ core.GenreStore = (*KVMovieStore)(nil)
)

func (s *KVMovieStore) GetByID(ctx context.Context, id int64) (core.MovieRecord, error) {
	data, err := s.kv.HGet(ctx, movieHashKey, movieField(id))
	if core.IsStoreNotFound(err) {
		return core.MovieRecord{}, core.ErrMovieNotFound
	}
	if err != nil {
		return core.MovieRecord{}, fmt.Errorf("store: get movie %d: %w", id, err)
	}
	var rec core.MovieRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.MovieRecord{}, fmt.Errorf("store: decode movie %d: %w", id, err)
	}
	return rec, nil
}

// GetFavorites 按收藏时间倒序返回。
func (s *KVMovieStore) GetFavorites(ctx context.Context) ([]core.MovieRecord, error) {
	return s.byIndex(ctx, favoritesZSetKey)
}

// GetRated 按评分倒序返回。
func (s *KVMovieStore) GetRated(ctx context.Context) ([]core.MovieRecord, error) {
	return s.byIndex(ctx, ratedZSetKey)
}

func (s *KVMovieStore) Upsert(ctx context.Context, rec core.MovieRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: encode movie %d: %w", rec.ID, err)
	}
	if err := s.kv.HSet(ctx, movieHashKey, movieField(rec.ID), data); err != nil {
		return fmt.Errorf("store: put movie %d: %w", rec.ID, err)
	}
	return s.reindex(ctx, rec)
}

func (s *KVMovieStore) UpdateFavoriteFlag(ctx context.Context, id int64, favorite bool) error {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	rec.Favorite = favorite
	rec.UpdatedAt = s.now()
	return s.Upsert(ctx, rec)
}

func (s *KVMovieStore) UpdateRating(ctx context.Context, id int64, rating float64) error {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	rec.Rating = rating
	rec.UpdatedAt = s.now()
	return s.Upsert(ctx, rec)
}

// GetAllGenres 按 ID 升序返回。
func (s *KVMovieStore) GetAllGenres(ctx context.Context) ([]core.Genre, error) {
	all, err := s.kv.HGetAll(ctx, genreHashKey)
	if err != nil {
		return nil, fmt.Errorf("store: list genres: %w", err)
	}
	out := make([]core.Genre, 0, len(all))
	for _, data := range all {
		var g core.Genre
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("store: decode genre: %w", err)
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *KVMovieStore) UpsertGenres(ctx context.Context, genres []core.Genre) error {
	for _, g := range genres {
		data, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("store: encode genre %d: %w", g.ID, err)
		}
		if err := s.kv.HSet(ctx, genreHashKey, movieField(g.ID), data); err != nil {
			return fmt.Errorf("store: put genre %d: %w", g.ID, err)
		}
	}
	return nil
}

func (s *KVMovieStore) reindex(ctx context.Context, rec core.MovieRecord) error {
	member := movieField(rec.ID)
	var err error
	if rec.Favorite {
		err = s.kv.ZAdd(ctx, favoritesZSetKey, float64(rec.UpdatedAt.Unix()), member)
	} else {
		err = s.kv.ZRem(ctx, favoritesZSetKey, member)
	}
	if err != nil {
		return fmt.Errorf("store: index favorite %d: %w", rec.ID, err)
	}
	if rec.Rated() {
		err = s.kv.ZAdd(ctx, ratedZSetKey, rec.Rating, member)
	} else {
		err = s.kv.ZRem(ctx, ratedZSetKey, member)
	}
	if err != nil {
		return fmt.Errorf("store: index rating %d: %w", rec.ID, err)
	}
	return nil
}

func (s *KVMovieStore) byIndex(ctx context.Context, zkey string) ([]core.MovieRecord, error) {
	members, err := s.kv.ZRange(ctx, zkey, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("store: range %s: %w", zkey, err)
	}
	out := make([]core.MovieRecord, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		rec, err := s.GetByID(ctx, id)
		if core.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func movieField(id int64) string {
	return strconv.FormatInt(id, 10)
}
