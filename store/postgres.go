package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/rushteam/reelkit/core"
)

// PostgresConfig 是 PostgresMovieStore 的连接配置。
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresMovieStore 是基于 PostgreSQL 的本地影片库（lib/pq）。
// 特征 ID 集合存为 bigint[]，收藏/评分查询走部分索引。
type PostgresMovieStore struct {
	db *sql.DB
}

const movieSchema = `
CREATE TABLE IF NOT EXISTS movies (
	id           BIGINT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	genre_ids    BIGINT[] NOT NULL DEFAULT '{}',
	cast_ids     BIGINT[] NOT NULL DEFAULT '{}',
	director_id  BIGINT,
	keyword_ids  BIGINT[] NOT NULL DEFAULT '{}',
	favorite     BOOLEAN NOT NULL DEFAULT FALSE,
	rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
	vote_average DOUBLE PRECISION NOT NULL DEFAULT 0,
	popularity   DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS movies_favorite_idx ON movies (updated_at DESC) WHERE favorite;
CREATE INDEX IF NOT EXISTS movies_rated_idx ON movies (rating DESC) WHERE rating > 0;
CREATE TABLE IF NOT EXISTS genres (
	id   BIGINT PRIMARY KEY,
	name TEXT NOT NULL
);`

const movieColumns = `id, title, genre_ids, cast_ids, director_id, keyword_ids, favorite, rating, vote_average, popularity, updated_at`

// OpenPostgresMovieStore 打开连接池并 Ping 一次。
func OpenPostgresMovieStore(ctx context.Context, cfg PostgresConfig) (*PostgresMovieStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &PostgresMovieStore{db: db}, nil
}

// NewPostgresMovieStore 使用已有的 *sql.DB。
func NewPostgresMovieStore(db *sql.DB) *PostgresMovieStore {
	return &PostgresMovieStore{db: db}
}

var (
	_ core.MovieStore = (*PostgresMovieStore)(nil)
	_ core.GenreStore = (*PostgresMovieStore)(nil)
)

// Migrate 创建表与索引（幂等）。
func (s *PostgresMovieStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, movieSchema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *PostgresMovieStore) Close() error {
	return s.db.Close()
}

func (s *PostgresMovieStore) GetByID(ctx context.Context, id int64) (core.MovieRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = $1`, id)
	rec, err := scanMovie(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MovieRecord{}, core.ErrMovieNotFound
	}
	if err != nil {
		return core.MovieRecord{}, fmt.Errorf("store: get movie %d: %w", id, err)
	}
	return rec, nil
}

func (s *PostgresMovieStore) GetFavorites(ctx context.Context) ([]core.MovieRecord, error) {
	return s.query(ctx, `SELECT `+movieColumns+` FROM movies WHERE favorite ORDER BY updated_at DESC, id`)
}

func (s *PostgresMovieStore) GetRated(ctx context.Context) ([]core.MovieRecord, error) {
	return s.query(ctx, `SELECT `+movieColumns+` FROM movies WHERE rating > 0 ORDER BY rating DESC, id`)
}

func (s *PostgresMovieStore) Upsert(ctx context.Context, rec core.MovieRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	var director sql.NullInt64
	if rec.DirectorID != nil {
		director = sql.NullInt64{Int64: *rec.DirectorID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO movies (`+movieColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	genre_ids = EXCLUDED.genre_ids,
	cast_ids = EXCLUDED.cast_ids,
	director_id = EXCLUDED.director_id,
	keyword_ids = EXCLUDED.keyword_ids,
	favorite = EXCLUDED.favorite,
	rating = EXCLUDED.rating,
	vote_average = EXCLUDED.vote_average,
	popularity = EXCLUDED.popularity,
	updated_at = EXCLUDED.updated_at`,
		rec.ID, rec.Title,
		pq.Array(nonNil(rec.GenreIDs)), pq.Array(nonNil(rec.CastIDs)), director, pq.Array(nonNil(rec.KeywordIDs)),
		rec.Favorite, rec.Rating, rec.VoteAverage, rec.Popularity, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: upsert movie %d: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresMovieStore) UpdateFavoriteFlag(ctx context.Context, id int64, favorite bool) error {
	return s.update(ctx, id, `UPDATE movies SET favorite = $2, updated_at = now() WHERE id = $1`, favorite)
}

func (s *PostgresMovieStore) UpdateRating(ctx context.Context, id int64, rating float64) error {
	return s.update(ctx, id, `UPDATE movies SET rating = $2, updated_at = now() WHERE id = $1`, rating)
}

func (s *PostgresMovieStore) GetAllGenres(ctx context.Context) ([]core.Genre, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM genres ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list genres: %w", err)
	}
	defer rows.Close()

	var out []core.Genre
	for rows.Next() {
		var g core.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("store: scan genre: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PostgresMovieStore) UpsertGenres(ctx context.Context, genres []core.Genre) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, g := range genres {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO genres (id, name) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
				g.ID, g.Name); err != nil {
				return fmt.Errorf("store: upsert genre %d: %w", g.ID, err)
			}
		}
		return nil
	})
}

func (s *PostgresMovieStore) update(ctx context.Context, id int64, stmt string, arg any) error {
	res, err := s.db.ExecContext(ctx, stmt, id, arg)
	if err != nil {
		return fmt.Errorf("store: update movie %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update movie %d: %w", id, err)
	}
	if n == 0 {
		return core.ErrMovieNotFound
	}
	return nil
}

func (s *PostgresMovieStore) query(ctx context.Context, q string) ([]core.MovieRecord, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: query movies: %w", err)
	}
	defer rows.Close()

	var out []core.MovieRecord
	for rows.Next() {
		rec, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan movie: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresMovieStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: rollback after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (core.MovieRecord, error) {
	var (
		rec      core.MovieRecord
		genres   pq.Int64Array
		cast     pq.Int64Array
		keywords pq.Int64Array
		director sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.Title, &genres, &cast, &director, &keywords,
		&rec.Favorite, &rec.Rating, &rec.VoteAverage, &rec.Popularity, &rec.UpdatedAt)
	if err != nil {
		return core.MovieRecord{}, err
	}
	rec.GenreIDs = []int64(genres)
	rec.CastIDs = []int64(cast)
	rec.KeywordIDs = []int64(keywords)
	if director.Valid {
		id := director.Int64
		rec.DirectorID = &id
	}
	return rec, nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
