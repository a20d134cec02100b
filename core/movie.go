package core

import (
	"context"
	"time"
)

// MovieRecord 是本地影片库中的影片记录，也是内容向量的输入。
// 特征集合允许为空；没有导演时 DirectorID 为 nil，不产生占位特征。
type MovieRecord struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	GenreIDs    []int64   `json:"genre_ids"`
	CastIDs     []int64   `json:"cast_ids"`
	DirectorID  *int64    `json:"director_id,omitempty"`
	KeywordIDs  []int64   `json:"keyword_ids"`
	Favorite    bool      `json:"favorite"`
	Rating      float64   `json:"rating"` // 0 表示未评分
	VoteAverage float64   `json:"vote_average"`
	Popularity  float64   `json:"popularity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Rated 返回用户是否评过分。
func (m MovieRecord) Rated() bool {
	return m.Rating > 0
}

// Genre 是类型字典条目，仅用于展示。
type Genre struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Candidate 是远端目录返回的影片摘要（discover / popular / trending 列表项）。
type Candidate struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	GenreIDs    []int64 `json:"genre_ids"`
	VoteAverage float64 `json:"vote_average"`
	Popularity  float64 `json:"popularity"`
}

// Record 将摘要转换为尚未补全演职员与关键词的影片记录。
func (c Candidate) Record() MovieRecord {
	return MovieRecord{
		ID:          c.ID,
		Title:       c.Title,
		GenreIDs:    append([]int64(nil), c.GenreIDs...),
		VoteAverage: c.VoteAverage,
		Popularity:  c.Popularity,
	}
}

// MovieDetails 是远端目录的影片详情。
type MovieDetails struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	Genres      []Genre `json:"genres"`
	VoteAverage float64 `json:"vote_average"`
	Popularity  float64 `json:"popularity"`
}

// CastMember 是演员条目，Order 为片头署名顺序。
type CastMember struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Character string `json:"character,omitempty" yaml:"character,omitempty"`
	Order     int    `json:"order" yaml:"order"`
}

// CrewMember 是幕后人员条目。
type CrewMember struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Job  string `json:"job" yaml:"job"`
}

// Credits 是影片演职员表。
type Credits struct {
	ID   int64        `json:"id"`
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// Director 返回第一位 Job 为 Director 的成员。
func (c Credits) Director() (CrewMember, bool) {
	for _, m := range c.Crew {
		if m.Job == "Director" {
			return m, true
		}
	}
	return CrewMember{}, false
}

// Keyword 是影片关键词。
type Keyword struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// MovieStore 是本地影片库的领域接口。
//
// 实现：
//   - store.KVMovieStore（基于任意 KeyValueStore）
//   - store.PostgresMovieStore（lib/pq）
type MovieStore interface {
	// GetByID 读取影片，不存在时返回 ErrMovieNotFound
	GetByID(ctx context.Context, id int64) (MovieRecord, error)

	// GetFavorites 返回所有收藏影片
	GetFavorites(ctx context.Context) ([]MovieRecord, error)

	// GetRated 返回所有评过分（Rating > 0）的影片
	GetRated(ctx context.Context) ([]MovieRecord, error)

	// Upsert 写入或覆盖影片记录
	Upsert(ctx context.Context, rec MovieRecord) error

	// UpdateFavoriteFlag 更新收藏标记，影片不存在时返回 ErrMovieNotFound
	UpdateFavoriteFlag(ctx context.Context, id int64, favorite bool) error

	// UpdateRating 更新评分（0 表示取消评分），影片不存在时返回 ErrMovieNotFound
	UpdateRating(ctx context.Context, id int64, rating float64) error
}

// GenreStore 是类型字典的领域接口，只用于展示。
type GenreStore interface {
	GetAllGenres(ctx context.Context) ([]Genre, error)
	UpsertGenres(ctx context.Context, genres []Genre) error
}

// CatalogClient 是远端影片目录的领域接口。
// 网络与解析失败以 catalog 模块的 DomainError 返回（UNAVAILABLE / NOT_FOUND），调用方可重试。
//
// 实现：
//   - catalog.TMDBClient（HTTP）
//   - catalog.FileClient（YAML 快照）
type CatalogClient interface {
	GetMovieDetails(ctx context.Context, id int64) (MovieDetails, error)
	GetCredits(ctx context.Context, id int64) (Credits, error)
	GetKeywords(ctx context.Context, id int64) ([]Keyword, error)
	DiscoverByGenres(ctx context.Context, genreIDs []int64) ([]Candidate, error)
	GetPopular(ctx context.Context) ([]Candidate, error)
	GetTrending(ctx context.Context) ([]Candidate, error)
}
