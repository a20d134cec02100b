package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/reelkit/core"
)

// Snapshot 是离线目录快照的 YAML 结构。
//
//	genres:
//	  - {id: 28, name: Action}
//	movies:
//	  - id: 949
//	    title: Heat
//	    genre_ids: [28, 80]
//	    cast: [{id: 1158, name: Al Pacino, order: 0}]
//	    crew: [{id: 6593, name: Michael Mann, job: Director}]
//	    keywords: [{id: 642, name: robbery}]
//	    vote_average: 7.9
//	    popularity: 61.3
//	    trending: true
type Snapshot struct {
	Genres []core.Genre     `yaml:"genres"`
	Movies []SnapshotMovie `yaml:"movies"`
}

// SnapshotMovie 是快照中的一部影片。
type SnapshotMovie struct {
	ID          int64             `yaml:"id"`
	Title       string            `yaml:"title"`
	Overview    string            `yaml:"overview"`
	ReleaseDate string            `yaml:"release_date"`
	GenreIDs    []int64           `yaml:"genre_ids"`
	Cast        []core.CastMember `yaml:"cast"`
	Crew        []core.CrewMember `yaml:"crew"`
	Keywords    []core.Keyword    `yaml:"keywords"`
	VoteAverage float64           `yaml:"vote_average"`
	Popularity  float64           `yaml:"popularity"`
	Trending    bool              `yaml:"trending"`
}

func (m SnapshotMovie) candidate() core.Candidate {
	return core.Candidate{
		ID:          m.ID,
		Title:       m.Title,
		GenreIDs:    append([]int64(nil), m.GenreIDs...),
		VoteAverage: m.VoteAverage,
		Popularity:  m.Popularity,
	}
}

// FileClient 是基于 YAML 快照的只读目录，用于离线运行与测试。
// 列表接口按热度降序返回，同热度按 ID 升序。
type FileClient struct {
	mu     sync.RWMutex
	genres map[int64]core.Genre
	movies map[int64]SnapshotMovie
	order  []int64 // 按热度排好序的 ID
}

var _ core.CatalogClient = (*FileClient)(nil)

// NewFileClient 从已解析的快照创建客户端。
func NewFileClient(s Snapshot) *FileClient {
	c := &FileClient{}
	c.load(s)
	return c
}

// LoadFileClient 读取并解析 YAML 快照文件。
func LoadFileClient(path string) (*FileClient, error) {
	s, err := readSnapshot(path)
	if err != nil {
		return nil, err
	}
	return NewFileClient(s), nil
}

// Reload 重新读取快照文件，失败时保留旧数据。
func (c *FileClient) Reload(path string) error {
	s, err := readSnapshot(path)
	if err != nil {
		return err
	}
	c.load(s)
	return nil
}

func readSnapshot(path string) (Snapshot, error) {
	var s Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("catalog: read snapshot: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("catalog: parse snapshot: %w", err)
	}
	return s, nil
}

func (c *FileClient) load(s Snapshot) {
	genres := make(map[int64]core.Genre, len(s.Genres))
	for _, g := range s.Genres {
		genres[g.ID] = g
	}
	movies := make(map[int64]SnapshotMovie, len(s.Movies))
	order := make([]int64, 0, len(s.Movies))
	for _, m := range s.Movies {
		if _, dup := movies[m.ID]; !dup {
			order = append(order, m.ID)
		}
		movies[m.ID] = m
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := movies[order[i]], movies[order[j]]
		if a.Popularity != b.Popularity {
			return a.Popularity > b.Popularity
		}
		return a.ID < b.ID
	})

	c.mu.Lock()
	c.genres, c.movies, c.order = genres, movies, order
	c.mu.Unlock()
}

// Genres 返回快照中的类型字典，按 ID 升序。
func (c *FileClient) Genres() []core.Genre {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.Genre, 0, len(c.genres))
	for _, g := range c.genres {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *FileClient) movie(ctx context.Context, id int64) (SnapshotMovie, error) {
	if err := ctx.Err(); err != nil {
		return SnapshotMovie{}, err
	}
	c.mu.RLock()
	m, ok := c.movies[id]
	c.mu.RUnlock()
	if !ok {
		return m, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeNotFound, fmt.Sprintf("catalog: movie %d not found", id))
	}
	return m, nil
}

func (c *FileClient) GetMovieDetails(ctx context.Context, id int64) (core.MovieDetails, error) {
	m, err := c.movie(ctx, id)
	if err != nil {
		return core.MovieDetails{}, err
	}
	d := core.MovieDetails{
		ID:          m.ID,
		Title:       m.Title,
		Overview:    m.Overview,
		ReleaseDate: m.ReleaseDate,
		VoteAverage: m.VoteAverage,
		Popularity:  m.Popularity,
	}
	c.mu.RLock()
	for _, gid := range m.GenreIDs {
		g, ok := c.genres[gid]
		if !ok {
			g = core.Genre{ID: gid}
		}
		d.Genres = append(d.Genres, g)
	}
	c.mu.RUnlock()
	return d, nil
}

func (c *FileClient) GetCredits(ctx context.Context, id int64) (core.Credits, error) {
	m, err := c.movie(ctx, id)
	if err != nil {
		return core.Credits{}, err
	}
	return core.Credits{
		ID:   m.ID,
		Cast: append([]core.CastMember(nil), m.Cast...),
		Crew: append([]core.CrewMember(nil), m.Crew...),
	}, nil
}

func (c *FileClient) GetKeywords(ctx context.Context, id int64) ([]core.Keyword, error) {
	m, err := c.movie(ctx, id)
	if err != nil {
		return nil, err
	}
	return append([]core.Keyword(nil), m.Keywords...), nil
}

func (c *FileClient) DiscoverByGenres(ctx context.Context, genreIDs []int64) ([]core.Candidate, error) {
	want := make(map[int64]struct{}, len(genreIDs))
	for _, id := range genreIDs {
		want[id] = struct{}{}
	}
	return c.filter(ctx, func(m SnapshotMovie) bool {
		for _, g := range m.GenreIDs {
			if _, ok := want[g]; ok {
				return true
			}
		}
		return false
	})
}

func (c *FileClient) GetPopular(ctx context.Context) ([]core.Candidate, error) {
	return c.filter(ctx, func(SnapshotMovie) bool { return true })
}

func (c *FileClient) GetTrending(ctx context.Context) ([]core.Candidate, error) {
	return c.filter(ctx, func(m SnapshotMovie) bool { return m.Trending })
}

func (c *FileClient) filter(ctx context.Context, keep func(SnapshotMovie) bool) ([]core.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.Candidate, 0)
	for _, id := range c.order {
		m := c.movies[id]
		if keep(m) {
			out = append(out, m.candidate())
		}
	}
	return out, nil
}
