// Package catalog 提供 core.CatalogClient 的实现：TMDB HTTP 客户端与 YAML 快照客户端。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/rushteam/reelkit/core"
)

const (
	DefaultBaseURL = "https://api.themoviedb.org/3"
	DefaultTimeout = 10 * time.Second
)

// TMDBClient 是 TMDB v3 API 客户端。
//
// 每个请求先经过令牌桶限流，再经过熔断器；404 不计入熔断失败。
// 重试与退避不在客户端内处理，由调用方决定。
type TMDBClient struct {
	baseURL     string
	apiKey      string
	bearerToken string
	language    string
	pages       int

	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     zerolog.Logger

	// onRequest 在每次请求结束后回调（endpoint, status），用于监控
	onRequest func(endpoint, status string)
}

// TMDBOption 是 TMDBClient 的可选配置。
type TMDBOption func(*TMDBClient)

// WithBaseURL 设置 API 根地址（测试时指向 httptest.Server）。
func WithBaseURL(u string) TMDBOption {
	return func(c *TMDBClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithBearerToken 使用 v4 Read Access Token 认证，代替 api_key 参数。
func WithBearerToken(token string) TMDBOption {
	return func(c *TMDBClient) { c.bearerToken = token }
}

// WithLanguage 设置 language 参数，例如 "en-US"。
func WithLanguage(lang string) TMDBOption {
	return func(c *TMDBClient) { c.language = lang }
}

// WithPages 设置列表接口（discover/popular/trending）拉取的页数。
func WithPages(n int) TMDBOption {
	return func(c *TMDBClient) {
		if n > 0 {
			c.pages = n
		}
	}
}

// WithHTTPClient 使用自定义 http.Client。
func WithHTTPClient(hc *http.Client) TMDBOption {
	return func(c *TMDBClient) { c.httpClient = hc }
}

// WithTimeout 设置单次请求超时。
func WithTimeout(d time.Duration) TMDBOption {
	return func(c *TMDBClient) { c.httpClient.Timeout = d }
}

// WithRateLimit 设置每秒请求数与突发量，rps <= 0 表示不限流。
func WithRateLimit(rps float64, burst int) TMDBOption {
	return func(c *TMDBClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// BreakerConfig 是熔断器参数。
type BreakerConfig struct {
	MaxRequests      uint32        `koanf:"max_requests"`      // 半开状态允许的探测请求数
	Interval         time.Duration `koanf:"interval"`          // 闭合状态下计数清零周期
	Timeout          time.Duration `koanf:"timeout"`           // 打开状态持续时间
	FailureThreshold uint32        `koanf:"failure_threshold"` // 连续失败多少次后打开
}

// WithBreaker 设置熔断器参数。
func WithBreaker(cfg BreakerConfig) TMDBOption {
	return func(c *TMDBClient) { c.breaker = c.newBreaker(cfg) }
}

// WithLogger 设置日志。
func WithLogger(l zerolog.Logger) TMDBOption {
	return func(c *TMDBClient) { c.logger = l }
}

// WithRequestHook 设置请求结束回调。
func WithRequestHook(fn func(endpoint, status string)) TMDBOption {
	return func(c *TMDBClient) { c.onRequest = fn }
}

// NewTMDBClient 创建客户端；默认 40 rps 限流、连续 5 次失败熔断 30 秒。
func NewTMDBClient(apiKey string, opts ...TMDBOption) *TMDBClient {
	c := &TMDBClient{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		pages:      1,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(40, 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = c.newBreaker(BreakerConfig{})
	}
	return c
}

var _ core.CatalogClient = (*TMDBClient)(nil)

func (c *TMDBClient) newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[[]byte] {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tmdb",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || core.IsNotFound(err) || errors.Is(err, context.Canceled)
		},
	})
}

// BreakerState 返回熔断器状态（closed / half-open / open）。
func (c *TMDBClient) BreakerState() string {
	return c.breaker.State().String()
}

func (c *TMDBClient) GetMovieDetails(ctx context.Context, id int64) (core.MovieDetails, error) {
	var out core.MovieDetails
	err := c.get(ctx, "details", "/movie/"+strconv.FormatInt(id, 10), nil, &out)
	return out, err
}

func (c *TMDBClient) GetCredits(ctx context.Context, id int64) (core.Credits, error) {
	var out core.Credits
	err := c.get(ctx, "credits", "/movie/"+strconv.FormatInt(id, 10)+"/credits", nil, &out)
	return out, err
}

func (c *TMDBClient) GetKeywords(ctx context.Context, id int64) ([]core.Keyword, error) {
	var out keywordsResponse
	if err := c.get(ctx, "keywords", "/movie/"+strconv.FormatInt(id, 10)+"/keywords", nil, &out); err != nil {
		return nil, err
	}
	return out.Keywords, nil
}

// DiscoverByGenres 查询包含任一类型的影片（with_genres 以 "|" 连接），按热度排序。
func (c *TMDBClient) DiscoverByGenres(ctx context.Context, genreIDs []int64) ([]core.Candidate, error) {
	if len(genreIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(genreIDs))
	for _, id := range genreIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	q := url.Values{}
	q.Set("with_genres", strings.Join(ids, "|"))
	q.Set("sort_by", "popularity.desc")
	return c.list(ctx, "discover", "/discover/movie", q)
}

func (c *TMDBClient) GetPopular(ctx context.Context) ([]core.Candidate, error) {
	return c.list(ctx, "popular", "/movie/popular", nil)
}

func (c *TMDBClient) GetTrending(ctx context.Context) ([]core.Candidate, error) {
	return c.list(ctx, "trending", "/trending/movie/week", nil)
}

func (c *TMDBClient) list(ctx context.Context, endpoint, path string, q url.Values) ([]core.Candidate, error) {
	var out []core.Candidate
	for page := 1; page <= c.pages; page++ {
		pq := url.Values{}
		for k, v := range q {
			pq[k] = v
		}
		pq.Set("page", strconv.Itoa(page))

		var resp listResponse
		if err := c.get(ctx, endpoint, path, pq, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Results...)
		if resp.TotalPages > 0 && page >= resp.TotalPages {
			break
		}
	}
	return out, nil
}

func (c *TMDBClient) get(ctx context.Context, endpoint, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, "catalog: "+endpoint+" rate limited", err)
	}

	if q == nil {
		q = url.Values{}
	}
	if c.bearerToken == "" && c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	if c.language != "" {
		q.Set("language", c.language)
	}
	reqURL := c.baseURL + path
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, endpoint, reqURL)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.observe(endpoint, "breaker_open")
		return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, "catalog: "+endpoint+" circuit open", err)
	case err != nil:
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.observe(endpoint, "decode_error")
		return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, "catalog: decode "+endpoint, err)
	}
	return nil
}

func (c *TMDBClient) do(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeInternalError, "catalog: build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, "transport_error")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, "catalog: "+endpoint+" request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	status := strconv.Itoa(resp.StatusCode)
	c.observe(endpoint, status)
	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("catalog request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeNotFound, "catalog: "+endpoint+" not found", nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable,
			fmt.Sprintf("catalog: %s status %d", endpoint, resp.StatusCode), nil)
	case err != nil:
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, "catalog: read "+endpoint, err)
	}
	return body, nil
}

func (c *TMDBClient) observe(endpoint, status string) {
	if c.onRequest != nil {
		c.onRequest(endpoint, status)
	}
}

type listResponse struct {
	Page       int              `json:"page"`
	Results    []core.Candidate `json:"results"`
	TotalPages int              `json:"total_pages"`
}

type keywordsResponse struct {
	ID       int64          `json:"id"`
	Keywords []core.Keyword `json:"keywords"`
}
