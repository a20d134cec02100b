// Package api 通过 HTTP 暴露推荐结果与用户反馈操作。
package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/recommend"
)

// Recommender 是 Handler 依赖的推荐能力，由 recommend.Scorer 实现。
type Recommender interface {
	ComputeRecommendations(ctx context.Context, limit int) ([]core.RecommendationEntry, error)
	GetCachedRecommendations(ctx context.Context) ([]core.RecommendationEntry, error)
	InvalidateCache(ctx context.Context) error
	SetFavorite(ctx context.Context, movieID int64, favorite bool) error
	SetRating(ctx context.Context, movieID int64, rating float64) error
	Dismiss(ctx context.Context, movieID int64) error
	State() recommend.State
	Stats(ctx context.Context) (recommend.Stats, error)
}

var _ Recommender = (*recommend.Scorer)(nil)

// DefaultComputeTimeout 是单次重算请求的超时。
const DefaultComputeTimeout = 30 * time.Second

// Handler 实现各 HTTP 接口。
type Handler struct {
	rec            Recommender
	logger         zerolog.Logger
	computeTimeout time.Duration
	now            func() time.Time
	validate       *validator.Validate
}

func NewHandler(rec Recommender, logger zerolog.Logger) *Handler {
	return &Handler{
		rec:            rec,
		logger:         logger,
		computeTimeout: DefaultComputeTimeout,
		now:            time.Now,
		validate:       validator.New(),
	}
}

// RecommendationsResponse 是推荐列表接口的返回数据。
type RecommendationsResponse struct {
	State   recommend.State            `json:"state"`
	Count   int                        `json:"count"`
	Entries []core.RecommendationEntry `json:"entries"`
}

func (h *Handler) list(state recommend.State, entries []core.RecommendationEntry) RecommendationsResponse {
	if entries == nil {
		entries = []core.RecommendationEntry{}
	}
	return RecommendationsResponse{State: state, Count: len(entries), Entries: entries}
}

// GetRecommendations 处理 GET /v1/recommendations，只读缓存。
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	entries, err := h.rec.GetCachedRecommendations(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.list(h.rec.State(), entries))
}

// RefreshRecommendations 处理 POST /v1/recommendations/refresh?limit=N。
func (h *Handler) RefreshRecommendations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "limit must be an integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.computeTimeout)
	defer cancel()

	entries, err := h.rec.ComputeRecommendations(ctx, limit)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.list(h.rec.State(), entries))
}

// InvalidateRecommendations 处理 DELETE /v1/recommendations。
func (h *Handler) InvalidateRecommendations(w http.ResponseWriter, r *http.Request) {
	if err := h.rec.InvalidateCache(r.Context()); err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Favorite 处理 PUT / DELETE /v1/movies/{id}/favorite。
func (h *Handler) Favorite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.movieID(w, r)
	if !ok {
		return
	}
	if err := h.rec.SetFavorite(r.Context(), id, r.Method == http.MethodPut); err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RatingRequest 是评分接口的请求体，rating 为 0 表示取消评分。
type RatingRequest struct {
	Rating *float64 `json:"rating" validate:"required,gte=0,lte=10"`
}

// Rate 处理 PUT /v1/movies/{id}/rating。
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.movieID(w, r)
	if !ok {
		return
	}
	var req RatingRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err == nil {
		err = h.validate.Struct(&req)
	}
	if err != nil {
		h.respondError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "body must be {\"rating\": 0..10}")
		return
	}
	if err := h.rec.SetRating(r.Context(), id, *req.Rating); err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dismiss 处理 POST /v1/movies/{id}/dismiss。
func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, ok := h.movieID(w, r)
	if !ok {
		return
	}
	if err := h.rec.Dismiss(r.Context(), id); err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health 处理 GET /healthz，返回状态、词表大小与屏蔽集合估算大小。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st, err := h.rec.Stats(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, st)
}

func (h *Handler) movieID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "movie id must be a positive integer")
		return 0, false
	}
	return id, true
}
