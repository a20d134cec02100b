package core

import "github.com/rushteam/reelkit/pkg/utils"

// RecommendContext 承载用户/场景/画像信息，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID string
	Scene  string

	// Profile 是本次重算构建的口味画像，为空时走兜底策略
	Profile *TasteProfile

	// Exclude 是本地影片库中已收藏/已评分的影片，候选阶段需要剔除
	Exclude map[int64]struct{}

	// Labels 是用户级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级参数，例如 limit
	Params map[string]any
}

// Excluded 判断影片是否在剔除集合中。
func (rctx *RecommendContext) Excluded(id int64) bool {
	if rctx == nil || rctx.Exclude == nil {
		return false
	}
	_, ok := rctx.Exclude[id]
	return ok
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
