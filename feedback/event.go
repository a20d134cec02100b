// Package feedback 采集用户对影片的反馈（收藏、评分、不感兴趣）与推荐曝光事件，
// 供离线分析与画像回放使用。采集是异步、尽力而为的，不影响推荐主流程。
package feedback

import (
	"context"
	"strconv"
	"time"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pkg/utils"
)

// Type 反馈类型
type Type string

const (
	TypeFavorite    Type = "favorite"    // 收藏
	TypeUnfavorite  Type = "unfavorite"  // 取消收藏
	TypeRated       Type = "rated"       // 评分（Value 为分数，0 表示取消）
	TypeDismissed   Type = "dismissed"   // 不感兴趣
	TypeRecommended Type = "recommended" // 推荐曝光
)

// Event 反馈事件（轻量级，只包含必要信息）
type Event struct {
	ID        string            `json:"id,omitempty"`
	Type      Type              `json:"type"`
	MovieID   int64             `json:"movie_id"`
	Value     float64           `json:"value,omitempty"`    // 评分或推荐分数
	Position  int               `json:"position,omitempty"` // 推荐列表中的名次
	RunID     string            `json:"run_id,omitempty"`
	Timestamp int64             `json:"timestamp"` // Unix 时间戳（秒）
	Labels    map[string]string `json:"labels,omitempty"`
}

// Key 返回事件的分区 key，同一部影片的事件有序。
func (e Event) Key() string {
	return strconv.FormatInt(e.MovieID, 10)
}

// Collector 反馈收集器接口（异步非阻塞）
type Collector interface {
	// Record 记录事件；实现应尽快返回，不等待下游确认
	Record(ctx context.Context, events ...Event) error

	// Close 优雅关闭（等待缓冲数据发送完成）
	Close() error
}

// RecommendedEvents 把一次重算的结果转换为曝光事件，labels 取自对应候选。
func RecommendedEvents(entries []core.RecommendationEntry, items []*core.Item, at time.Time) []Event {
	labels := make(map[int64]map[string]string, len(items))
	for _, it := range items {
		if it != nil {
			labels[it.ID] = utils.LabelValues(it.Labels)
		}
	}
	out := make([]Event, 0, len(entries))
	for _, e := range entries {
		out = append(out, Event{
			Type:      TypeRecommended,
			MovieID:   e.MovieID,
			Value:     e.Score,
			Position:  e.Rank,
			RunID:     e.RunID,
			Timestamp: at.Unix(),
			Labels:    labels[e.MovieID],
		})
	}
	return out
}

// Nop 是丢弃所有事件的收集器。
type Nop struct{}

func (Nop) Record(context.Context, ...Event) error { return nil }
func (Nop) Close() error                           { return nil }
