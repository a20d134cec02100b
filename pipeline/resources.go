package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/rushteam/reelkit/core"
)

// Resources 是构建 Node 时可注入的共享依赖。
// 配置文件只描述“用什么、怎么组合”，连接与客户端由入口统一创建后经此传入。
type Resources struct {
	Catalog   core.CatalogClient
	Vectors   core.VectorIndex
	Store     core.KeyValueStore
	Dismissed core.Blocklist

	// OnSkip 在候选因补全失败被跳过时回调，可能被并发调用
	OnSkip func(item *core.Item, err error)

	Logger zerolog.Logger
}
