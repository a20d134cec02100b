package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/reelkit/pipeline"
)

// 使用配置驱动时，需在 main 或入口处 import _ "github.com/rushteam/reelkit/config/builders"
// 以触发内置 Node（recall.fanout、filter、rank.overlap、rerank.topn 等）的 init 注册。

// NodeBuilder 与 pipeline.NodeBuilder 一致：根据 config 与共享资源构建 Node。
// 各组件在 init 中调用 Register(typeName, builder) 即可被配置驱动。
type NodeBuilder = pipeline.NodeBuilder

var (
	defaultBuilders   = make(map[string]NodeBuilder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种 Node 的构建逻辑，供 DefaultFactory 与配置驱动使用。
// 建议在各组件的 init 中调用，例如：func init() { config.Register("rank.overlap", BuildOverlapNode) }
func Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[typeName] = builder
}

// SupportedTypes 返回当前已注册的 Node 类型列表（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory 返回基于当前注册表构建的 NodeFactory，包含所有通过 Register 注册的 Node 类型。
func DefaultFactory() *pipeline.NodeFactory {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range defaultBuilders {
		f.Register(typeName, builder)
	}
	return f
}

// ValidatePipelineConfig 校验 pipeline 配置中所有 node 类型均已注册；若有未支持类型则返回包含已支持列表的错误。
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return nil
	}
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	for _, nc := range cfg.Pipeline.Nodes {
		if _, ok := defaultBuilders[nc.Type]; !ok {
			types := make([]string, 0, len(defaultBuilders))
			for t := range defaultBuilders {
				types = append(types, t)
			}
			sort.Strings(types)
			return fmt.Errorf("unsupported node type %q (supported: %v)", nc.Type, types)
		}
	}
	return nil
}

// LoadPipeline 读取 pipeline 配置文件，校验类型后用 DefaultFactory 构建。
func LoadPipeline(path string, res *pipeline.Resources) (*pipeline.Pipeline, error) {
	cfg, err := pipeline.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: load pipeline %s: %w", path, err)
	}
	if err := ValidatePipelineConfig(cfg); err != nil {
		return nil, fmt.Errorf("config: pipeline %s: %w", path, err)
	}
	return cfg.BuildPipeline(DefaultFactory(), res)
}
