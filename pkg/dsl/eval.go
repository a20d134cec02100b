// Package dsl 提供基于 CEL 的候选过滤表达式。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/reelkit/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once

	// programs 缓存已编译的表达式，key 为表达式原文
	programs sync.Map
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("movie", cel.DynType),
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的布尔表达式，可并发求值。
//
// 表达式语法（CEL 标准语法）：
//   - 影片：movie.vote_average >= 6.5 / 28 in movie.genre_ids / movie.popularity > 10.0
//   - 候选：item.score > 0.5
//   - 标签：label.recall_source == "trending" / "popular" in label.recall_source
//   - 上下文：rctx.scene == "home" / rctx.params.limit > 10
//
// 访问不存在的 label 会求值失败，需要先用 has(label.key) 检查。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，相同表达式只编译一次。
func Compile(expr string) (*Program, error) {
	if v, ok := programs.Load(expr); ok {
		return v.(*Program), nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("dsl: env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("dsl: compile %q: %w", expr, issues.Err())
	}
	switch out := ast.OutputType(); out.String() {
	case cel.BoolType.String(), cel.DynType.String():
	default:
		return nil, fmt.Errorf("dsl: expression %q must return bool, got %s", expr, out)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("dsl: program %q: %w", expr, err)
	}
	p := &Program{expr: expr, prg: prg}
	actual, _ := programs.LoadOrStore(expr, p)
	return actual.(*Program), nil
}

// String 返回表达式原文。
func (p *Program) String() string { return p.expr }

// Match 对单个候选求值。
func (p *Program) Match(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("dsl: eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("dsl: expression %q must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}

// Eval 对单个候选做一次性求值，空表达式视为 true。
func Eval(expr string, item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if expr == "" {
		return true, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Match(item, rctx)
}

func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	movie := map[string]any{}
	itemIn := map[string]any{}
	label := map[string]any{}
	if item != nil {
		itemIn["id"] = item.ID
		itemIn["score"] = item.Score
		itemIn["features"] = item.Features
		for k, v := range item.Labels {
			label[k] = v.Value
		}
		if m := item.Movie; m != nil {
			movie["id"] = m.ID
			movie["title"] = m.Title
			movie["genre_ids"] = m.GenreIDs
			movie["cast_ids"] = m.CastIDs
			movie["keyword_ids"] = m.KeywordIDs
			movie["vote_average"] = m.VoteAverage
			movie["popularity"] = m.Popularity
			if m.DirectorID != nil {
				movie["director_id"] = *m.DirectorID
			}
		}
	}

	ctxIn := map[string]any{}
	if rctx != nil {
		ctxIn["user_id"] = rctx.UserID
		ctxIn["scene"] = rctx.Scene
		ctxIn["params"] = rctx.Params
		for k, v := range rctx.Labels {
			ctxIn["label_"+k] = v.Value
		}
	}
	return map[string]any{
		"movie": movie,
		"item":  itemIn,
		"label": label,
		"rctx":  ctxIn,
	}
}
