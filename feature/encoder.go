package feature

import (
	"strconv"
	"strings"

	"github.com/rushteam/reelkit/core"
)

// 特征类别前缀
const (
	CategoryGenre    = "genre"
	CategoryCast     = "cast"
	CategoryDirector = "director"
	CategoryKeyword  = "keyword"
)

// Key 拼接特征 key，如 Key("genre", 12) == "genre:12"。
func Key(category string, id int64) string {
	return category + ":" + strconv.FormatInt(id, 10)
}

// Parse 拆分特征 key 为类别与原始 ID。
func Parse(key string) (category string, id int64, ok bool) {
	i := strings.IndexByte(key, ':')
	if i <= 0 {
		return "", 0, false
	}
	id, err := strconv.ParseInt(key[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return key[:i], id, true
}

// Encode 从影片记录派生特征集合。
// 顺序固定为 genre → cast → director → keyword，类别内保持输入顺序，重复 ID 只保留第一次。
// 相同输入总是得到相同输出。
func Encode(rec core.MovieRecord) []string {
	n := len(rec.GenreIDs) + len(rec.CastIDs) + len(rec.KeywordIDs) + 1
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, n)

	add := func(category string, id int64) {
		k := Key(category, id)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}

	for _, id := range rec.GenreIDs {
		add(CategoryGenre, id)
	}
	for _, id := range rec.CastIDs {
		add(CategoryCast, id)
	}
	if rec.DirectorID != nil {
		add(CategoryDirector, *rec.DirectorID)
	}
	for _, id := range rec.KeywordIDs {
		add(CategoryKeyword, id)
	}
	return out
}

// IDs 从特征 key 列表中提取指定类别的原始 ID，顺序不变。
func IDs(keys []string, category string) []int64 {
	out := make([]int64, 0, len(keys))
	for _, k := range keys {
		c, id, ok := Parse(k)
		if ok && c == category {
			out = append(out, id)
		}
	}
	return out
}
