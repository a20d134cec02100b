// Package store 提供 core 中存储接口的实现。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
//	var kv core.KeyValueStore = store.NewMemoryStore()
//	movies := store.NewKVMovieStore(kv)
//	recs := store.NewKVRecommendationStore(kv, "")
package store
