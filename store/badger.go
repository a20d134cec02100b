package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/rushteam/reelkit/core"
)

// Key 前缀：普通 KV / Hash 字段 / 有序集合成员
const (
	badgerKVPrefix   = "k:"
	badgerHashPrefix = "h:"
	badgerZSetPrefix = "z:"
	badgerSep        = "\x00"
)

// BadgerConfig 是 BadgerStore 的配置。
type BadgerConfig struct {
	// Path 数据目录；InMemory 为 true 时忽略
	Path     string
	InMemory bool
	Logger   zerolog.Logger
}

// BadgerStore 是基于 BadgerDB 的嵌入式 KeyValueStore，单机部署时持久化影片库与推荐结果。
// Hash 与有序集合按前缀展开为普通 key，同一调用内的多 key 写入在一个事务中完成。
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore 打开（或创建）BadgerDB。
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(badgerLogger{cfg.Logger})
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger %q: %w", cfg.Path, err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore 使用已打开的 *badger.DB。
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

var (
	_ core.Store         = (*BadgerStore)(nil)
	_ core.KeyValueStore = (*BadgerStore)(nil)
)

func (b *BadgerStore) Name() string { return "badger" }

func (b *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	return b.get([]byte(badgerKVPrefix + key))
}

func (b *BadgerStore) Set(_ context.Context, key string, value []byte, ttl ...int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(newBadgerEntry(badgerKVPrefix+key, value, ttl))
	})
}

// Delete 删除 key，以及同名的 Hash 与有序集合。
func (b *BadgerStore) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(badgerKVPrefix + key)); err != nil {
			return err
		}
		for _, prefix := range []string{badgerHashPrefix, badgerZSetPrefix} {
			keys, err := scanKeys(txn, []byte(prefix+key+badgerSep))
			if err != nil {
				return err
			}
			for _, k := range keys {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (b *BadgerStore) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			item, err := txn.Get([]byte(badgerKVPrefix + k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[k] = v
		}
		return nil
	})
	return result, err
}

func (b *BadgerStore) BatchSet(_ context.Context, kvs map[string][]byte, ttl ...int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for k, v := range kvs {
			if err := txn.SetEntry(newBadgerEntry(badgerKVPrefix+k, v, ttl)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func (b *BadgerStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(score))
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerZSetPrefix+key+badgerSep+member), buf[:])
	})
}

func (b *BadgerStore) ZRem(_ context.Context, key string, member string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerZSetPrefix + key + badgerSep + member))
	})
}

func (b *BadgerStore) ZRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	scores, err := b.scan(badgerZSetPrefix + key + badgerSep)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}
	members := make([]string, 0, len(scores))
	for m := range scores {
		members = append(members, m)
	}
	return rangeByScore(members, func(m string) float64 { return decodeScore(scores[m]) }, start, stop), nil
}

func (b *BadgerStore) ZScore(_ context.Context, key string, member string) (float64, error) {
	v, err := b.get([]byte(badgerZSetPrefix + key + badgerSep + member))
	if err != nil {
		return 0, err
	}
	return decodeScore(v), nil
}

func (b *BadgerStore) HGet(_ context.Context, key, field string) ([]byte, error) {
	return b.get([]byte(badgerHashPrefix + key + badgerSep + field))
}

func (b *BadgerStore) HSet(_ context.Context, key, field string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerHashPrefix+key+badgerSep+field), value)
	})
}

func (b *BadgerStore) HDel(_ context.Context, key, field string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerHashPrefix + key + badgerSep + field))
	})
}

func (b *BadgerStore) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	return b.scan(badgerHashPrefix + key + badgerSep)
}

func (b *BadgerStore) get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return core.ErrStoreNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}

// scan 返回前缀下所有条目，key 去掉前缀。
func (b *BadgerStore) scan(prefix string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[string(item.Key()[len(p):])] = v
		}
		return nil
	})
	return result, err
}

func scanKeys(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

func newBadgerEntry(key string, value []byte, ttl []int) *badger.Entry {
	e := badger.NewEntry([]byte(key), value)
	if len(ttl) > 0 && ttl[0] > 0 {
		e = e.WithTTL(time.Duration(ttl[0]) * time.Second)
	}
	return e
}

func decodeScore(v []byte) float64 {
	if len(v) != 8 {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(v))
}

// badgerLogger 把 badger 的日志转到 zerolog。
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Str("component", "badger").Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Str("component", "badger").Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Str("component", "badger").Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Str("component", "badger").Msgf(format, args...)
}
