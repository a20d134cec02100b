package feedback

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaCollector Kafka 采集器：事件先进缓冲，按批量或定时异步发送。
type KafkaCollector struct {
	client        *kgo.Client
	topic         string
	batchSize     int
	flushInterval time.Duration
	logger        zerolog.Logger

	mu        sync.Mutex
	buffer    []Event
	lastFlush time.Time
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
	stopCh    chan struct{}
}

// KafkaConfig Kafka 采集器配置
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`

	BatchSize     int           `koanf:"batch_size"`     // 批量大小（建议 100-1000）
	FlushInterval time.Duration `koanf:"flush_interval"` // 刷新间隔（建议 1-5 秒）

	ClientID     string `koanf:"client_id"`
	RequiredAcks int16  `koanf:"required_acks"` // 1=leader, -1=all, 0=none
	Compression  string `koanf:"compression"`   // gzip / snappy / lz4 / zstd
	Idempotent   bool   `koanf:"idempotent"`
	MaxRetries   int    `koanf:"max_retries"`
}

// NewKafkaCollector 创建 Kafka 采集器
func NewKafkaCollector(cfg KafkaConfig, logger zerolog.Logger) (*KafkaCollector, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "reelkit-feedback"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RecordRetries(cfg.MaxRetries),
	}

	switch cfg.RequiredAcks {
	case 0:
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()))
	case -1:
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	default:
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()))
	}
	// 幂等写要求 AllISRAcks
	if !cfg.Idempotent || cfg.RequiredAcks != -1 {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}

	switch cfg.Compression {
	case "gzip":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.GzipCompression()))
	case "snappy":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.SnappyCompression()))
	case "lz4":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.Lz4Compression()))
	case "zstd":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.ZstdCompression()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	c := &KafkaCollector{
		client:        client,
		topic:         cfg.Topic,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        logger,
		buffer:        make([]Event, 0, cfg.BatchSize),
		lastFlush:     time.Now(),
		stopCh:        make(chan struct{}),
	}

	c.wg.Add(1)
	go c.flushLoop()

	return c, nil
}

// Record 非阻塞缓冲事件，达到批量大小时触发异步发送
func (c *KafkaCollector) Record(_ context.Context, events ...Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}

	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		c.buffer = append(c.buffer, e)
	}
	if len(c.buffer) >= c.batchSize {
		events := c.drainLocked()
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.produce(events)
		}()
	}
	return nil
}

func (c *KafkaCollector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			var events []Event
			if len(c.buffer) > 0 && time.Since(c.lastFlush) >= c.flushInterval {
				events = c.drainLocked()
			}
			c.mu.Unlock()
			c.produce(events)
		case <-c.stopCh:
			return
		}
	}
}

// drainLocked 取出缓冲并清空，必须持有 mu。
func (c *KafkaCollector) drainLocked() []Event {
	events := make([]Event, len(c.buffer))
	copy(events, c.buffer)
	c.buffer = c.buffer[:0]
	c.lastFlush = time.Now()
	return events
}

func (c *KafkaCollector) produce(events []Event) {
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			c.logger.Warn().Err(err).Str("type", string(e.Type)).Msg("encode feedback event")
			continue
		}
		record := &kgo.Record{
			Topic: c.topic,
			Key:   []byte(e.Key()),
			Value: data,
		}
		c.client.Produce(context.Background(), record, func(r *kgo.Record, err error) {
			if err != nil {
				c.logger.Warn().Err(err).Str("topic", r.Topic).Msg("produce feedback event")
			}
		})
	}
}

// Close 优雅关闭：发送剩余缓冲并等待所有在途消息确认
func (c *KafkaCollector) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		events := c.drainLocked()
		c.mu.Unlock()

		close(c.stopCh)
		c.wg.Wait()
		c.produce(events)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = c.client.Flush(ctx)
		c.client.Close()
	})
	return err
}
