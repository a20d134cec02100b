package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/pkg/utils"
)

func TestMemoryCollector(t *testing.T) {
	c := NewMemoryCollector(2)
	ctx := context.Background()
	_ = c.Record(ctx, Event{Type: TypeFavorite, MovieID: 1})
	_ = c.Record(ctx, Event{Type: TypeRated, MovieID: 2, Value: 8}, Event{Type: TypeDismissed, MovieID: 3})

	got := c.Events()
	if len(got) != 2 || got[0].MovieID != 2 || got[1].MovieID != 3 {
		t.Errorf("Events() = %+v", got)
	}
	if rated := c.OfType(TypeRated); len(rated) != 1 || rated[0].Value != 8 {
		t.Errorf("OfType(rated) = %+v", rated)
	}

	_ = c.Close()
	_ = c.Record(ctx, Event{Type: TypeFavorite, MovieID: 4})
	if len(c.Events()) != 2 {
		t.Error("Record() after Close should be ignored")
	}
}

func TestRecommendedEvents(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	it := core.NewItem(9)
	it.PutLabel("recall_source", utils.Label{Value: "discover"})
	entries := []core.RecommendationEntry{
		{MovieID: 9, Score: 3, Rank: 0, RunID: "r1"},
		{MovieID: 5, Score: 1, Rank: 1, RunID: "r1"},
	}
	events := RecommendedEvents(entries, []*core.Item{it, nil}, at)
	if len(events) != 2 {
		t.Fatalf("len = %d", len(events))
	}
	if e := events[0]; e.Type != TypeRecommended || e.Position != 0 || e.Labels["recall_source"] != "discover" || e.Timestamp != at.Unix() {
		t.Errorf("events[0] = %+v", e)
	}
	if events[1].Labels != nil || events[1].Key() != "5" {
		t.Errorf("events[1] = %+v", events[1])
	}
}

func TestKafkaCollector_CloseWithoutBroker(t *testing.T) {
	// kgo 惰性连接，未配置可达 broker 时创建与关闭都不应阻塞
	c, err := NewKafkaCollector(KafkaConfig{Brokers: []string{"127.0.0.1:1"}, Topic: "t", FlushInterval: time.Hour}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewKafkaCollector() error = %v", err)
	}
	done := make(chan struct{})
	go func() {
		_ = c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("Close() blocked")
	}
	if err := c.Record(context.Background(), Event{Type: TypeFavorite, MovieID: 1}); err != nil {
		t.Errorf("Record() after Close error = %v", err)
	}
}
