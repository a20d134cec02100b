package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Layers(t *testing.T) {
	path := writeFile(t, "reelkit.yaml", `
store:
  backend: badger
badger:
  in_memory: true
catalog:
  type: file
  snapshot_path: testdata/catalog.yaml
recommend:
  default_limit: 15
  empty_profile_policy: empty
  source_timeout: 2s
`)
	t.Setenv("REELKIT_RECOMMEND__DEFAULT_LIMIT", "30")
	t.Setenv("REELKIT_SERVER__ADDR", ":9090")
	t.Setenv("REELKIT_FEEDBACK__KAFKA__BROKERS", "a:9092, b:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"file overrides default", cfg.Store.Backend, "badger"},
		{"env overrides file", cfg.Recommend.DefaultLimit, 30},
		{"file value kept", cfg.Recommend.EmptyProfilePolicy, "empty"},
		{"duration parsed", cfg.Recommend.SourceTimeout, 2 * time.Second},
		{"default kept", cfg.Recommend.RatedThreshold, 7.0},
		{"env only", cfg.Server.Addr, ":9090"},
		{"default catalog timeout", cfg.Catalog.Timeout, 10 * time.Second},
		{"env list", strings.Join(cfg.Feedback.Kafka.Brokers, "|"), "a:9092|b:9092"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown backend",
			body: "store: {backend: etcd}\ncatalog: {api_key: k}",
			want: "Backend",
		},
		{
			name: "tmdb without credentials",
			body: "catalog: {type: tmdb}",
			want: "catalog.api_key",
		},
		{
			name: "file catalog without snapshot",
			body: "catalog: {type: file}",
			want: "catalog.snapshot_path",
		},
		{
			name: "postgres without dsn",
			body: "store: {movies: postgres}\ncatalog: {api_key: k}",
			want: "postgres.dsn",
		},
		{
			name: "bad policy",
			body: "recommend: {empty_profile_policy: random}\ncatalog: {api_key: k}",
			want: "EmptyProfilePolicy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.yaml", tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	if got := envKey("REELKIT_CATALOG__API_KEY"); got != "catalog.api_key" {
		t.Errorf("envKey() = %q", got)
	}
}
