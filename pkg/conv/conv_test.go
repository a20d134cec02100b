package conv

import (
	"reflect"
	"testing"
	"time"
)

func TestConfigGetters(t *testing.T) {
	cfg := map[string]any{
		"n":       3,
		"f":       2.5,
		"s":       "x",
		"d":       "250ms",
		"secs":    2,
		"ids":     []any{1, 2.0, "3", "bad", true},
		"sources": []any{map[string]any{"type": "popular"}, "skip"},
	}

	if got := ConfigGetInt64(cfg, "n", 0); got != 3 {
		t.Errorf("ConfigGetInt64(n) = %d", got)
	}
	if got := ConfigGetInt64(cfg, "missing", 9); got != 9 {
		t.Errorf("ConfigGetInt64(missing) = %d", got)
	}
	if got := ConfigGetFloat64(cfg, "n", 0); got != 3 {
		t.Errorf("ConfigGetFloat64(n) = %v", got)
	}
	if got := ConfigGet(cfg, "s", ""); got != "x" {
		t.Errorf("ConfigGet(s) = %q", got)
	}
	if got := ConfigGet(cfg, "n", "def"); got != "def" {
		t.Errorf("ConfigGet with wrong type = %q, want default", got)
	}
	if got := ConfigGetDuration(cfg, "d", 0); got != 250*time.Millisecond {
		t.Errorf("ConfigGetDuration(d) = %v", got)
	}
	if got := ConfigGetDuration(cfg, "secs", 0); got != 2*time.Second {
		t.Errorf("ConfigGetDuration(secs) = %v", got)
	}
	if got := SliceAnyToInt64(cfg["ids"]); !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Errorf("SliceAnyToInt64() = %v", got)
	}
	if got := ConfigGetMaps(cfg, "sources"); len(got) != 1 || got[0]["type"] != "popular" {
		t.Errorf("ConfigGetMaps() = %v", got)
	}
	if got := ConfigGetMaps(nil, "sources"); got != nil {
		t.Errorf("ConfigGetMaps(nil) = %v", got)
	}
}

func TestToInt(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{in: 5, want: 5, ok: true},
		{in: int64(6), want: 6, ok: true},
		{in: 7.9, want: 7, ok: true},
		{in: "12", want: 12, ok: true},
		{in: "x", ok: false},
		{in: nil, ok: false},
	}
	for _, tt := range tests {
		got, ok := ToInt(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ToInt(%v) = %d, %v", tt.in, got, ok)
		}
	}
}
