package textutil

import (
	"math"
	"testing"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"both empty", "", "", 1},
		{"one empty", "abc", "", 0},
		{"identical", "你好世界", "你好世界", 1},
		{"disjoint", "abc", "xyz", 0},
		{"prefix", "abcd", "ab", 2 * 2.0 / 6},
		{"split blocks", "abxcd", "abcd", 2 * 4.0 / 9},
		{"cjk partial", "今天天气很好", "天气", 2 * 2.0 / 8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Ratio(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Ratio(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
