package milvus

import (
	"strings"
	"testing"
)

func TestFilterExpr(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"empty", Filter{}, ""},
		{"user only", Filter{UserID: "u1"}, `user_id == "u1"`},
		{"user and report", Filter{UserID: "u1", ReportID: "r1"}, `user_id == "u1" && report_id == "r1"`},
		{"quotes escaped", Filter{UserID: `a"b`}, `user_id == "a\"b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.expr(); got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	s := strings.Repeat("a", 3) + "é"
	if got := truncate(s, 4); got != "aaa" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
}
