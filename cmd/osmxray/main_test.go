package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitOrigins(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"*", []string{"*"}},
		{"http://a.example/, http://b.example ,", []string{"http://a.example", "http://b.example"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, splitOrigins(tt.in)); diff != "" {
			t.Errorf("splitOrigins(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestNewLogger(t *testing.T) {
	if l := newLogger(false, "text"); l.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled by default")
	}
	if l := newLogger(true, "JSON"); !l.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled with --debug")
	}
}
