package pty

import (
	"errors"
	"os"
	"testing"
)

func TestSizeOrDefault(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		err    error
		want   Size
	}{
		{"measured", 120, 40, nil, Size{Width: 120, Height: 40}},
		{"error", 120, 40, errors.New("not a console"), DefaultSize()},
		{"zero width", 0, 40, nil, DefaultSize()},
		{"zero height", 120, 0, nil, DefaultSize()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sizeOrDefault(tt.width, tt.height, tt.err); got != tt.want {
				t.Errorf("sizeOrDefault(%d, %d, %v) = %+v, want %+v", tt.width, tt.height, tt.err, got, tt.want)
			}
		})
	}
}

func TestDefaultSize(t *testing.T) {
	if s := DefaultSize(); s.Width != 140 || s.Height != 80 {
		t.Errorf("DefaultSize() = %+v", s)
	}
}

func TestResolveWorkDir(t *testing.T) {
	dir, err := resolveWorkDir("/some/dir")
	if err != nil || dir != "/some/dir" {
		t.Fatalf("resolveWorkDir kept %q, %v", dir, err)
	}

	wd, _ := os.Getwd()
	dir, err = resolveWorkDir("")
	if err != nil {
		t.Fatalf("resolveWorkDir: %v", err)
	}
	if dir != wd {
		t.Errorf("expected current directory %q, got %q", wd, dir)
	}
}
