package recorder

import (
	"testing"

	"github.com/user/powersession/internal/pty"
)

func envFunc(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		env       map[string]string
		want      map[string]string
	}{
		{
			name: "shell and term from environment",
			env:  map[string]string{"SHELL": "/bin/zsh", "TERM": "xterm"},
			want: map[string]string{"SHELL": "/bin/zsh", "TERM": "xterm"},
		},
		{
			name: "windows terminal wins over TERM",
			env:  map[string]string{"SHELL": "pwsh", "TERM": "xterm", "WT_SESSION": "abc"},
			want: map[string]string{"SHELL": "pwsh", "TERM": "windows-terminal"},
		},
		{
			name: "no TERM recorded when unknown",
			env:  map[string]string{},
			want: map[string]string{"SHELL": pty.DefaultShell},
		},
		{
			name:      "overrides kept, inferred values win",
			overrides: map[string]string{"LANG": "C", "SHELL": "ignored"},
			env:       map[string]string{"SHELL": "bash"},
			want:      map[string]string{"LANG": "C", "SHELL": "bash"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeEnv(tt.overrides, envFunc(tt.env))
			if len(got) != len(tt.want) {
				t.Fatalf("MergeEnv() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("MergeEnv()[%s] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestMergeEnvDoesNotModifyOverrides(t *testing.T) {
	overrides := map[string]string{"A": "1"}
	MergeEnv(overrides, envFunc(map[string]string{"SHELL": "sh"}))
	if len(overrides) != 1 {
		t.Errorf("overrides modified: %v", overrides)
	}
}

func TestDefaultCommand(t *testing.T) {
	if got := DefaultCommand(envFunc(map[string]string{"SHELL": "fish"})); got != "fish" {
		t.Errorf("DefaultCommand() = %q", got)
	}
	if got := DefaultCommand(envFunc(nil)); got != pty.DefaultShell {
		t.Errorf("DefaultCommand() = %q, want %q", got, pty.DefaultShell)
	}
}
