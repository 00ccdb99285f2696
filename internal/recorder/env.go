package recorder

import "github.com/user/powersession/internal/pty"

// windowsTerminal is recorded as TERM when running inside Windows Terminal.
const windowsTerminal = "windows-terminal"

// DefaultCommand is the shell recorded when no command is given.
func DefaultCommand(getenv func(string) string) string {
	if shell := getenv("SHELL"); shell != "" {
		return shell
	}
	return pty.DefaultShell
}

// MergeEnv builds the header environment: the caller's overrides plus SHELL
// and TERM inferred from the current environment. Inferred values win.
func MergeEnv(overrides map[string]string, getenv func(string) string) map[string]string {
	env := make(map[string]string, len(overrides)+2)
	for k, v := range overrides {
		env[k] = v
	}

	env["SHELL"] = DefaultCommand(getenv)

	switch {
	case getenv("WT_SESSION") != "":
		env["TERM"] = windowsTerminal
	case getenv("TERM") != "":
		env["TERM"] = getenv("TERM")
	}
	return env
}
