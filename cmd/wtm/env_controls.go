package main

import (
	"io"
	"os"
	"strings"
)

func envFlagEnabled(name string) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// promptsDisabled turns off every interactive prompt, for scripts and tests.
func promptsDisabled() bool {
	return envFlagEnabled("WTM_NONINTERACTIVE")
}

func isInteractiveTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// canPrompt reports whether a form can run on stdin with output on stderr.
func canPrompt(stderr io.Writer) bool {
	return !promptsDisabled() && isInteractiveTerminal(os.Stdin) && isInteractiveTerminal(stderr)
}
