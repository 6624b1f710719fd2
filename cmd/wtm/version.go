package main

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

var version = "dev"

var readBuildInfo = debug.ReadBuildInfo

func currentVersion() string {
	v := strings.TrimSpace(version)
	if v != "" && v != "dev" {
		return v
	}

	buildInfo, ok := readBuildInfo()
	if !ok || buildInfo == nil {
		return "dev"
	}

	mv := strings.TrimSpace(buildInfo.Main.Version)
	if mv == "" || mv == "(devel)" {
		return "dev"
	}
	return mv
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print wtm version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Fprintln(a.stdout, currentVersion())
			return nil
		},
	}
}
