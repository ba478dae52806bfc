package cmd

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	version   = "0.1.0"
	goVersion = runtime.Version()
	platform  = runtime.GOOS + "/" + runtime.GOARCH
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("Portal version:", version)
			if info, ok := debug.ReadBuildInfo(); ok {
				module, commit := buildDetails(info)
				if module != "" {
					cmd.Println("Module:", module)
				}
				if commit != "" {
					cmd.Println("Commit:", commit)
				}
			}
			cmd.Println("Go version:", goVersion)
			cmd.Println("Platform:", platform)
		},
	}
}

// buildDetails returns the main module path and the short VCS revision, marked when the tree was dirty.
func buildDetails(info *debug.BuildInfo) (module, commit string) {
	module = info.Main.Path
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if commit != "" && dirty {
		commit += "-dirty"
	}
	return module, commit
}
