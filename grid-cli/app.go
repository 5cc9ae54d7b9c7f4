// Package gridcli carries the relay's process scaffolding: flag definitions
// with their environment bindings, the service identity stamped into every
// log line, and logger construction. The flags here are the whole
// configuration surface; nothing else reads the environment.
package gridcli

import (
	"fmt"
	"runtime/debug"

	"github.com/urfave/cli/v2"
)

// App assembles the cli application around a single action, which is all a
// relay process needs.
func App(service Service, action cli.ActionFunc, flags ...cli.Flag) *cli.App {
	return &cli.App{
		Name:                 service.Name,
		Usage:                fmt.Sprintf("%v update relay", service.Name),
		Version:              service.Version,
		EnableBashCompletion: true,
		Action:               action,
		Flags:                flags,
	}
}

// CommitHash resolves the version baked into the binary, falling back to the
// module version for non-vcs builds.
func CommitHash() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}
	return info.Main.Version
}
