// Package moxvar provides the version of a mailflow build.
package moxvar

import (
	"runtime/debug"
)

// Version is the module version, or the vcs revision for development builds.
var Version = "(devel)"

func init() {
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		Version = version(buildInfo)
	}
}

func version(buildInfo *debug.BuildInfo) string {
	v := buildInfo.Main.Version
	if v != "(devel)" && v != "" {
		return v
	}
	var vcsRev, vcsMod string
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			vcsRev = setting.Value
		case "vcs.modified":
			vcsMod = setting.Value
		}
	}
	if vcsRev == "" {
		return "(devel)"
	}
	switch vcsMod {
	case "false":
		return vcsRev
	case "true":
		return vcsRev + "+modifications"
	default:
		return vcsRev + "+unknown"
	}
}
