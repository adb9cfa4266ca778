package moxvar

import (
	"runtime/debug"
	"testing"
)

func TestVersion(t *testing.T) {
	test := func(mainVersion string, settings []debug.BuildSetting, exp string) {
		t.Helper()
		bi := &debug.BuildInfo{Main: debug.Module{Version: mainVersion}, Settings: settings}
		if v := version(bi); v != exp {
			t.Fatalf("got version %q, expected %q", v, exp)
		}
	}

	rev := debug.BuildSetting{Key: "vcs.revision", Value: "abc123"}
	test("v0.1.0", nil, "v0.1.0")
	test("(devel)", nil, "(devel)")
	test("", nil, "(devel)")
	test("(devel)", []debug.BuildSetting{rev, {Key: "vcs.modified", Value: "false"}}, "abc123")
	test("(devel)", []debug.BuildSetting{rev, {Key: "vcs.modified", Value: "true"}}, "abc123+modifications")
	test("(devel)", []debug.BuildSetting{rev}, "abc123+unknown")
}
