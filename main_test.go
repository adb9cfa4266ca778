package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/mjl-/mailflow/config"
	"github.com/mjl-/mailflow/message"
	"github.com/mjl-/mailflow/mlog"
)

func tcheck(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %s", msg, err)
	}
}

func tcompare(t *testing.T, got, exp any) {
	t.Helper()
	if got != exp {
		t.Fatalf("got %q, expected %q", got, exp)
	}
}

// runCmd runs a command with args, stdin as input, and returns its output. The
// config file does not exist, so defaults are used.
func runCmd(t *testing.T, fn func(c *cmd), args []string, stdin string) string {
	t.Helper()
	configPath = filepath.Join(t.TempDir(), "mailflow.conf")
	var out bytes.Buffer
	c := &cmd{
		flag:     flag.NewFlagSet("mailflow test", flag.ContinueOnError),
		flagArgs: args,
		log:      mlog.New("test", nil),
		stdin:    strings.NewReader(stdin),
		stdout:   &out,
	}
	fn(c)
	return out.String()
}

func TestUsage(t *testing.T) {
	for _, c := range cmds {
		c.gather()
		if !strings.HasPrefix(c.makeUsage(), "usage: mailflow "+strings.Join(c.words, " ")) {
			t.Fatalf("bad usage for %v: %q", c.words, c.makeUsage())
		}
		if c.help == "" {
			t.Fatalf("missing help for %v", c.words)
		}
	}
}

func TestFlowCommands(t *testing.T) {
	out := runCmd(t, cmdFlow, []string{"-width", "10"}, "aaa bbb ccc")
	tcompare(t, out, "aaa bbb  \nccc")

	out = runCmd(t, cmdFlow, []string{"-width", "10", "-procs", "2", "-charset", "iso-8859-1"}, "gr\xfc\xdfe gr\xfc\xdfe")
	tcompare(t, out, "grüße  \ngrüße")

	out = runCmd(t, cmdUnflow, nil, "aaa bbb  \nccc")
	tcompare(t, out, "aaa bbb ccc")

	out = runCmd(t, cmdUnflow, []string{"-delsp=false"}, "aaa bbb  \nccc")
	tcompare(t, out, "aaa bbb  ccc")

	out = runCmd(t, cmdUnflow, []string{"-charset", "iso-8859-1"}, "gr\xfc\xdfe  \ngr\xfc\xdfe")
	tcompare(t, out, "grüße grüße")

	out = runCmd(t, cmdEncoding, nil, "grüße")
	tcompare(t, out, "8bit\nlines 1, longest 7\n")

	out = runCmd(t, cmdEncoding, []string{"-type", "text/html"}, "<p>x</p>")
	tcompare(t, out, "unchanged\nlines 1, longest 8\n")
}

func TestRewriteCommand(t *testing.T) {
	msg := "Subject: test\r\n\r\n" + strings.Repeat("word ", 30) + "\r\n"
	out := runCmd(t, cmdRewrite, []string{"-width", "40"}, msg)
	if !strings.Contains(out, "format=flowed") || !strings.Contains(out, "Subject: test\r\n") {
		t.Fatalf("unexpected rewritten message %q", out)
	}

	out = runCmd(t, cmdRewrite, []string{"-raw"}, msg)
	if strings.Contains(out, "format=flowed") {
		t.Fatalf("raw rewrite is flowed: %q", out)
	}
}

func TestFlagWidth(t *testing.T) {
	conf := config.Default()
	conf.Width = 60

	width, err := flagWidth(0, conf)
	tcheck(t, err, "width from config")
	tcompare(t, width, 60)

	width, err = flagWidth(30, conf)
	tcheck(t, err, "width from flag")
	tcompare(t, width, 30)

	for _, w := range []int{-1, message.MaxLineLength + 1} {
		if _, err := flagWidth(w, conf); !errors.Is(err, message.ErrBadWidth) {
			t.Fatalf("width %d: got err %v, expected ErrBadWidth", w, err)
		}
	}
}

func TestConfigCommands(t *testing.T) {
	out := runCmd(t, cmdConfigDescribe, nil, "")
	if !strings.Contains(out, "LogLevel:") || !strings.Contains(out, "Listen:") {
		t.Fatalf("unexpected config description %q", out)
	}

	out = runCmd(t, cmdVersion, nil, "")
	if !strings.HasSuffix(out, runtime.GOOS+"/"+runtime.GOARCH+"\n") {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	c, err := loadConfig(filepath.Join(dir, "missing.conf"), "")
	tcheck(t, err, "load missing config")
	tcompare(t, c.Width, config.DefaultWidth)
	tcompare(t, c.Log[""], mlog.LevelInfo)

	p := filepath.Join(dir, "mailflow.conf")
	err = os.WriteFile(p, []byte("LogLevel: error\nWidth: 60\n"), 0o600)
	tcheck(t, err, "write config")
	c, err = loadConfig(p, "")
	tcheck(t, err, "load config")
	tcompare(t, c.Width, 60)
	tcompare(t, c.Log[""], mlog.LevelError)

	c, err = loadConfig(p, "debug")
	tcheck(t, err, "load config with loglevel")
	tcompare(t, c.Log[""], mlog.LevelDebug)

	_, err = loadConfig(p, "bogus")
	if !errors.Is(err, config.ErrLogLevel) {
		t.Fatalf("got err %v, expected ErrLogLevel", err)
	}

	err = os.WriteFile(p, []byte("LogLevel: info\nWidth: 1000\n"), 0o600)
	tcheck(t, err, "write config")
	_, err = loadConfig(p, "")
	if !errors.Is(err, config.ErrWidth) {
		t.Fatalf("got err %v, expected ErrWidth", err)
	}
}

func TestServe(t *testing.T) {
	conf := config.Default()
	conf.Listen = &config.Listen{Address: "localhost:0", MaxBodySize: config.DefaultMaxBodySize}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &cmd{log: mlog.New("serve", nil)}
	err := serve(ctx, c, conf)
	tcheck(t, err, "serve")
}
