package config

import (
	"log/slog"
)

// Defaults for optional fields.
const (
	DefaultWidth       = 77
	DefaultFallback    = "quoted-printable"
	DefaultMaxBodySize = 20 * 1024 * 1024
	DefaultAddress     = "localhost:1077"
)

// Static is a parsed form of the mailflow.conf configuration file.
type Static struct {
	LogLevel         string            `sconf-doc:"NOTE: This config file is in 'sconf' format. Indent with tabs. Comments must be on their own line, they don't end a line. Do not escape or quote strings. Details: https://pkg.go.dev/github.com/mjl-/sconf.\n\n\nDefault log level, one of: error, info, debug, trace."`
	PackageLogLevels map[string]string `sconf:"optional" sconf-doc:"Overrides of log level per package (e.g. flow, message, webflow, metrics)."`
	Width            int               `sconf:"optional" sconf-doc:"Maximum width in columns of flowed lines, with tabs expanded to multiples of 8. Words longer than the width are not broken. Default: 77. Must be between 1 and 998."`
	Fallback         string            `sconf:"optional" sconf-doc:"Content-Transfer-Encoding for text that cannot be sent as 7bit or 8bit because it has lines longer than 998 bytes. One of quoted-printable or base64. Default: quoted-printable."`
	Procs            int               `sconf:"optional" sconf-doc:"Number of goroutines flowing lines of a single body in parallel. Lines are written in their original order. Default: 1, no parallelism."`
	Listen           *Listen           `sconf:"optional" sconf-doc:"HTTP service for flowing text and rewriting messages, started with 'mailflow serve'."`

	Log map[string]slog.Level `sconf:"-" json:"-"` // Parsed form of LogLevel and PackageLogLevels.
}

// Listen configures the HTTP service.
type Listen struct {
	Address     string `sconf-doc:"Address to listen on, e.g. localhost:1077 or :1077."`
	Metrics     bool   `sconf:"optional" sconf-doc:"Serve prometheus metrics at /metrics."`
	MaxBodySize int64  `sconf:"optional" sconf-doc:"Maximum size in bytes of a request body, larger requests are rejected. Default: 20MB."`
}
