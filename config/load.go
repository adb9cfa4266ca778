package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mjl-/sconf"

	"github.com/mjl-/mailflow/mlog"
)

var (
	ErrWidth    = errors.New("width out of range")
	ErrFallback = errors.New("unknown fallback encoding")
	ErrLogLevel = errors.New("unknown log level")
)

// Default returns a config with defaults filled in, used when no config file
// is present.
func Default() Static {
	c := Static{LogLevel: "info"}
	errs := Prepare(&c)
	if len(errs) > 0 {
		panic(fmt.Sprintf("default config: %v", errs))
	}
	return c
}

// ParseFile parses the config file at path p and prepares it, see Prepare.
func ParseFile(p string) (Static, []error) {
	f, err := os.Open(p)
	if err != nil {
		return Static{}, []error{fmt.Errorf("open config file: %w", err)}
	}
	defer f.Close()
	return Parse(p, f)
}

// Parse parses a config file from r. Name is used in error messages.
func Parse(name string, r io.Reader) (Static, []error) {
	var c Static
	if err := sconf.Parse(r, &c); err != nil {
		return Static{}, []error{fmt.Errorf("parsing %s%v", name, err)}
	}
	return c, Prepare(&c)
}

// Prepare checks the config and fills in defaults for optional fields that
// were not set. All errors found are returned.
func Prepare(c *Static) (errs []error) {
	addErrorf := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	c.Log = map[string]slog.Level{}
	if level, ok := mlog.Levels[c.LogLevel]; ok {
		c.Log[""] = level
	} else {
		addErrorf("%w %q", ErrLogLevel, c.LogLevel)
	}
	for pkg, s := range c.PackageLogLevels {
		if level, ok := mlog.Levels[s]; ok {
			c.Log[pkg] = level
		} else {
			addErrorf("%w %q for package %q", ErrLogLevel, s, pkg)
		}
	}

	if c.Width == 0 {
		c.Width = DefaultWidth
	} else if c.Width < 1 || c.Width > 998 {
		addErrorf("%w: %d, must be between 1 and 998", ErrWidth, c.Width)
	}

	c.Fallback = strings.ToLower(c.Fallback)
	switch c.Fallback {
	case "":
		c.Fallback = DefaultFallback
	case "quoted-printable", "base64":
	default:
		addErrorf("%w %q, must be quoted-printable or base64", ErrFallback, c.Fallback)
	}

	if c.Procs <= 0 {
		c.Procs = 1
	}

	if c.Listen != nil {
		if c.Listen.Address == "" {
			c.Listen.Address = DefaultAddress
		}
		if c.Listen.MaxBodySize <= 0 {
			c.Listen.MaxBodySize = DefaultMaxBodySize
		}
	}
	return errs
}
