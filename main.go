package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/mjl-/sconf"

	"github.com/mjl-/mailflow/config"
	"github.com/mjl-/mailflow/flow"
	"github.com/mjl-/mailflow/message"
	"github.com/mjl-/mailflow/mlog"
	"github.com/mjl-/mailflow/moxio"
	"github.com/mjl-/mailflow/moxvar"
)

func envString(k, def string) string {
	s := os.Getenv(k)
	if s == "" {
		return def
	}
	return s
}

var commands = []struct {
	cmd string
	fn  func(c *cmd)
}{
	{"flow", cmdFlow},
	{"unflow", cmdUnflow},
	{"encoding", cmdEncoding},
	{"rewrite", cmdRewrite},
	{"serve", cmdServe},
	{"config test", cmdConfigTest},
	{"config describe", cmdConfigDescribe},
	{"version", cmdVersion},
	{"help", cmdHelp},
	{"helpall", cmdHelpall},
}

var cmds []cmd

func init() {
	for _, xc := range commands {
		c := cmd{words: strings.Split(xc.cmd, " "), fn: xc.fn}
		cmds = append(cmds, c)
	}
}

type cmd struct {
	words []string
	fn    func(c *cmd)

	// Set before calling command.
	flag     *flag.FlagSet
	flagArgs []string
	_gather  bool // Set when using Parse to gather usage for a command.

	// Set by invoked command or Parse.
	unlisted bool   // If set, command is not listed until at least some words are matched from command.
	params   string // Arguments to command. Multiple lines possible.
	help     string // Additional explanation. First line is synopsis, the rest is only printed for an explicit help/usage for that command.
	args     []string

	log mlog.Log

	// For tests, commands read and write standard input/output otherwise.
	stdin  io.Reader
	stdout io.Writer
}

func (c *cmd) Parse() []string {
	// To gather params and usage information, we run the command but cause this
	// panic after the command has registered its flags and set its params and help
	// information. This is then caught and that info printed.
	if c._gather {
		panic("gather")
	}

	c.flag.Usage = c.Usage
	c.flag.Parse(c.flagArgs)
	c.args = c.flag.Args()
	return c.args
}

func (c *cmd) gather() {
	c.flag = flag.NewFlagSet("mailflow "+strings.Join(c.words, " "), flag.ExitOnError)
	c._gather = true
	defer func() {
		x := recover()
		// panic generated by Parse.
		if x != "gather" {
			panic(x)
		}
	}()
	c.fn(c)
}

func (c *cmd) makeUsage() string {
	var r strings.Builder
	cs := "mailflow " + strings.Join(c.words, " ")
	for i, line := range strings.Split(strings.TrimSpace(c.params), "\n") {
		s := ""
		if i == 0 {
			s = "usage:"
		}
		if line != "" {
			line = " " + line
		}
		fmt.Fprintf(&r, "%6s %s%s\n", s, cs, line)
	}
	c.flag.SetOutput(&r)
	c.flag.PrintDefaults()
	return r.String()
}

func (c *cmd) printUsage() {
	fmt.Fprint(os.Stderr, c.makeUsage())
	if c.help != "" {
		fmt.Fprint(os.Stderr, "\n"+c.help+"\n")
	}
}

func (c *cmd) Usage() {
	c.printUsage()
	os.Exit(2)
}

func (c *cmd) input() io.Reader {
	if c.stdin != nil {
		return c.stdin
	}
	return os.Stdin
}

func (c *cmd) output() io.Writer {
	if c.stdout != nil {
		return c.stdout
	}
	return os.Stdout
}

func cmdHelp(c *cmd) {
	c.params = "[command ...]"
	c.help = `Prints help about matching commands.

If multiple commands match, they are listed along with the first line of their help text.
If a single command matches, its usage and full help text is printed.
`
	args := c.Parse()
	if len(args) == 0 {
		c.Usage()
	}

	prefix := func(l, pre []string) bool {
		if len(pre) > len(l) {
			return false
		}
		return slices.Equal(pre, l[:len(pre)])
	}

	var partial []cmd
	for _, c := range cmds {
		if slices.Equal(c.words, args) {
			c.gather()
			fmt.Print(c.makeUsage())
			if c.help != "" {
				fmt.Print("\n" + c.help + "\n")
			}
			return
		} else if prefix(c.words, args) {
			partial = append(partial, c)
		}
	}
	if len(partial) == 0 {
		fmt.Fprintf(os.Stderr, "%s: unknown command\n", strings.Join(args, " "))
		os.Exit(2)
	}
	for _, c := range partial {
		c.gather()
		line := "mailflow " + strings.Join(c.words, " ")
		fmt.Printf("%s\n", line)
		if c.help != "" {
			fmt.Printf("\t%s\n", strings.Split(c.help, "\n")[0])
		}
	}
}

func cmdHelpall(c *cmd) {
	c.unlisted = true
	c.help = `Print all detailed usage and help information for all listed commands.

Used to generate documentation.
`
	args := c.Parse()
	if len(args) != 0 {
		c.Usage()
	}

	n := 0
	for _, c := range cmds {
		c.gather()
		if c.unlisted {
			continue
		}
		if n > 0 {
			fmt.Fprintf(os.Stderr, "\n")
		}
		n++

		fmt.Fprintf(os.Stderr, "# mailflow %s\n\n", strings.Join(c.words, " "))
		if c.help != "" {
			fmt.Fprintln(os.Stderr, c.help+"\n")
		}
		s := c.makeUsage()
		s = "\t" + strings.ReplaceAll(s, "\n", "\n\t")
		fmt.Fprintln(os.Stderr, s)
	}
}

func usage(l []cmd, unlisted bool) {
	var lines []string
	if !unlisted {
		lines = append(lines, "mailflow [-config mailflow.conf] [-loglevel level] ...")
	}
	for _, c := range l {
		c.gather()
		if c.unlisted && !unlisted {
			continue
		}
		for _, line := range strings.Split(c.params, "\n") {
			x := append([]string{"mailflow"}, c.words...)
			if line != "" {
				x = append(x, line)
			}
			lines = append(lines, strings.Join(x, " "))
		}
	}
	for i, line := range lines {
		pre := "       "
		if i == 0 {
			pre = "usage: "
		}
		fmt.Fprintln(os.Stderr, pre+line)
	}
	os.Exit(2)
}

var configPath string
var loglevel string // Empty means the level from the config file, or info.

// loadConfig reads the config file. A missing config file results in the default
// config. A loglevel from the command-line overrides the default level from the
// config file.
func loadConfig(path, loglevel string) (config.Static, error) {
	c, errs := config.ParseFile(path)
	if len(errs) == 1 && errors.Is(errs[0], fs.ErrNotExist) {
		c = config.Default()
	} else if len(errs) > 0 {
		return config.Static{}, errors.Join(errs...)
	}
	if loglevel != "" {
		level, ok := mlog.Levels[loglevel]
		if !ok {
			return config.Static{}, fmt.Errorf("%w %q", config.ErrLogLevel, loglevel)
		}
		c.Log[""] = level
	}
	return c, nil
}

// mustLoadConfig loads the config file and sets the log levels, or exits.
func mustLoadConfig() config.Static {
	c, err := loadConfig(configPath, loglevel)
	xcheckf(err, "loading config")
	mlog.SetConfig(c.Log)
	return c
}

func main() {
	log.SetFlags(0)

	flag.StringVar(&configPath, "config", envString("MAILFLOWCONF", "mailflow.conf"), "configuration file, defaults to $MAILFLOWCONF with a fallback to mailflow.conf; defaults are used if the file does not exist")
	flag.StringVar(&loglevel, "loglevel", "", "if non-empty, this log level is set early in startup")

	var cpuprofile, memprofile, tracefile string
	flag.StringVar(&cpuprofile, "cpuprof", "", "store cpu profile to file")
	flag.StringVar(&memprofile, "memprof", "", "store mem profile to file")
	flag.StringVar(&tracefile, "trace", "", "store execution trace to file")

	flag.Usage = func() { usage(cmds, false) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage(cmds, false)
	}

	defer startProfiling(cpuprofile, memprofile, tracefile)()

	ll := loglevel
	if ll == "" {
		ll = "info"
	}
	if level, ok := mlog.Levels[ll]; ok {
		mlog.SetConfig(map[string]slog.Level{"": level})
		// note: SetConfig is called again when commands load the config.
	} else {
		log.Fatalf("unknown loglevel %q", loglevel)
	}

	var partial []cmd
next:
	for _, c := range cmds {
		for i, w := range c.words {
			if i >= len(args) || w != args[i] {
				if i > 0 {
					partial = append(partial, c)
				}
				continue next
			}
		}
		c.flag = flag.NewFlagSet("mailflow "+strings.Join(c.words, " "), flag.ExitOnError)
		c.flagArgs = args[len(c.words):]
		c.log = mlog.New(strings.Join(c.words, ""), nil)
		c.fn(&c)
		return
	}
	if len(partial) > 0 {
		usage(partial, true)
	}
	usage(cmds, false)
}

func xcheckf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	log.Fatalf("%s: %s", msg, err)
}

// flagWidth returns the width from a -width flag, with zero meaning the width
// from the config file.
func flagWidth(width int, conf config.Static) (int, error) {
	if width == 0 {
		return conf.Width, nil
	}
	return width, message.CheckWidth(width)
}

func cmdFlow(c *cmd) {
	c.params = "[-width n] [-procs n] [-charset charset] <text"
	c.help = `Flow text from standard input as format=flowed text.

Lines longer than the width are broken at spaces between words. Each broken
line ends with a space, so a receiving mail client can join the lines into the
paragraph again. Quoted lines keep their quote markers on each broken line.
Lines that are already short enough are not changed, except for
space-stuffing lines starting with a space or "From ".

Lines are flowed in parallel with -procs larger than 1, the output keeps the
order of the input.

The flowed text is written to standard output. Without -width, the width from
the config file is used.
`
	var width, procs int
	var charset string
	c.flag.IntVar(&width, "width", 0, "maximum line width in columns, 0 for the width from config file")
	c.flag.IntVar(&procs, "procs", 0, "number of goroutines flowing lines, 0 for the number from config file")
	c.flag.StringVar(&charset, "charset", "", "charset of the input text, converted to utf-8; default utf-8")
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	conf := mustLoadConfig()
	width, err := flagWidth(width, conf)
	xcheckf(err, "width")
	if procs == 0 {
		procs = conf.Procs
	}

	buf, err := io.ReadAll(c.input())
	xcheckf(err, "reading text")
	text, err := moxio.DecodeBytes(charset, buf)
	xcheckf(err, "decoding text")
	flowed, err := message.FlowTextParallel(text, width, procs)
	xcheckf(err, "flowing text")
	_, err = io.WriteString(c.output(), flowed)
	xcheckf(err, "writing flowed text")
}

func cmdUnflow(c *cmd) {
	c.params = "[-delsp=false] [-charset charset] <flowed-text"
	c.help = `Reconstruct paragraphs from format=flowed text on standard input.

Lines ending with a space are joined with the next line at the same quote
depth. With delsp, the default, the trailing space is removed when joining, as
for text written by "mailflow flow". Space-stuffing is removed.
`
	delsp := true
	var charset string
	c.flag.BoolVar(&delsp, "delsp", true, "remove the space at the end of flowed lines, as for DelSp=Yes")
	c.flag.StringVar(&charset, "charset", "", "charset of the input text, converted to utf-8; unknown charsets are read as utf-8")
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	mustLoadConfig()

	buf, err := io.ReadAll(moxio.DecodeReader(charset, c.input()))
	xcheckf(err, "reading text")
	_, err = io.WriteString(c.output(), flow.Unflow(string(buf), delsp))
	xcheckf(err, "writing text")
}

func cmdEncoding(c *cmd) {
	c.params = "[-type content-type] <body"
	c.help = `Print the content-transfer-encoding for a body on standard input.

Prints "7bit" for us-ascii text with lines of at most 998 bytes, "8bit" for
other text with such lines, and "unchanged" otherwise. With -type, only
text/plain bodies are considered for 7bit or 8bit.

The number of lines and length of the longest line are printed too.
`
	var contentType string
	c.flag.StringVar(&contentType, "type", "", "content-type of the body, e.g. text/plain; charset=utf-8")
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	mustLoadConfig()

	buf, err := io.ReadAll(c.input())
	xcheckf(err, "reading body")
	var sel message.Selection
	if contentType != "" {
		sel = message.SelectPartEncoding(contentType, buf)
	} else {
		sel = message.SelectEncoding(buf)
	}
	lines, longest, _ := message.LineStats(buf)
	_, err = fmt.Fprintf(c.output(), "%s\nlines %d, longest %d\n", sel.Encoding, lines, longest)
	xcheckf(err, "writing encoding")
}

func cmdRewrite(c *cmd) {
	c.params = "[-width n] [-raw] [-fallback quoted-printable|base64] <message"
	c.help = `Rewrite the text/plain parts of a message on standard input as format=flowed.

Plain text parts that are not attachments and not already flowed are flowed
and get a content-transfer-encoding of 7bit or 8bit. If the flowed text still
has lines longer than 998 bytes, the fallback encoding is used. Other parts are
copied, with a content-transfer-encoding added when needed. Multipart
structure, headers and boundaries are kept.

With -raw, text is not flowed, but the content-transfer-encoding is still
selected.

The rewritten message is written to standard output, the number of parts and
flowed parts are logged.
`
	var width int
	var raw bool
	var fallback string
	c.flag.IntVar(&width, "width", 0, "maximum line width in columns, 0 for the width from config file")
	c.flag.BoolVar(&raw, "raw", false, "do not flow text, only select transfer encoding")
	c.flag.StringVar(&fallback, "fallback", "", "transfer encoding for text with lines that are too long, default from config file")
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	conf := mustLoadConfig()
	width, err := flagWidth(width, conf)
	xcheckf(err, "width")
	if fallback == "" {
		fallback = conf.Fallback
	}

	opts := message.FlowOptions{Width: width, Procs: conf.Procs, Raw: raw, Fallback: fallback}
	out := bufio.NewWriter(c.output())
	stats, err := message.RewriteMessage(c.log, bufio.NewReader(c.input()), out, opts)
	xcheckf(err, "rewriting message")
	err = out.Flush()
	xcheckf(err, "writing message")
	c.log.Info("message rewritten", slog.Int("parts", stats.Parts), slog.Int("flowed", stats.Flowed))
}

func cmdConfigTest(c *cmd) {
	c.help = `Parses and validates the configuration file.

If valid, the command exits with status 0. If not valid, all errors encountered
are printed. Unlike other commands, a missing config file is an error.
`
	args := c.Parse()
	if len(args) != 0 {
		c.Usage()
	}

	_, errs := config.ParseFile(configPath)
	if len(errs) > 1 {
		log.Printf("multiple errors:")
		for _, err := range errs {
			log.Printf("%s", err)
		}
		os.Exit(1)
	} else if len(errs) == 1 {
		log.Fatalf("%s", errs[0])
	}
	fmt.Fprintln(c.output(), "config OK")
}

func cmdConfigDescribe(c *cmd) {
	c.params = ">mailflow.conf"
	c.help = `Prints an annotated empty configuration for use as mailflow.conf.

This configuration file needs modifications to make it valid. For example, the
log level must be set.
`
	if len(c.Parse()) != 0 {
		c.Usage()
	}

	var sc config.Static
	err := sconf.Describe(c.output(), &sc)
	xcheckf(err, "describing config")
}

func cmdVersion(c *cmd) {
	c.help = "Prints this mailflow version."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	fmt.Fprintln(c.output(), moxvar.Version)
	fmt.Fprintf(c.output(), "%s/%s\n", runtime.GOOS, runtime.GOARCH)
}
