/*
Command mailflow wraps plain text email bodies as format=flowed text (RFC 3676)
and selects a content-transfer-encoding for them.

  - Flow text with DelSp=yes, keeping quote markers on every broken line and
    space-stuffing where needed.
  - Reconstruct paragraphs from flowed text.
  - Select 7bit, 8bit or a fallback transfer encoding based on line length and
    character set.
  - Rewrite the text/plain parts of full MIME messages.
  - HTTP service with the same operations, and prometheus metrics.

# Commands

	mailflow [-config mailflow.conf] [-loglevel level] ...
	mailflow flow [-width n] [-procs n] [-charset charset] <text
	mailflow unflow [-delsp=false] [-charset charset] <flowed-text
	mailflow encoding [-type content-type] <body
	mailflow rewrite [-width n] [-raw] [-fallback quoted-printable|base64] <message
	mailflow serve
	mailflow config test
	mailflow config describe >mailflow.conf
	mailflow version
	mailflow help [command ...]

Commands read the configuration file for defaults, specified through the
-config flag or MAILFLOWCONF environment variable. If the file does not exist,
built-in defaults are used.

# mailflow flow

Flow text from standard input as format=flowed text.

Lines longer than the width are broken at spaces between words. Each broken
line ends with a space, so a receiving mail client can join the lines into the
paragraph again. Quoted lines keep their quote markers on each broken line.
Lines that are already short enough are not changed, except for
space-stuffing lines starting with a space or "From ".

Lines are flowed in parallel with -procs larger than 1, the output keeps the
order of the input.

The flowed text is written to standard output. Without -width, the width from
the config file is used.

	usage: mailflow flow [-width n] [-procs n] [-charset charset] <text
	  -charset string
	    	charset of the input text, converted to utf-8; default utf-8
	  -procs int
	    	number of goroutines flowing lines, 0 for the number from config file
	  -width int
	    	maximum line width in columns, 0 for the width from config file

# mailflow unflow

Reconstruct paragraphs from format=flowed text on standard input.

Lines ending with a space are joined with the next line at the same quote
depth. With delsp, the default, the trailing space is removed when joining, as
for text written by "mailflow flow". Space-stuffing is removed.

	usage: mailflow unflow [-delsp=false] [-charset charset] <flowed-text
	  -charset string
	    	charset of the input text, converted to utf-8; unknown charsets are read as utf-8
	  -delsp
	    	remove the space at the end of flowed lines, as for DelSp=Yes (default true)

# mailflow encoding

Print the content-transfer-encoding for a body on standard input.

Prints "7bit" for us-ascii text with lines of at most 998 bytes, "8bit" for
other text with such lines, and "unchanged" otherwise. With -type, only
text/plain bodies are considered for 7bit or 8bit.

The number of lines and length of the longest line are printed too.

	usage: mailflow encoding [-type content-type] <body
	  -type string
	    	content-type of the body, e.g. text/plain; charset=utf-8

# mailflow rewrite

Rewrite the text/plain parts of a message on standard input as format=flowed.

Plain text parts that are not attachments and not already flowed are flowed
and get a content-transfer-encoding of 7bit or 8bit. If the flowed text still
has lines longer than 998 bytes, the fallback encoding is used. Other parts are
copied, with a content-transfer-encoding added when needed. Multipart
structure, headers and boundaries are kept.

With -raw, text is not flowed, but the content-transfer-encoding is still
selected.

The rewritten message is written to standard output, the number of parts and
flowed parts are logged.

	usage: mailflow rewrite [-width n] [-raw] [-fallback quoted-printable|base64] <message
	  -fallback string
	    	transfer encoding for text with lines that are too long, default from config file
	  -raw
	    	do not flow text, only select transfer encoding
	  -width int
	    	maximum line width in columns, 0 for the width from config file

# mailflow serve

Start the HTTP service for flowing text and rewriting messages.

The service listens on the address from the Listen section of the config file,
or localhost:1077 if the config file has no Listen section. The endpoints are
listed at /.

The service shuts down gracefully on SIGINT and SIGTERM, requests in progress
are given some time to finish.

	usage: mailflow serve

# mailflow config test

Parses and validates the configuration file.

If valid, the command exits with status 0. If not valid, all errors encountered
are printed. Unlike other commands, a missing config file is an error.

	usage: mailflow config test

# mailflow config describe

Prints an annotated empty configuration for use as mailflow.conf.

This configuration file needs modifications to make it valid. For example, the
log level must be set.

	usage: mailflow config describe >mailflow.conf

# mailflow version

Prints this mailflow version.

	usage: mailflow version

# mailflow help

Prints help about matching commands.

If multiple commands match, they are listed along with the first line of their help text.
If a single command matches, its usage and full help text is printed.

	usage: mailflow help [command ...]
*/
package main
