/*
Package config holds the configuration file definition for mailflow.

Mailflow has a single, static configuration file, mailflow.conf. It is read at
startup. Commands other than "config test" also work without a
config file, using defaults.

The config file is in "sconf" format. Properties of sconf files:

  - Indentation with tabs only.
  - "#" as first non-whitespace character makes the line a comment. Lines with a
    value cannot also have a comment.
  - Values don't have syntax indicating their type. For example, strings are
    not quoted/escaped and can never span multiple lines.
  - Fields that are optional can be left out completely. But the value of an
    optional field may itself have required fields.

See https://pkg.go.dev/github.com/mjl-/sconf for details.

An example config file:

	LogLevel: info
	PackageLogLevels:
		webflow: debug
	Width: 72
	Fallback: base64
	Procs: 4
	Listen:
		Address: localhost:1077
		Metrics: true

Run "mailflow config describe" for an annotated empty config file.
*/
package config
