// Command webarchive inspects, converts and unpacks Safari .webarchive files.
//
// Usage:
//
//	webarchive list page.webarchive
//	webarchive extract [-o dir] page.webarchive
//	webarchive convert [-f xml|binary] page.webarchive out.webarchive
//	webarchive manifest page.webarchive
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/zdypro888/webarchive"
)

type globalOptions struct {
	Verbose bool `short:"v" long:"verbose" env:"WEBARCHIVE_VERBOSE" description:"Log debug output"`
}

var opts globalOptions

// newLogger returns the logger for the current invocation. Errors and
// progress go to stderr so that stdout only carries command output.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newParser() *flags.Parser {
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.AddCommand("list",
		"List the resources of an archive",
		"Prints one line per archive and one per subresource.",
		&listCommand{})
	parser.AddCommand("extract",
		"Write the resources of an archive to files",
		"Writes every resource below the output directory, using the path of its URL.",
		&extractCommand{})
	parser.AddCommand("convert",
		"Re-encode an archive as XML or binary",
		"Decodes an archive in either encoding and writes it in the requested one.",
		&convertCommand{})
	parser.AddCommand("manifest",
		"Print a YAML manifest of an archive",
		"Prints the archive's resources and the paths extract would write them to.",
		&manifestCommand{})
	return parser
}

func main() {
	parser := newParser()
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				fmt.Fprintln(os.Stdout, flagsErr.Message)
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, flagsErr.Message)
			os.Exit(2)
		}
		newLogger().Error("command failed", errorAttrs(err)...)
		os.Exit(1)
	}
}

// errorAttrs describes err for logging, naming its kind and, when known,
// the offending key or offset.
func errorAttrs(err error) []any {
	attrs := []any{"error", err}
	var (
		truncated *webarchive.TruncatedError
		format    *webarchive.FormatError
		schema    *webarchive.SchemaError
		encoding  *webarchive.EncodingError
	)
	switch {
	case errors.As(err, &truncated):
		attrs = append(attrs, "kind", "truncated", "offset", truncated.Offset)
	case errors.As(err, &format):
		attrs = append(attrs, "kind", "format")
		if format.Offset >= 0 {
			attrs = append(attrs, "offset", format.Offset)
		}
	case errors.As(err, &schema):
		attrs = append(attrs, "kind", "schema", "path", schema.Path)
		if schema.Key != "" {
			attrs = append(attrs, "key", schema.Key)
		}
	case errors.As(err, &encoding):
		attrs = append(attrs, "kind", "encoding", "path", encoding.Path)
	}
	return attrs
}
