package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/zdypro888/webarchive"
	"github.com/zdypro888/webarchive/internal/extract"
)

type inputArgs struct {
	Input string `positional-arg-name:"archive" description:"Web archive to read"`
}

func readArchive(name string) (*webarchive.Archive, webarchive.Format, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, 0, err
	}
	a, format, err := webarchive.DecodeFormat(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", name, err)
	}
	newLogger().Debug("decoded archive",
		"file", name,
		"format", format,
		"resources", a.ResourceCount(),
		"bytes", a.TotalSize(),
	)
	return a, format, nil
}

type listCommand struct {
	Args inputArgs `positional-args:"yes" required:"yes"`

	out io.Writer
}

func (c *listCommand) Execute(args []string) error {
	a, _, err := readArchive(c.Args.Input)
	if err != nil {
		return err
	}
	return a.WriteList(outputOf(c.out))
}

type extractCommand struct {
	Output string    `short:"o" long:"output" description:"Directory to write into (default: the archive's directory)"`
	Jobs   int       `short:"j" long:"jobs" env:"WEBARCHIVE_JOBS" default:"4" description:"Files written at once"`
	Args   inputArgs `positional-args:"yes" required:"yes"`
}

func (c *extractCommand) Execute(args []string) error {
	a, _, err := readArchive(c.Args.Input)
	if err != nil {
		return err
	}
	dir := c.Output
	if dir == "" {
		dir = filepath.Dir(c.Args.Input)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := newLogger()
	entries, err := extract.New(dir, extract.WithJobs(c.Jobs), extract.WithLogger(logger)).Extract(ctx, a)
	if err != nil {
		return err
	}
	logger.Info("extracted archive", "files", len(entries), "dir", dir)
	return nil
}

type convertCommand struct {
	Format string `short:"f" long:"format" env:"WEBARCHIVE_FORMAT" choice:"xml" choice:"binary" default:"xml" description:"Output encoding"`
	Args   struct {
		Input  string `positional-arg-name:"archive" description:"Web archive to read"`
		Output string `positional-arg-name:"output" description:"File to write, or - for stdout"`
	} `positional-args:"yes" required:"yes"`

	out io.Writer
}

func (c *convertCommand) Execute(args []string) error {
	a, from, err := readArchive(c.Args.Input)
	if err != nil {
		return err
	}
	format := webarchive.XMLFormat
	if c.Format == "binary" {
		format = webarchive.BinaryFormat
	}
	data, err := webarchive.Encode(a, format)
	if err != nil {
		return err
	}
	newLogger().Info("converted archive", "from", from, "to", format, "bytes", len(data))
	if c.Args.Output == "-" {
		_, err = outputOf(c.out).Write(data)
		return err
	}
	return os.WriteFile(c.Args.Output, data, 0o644)
}

// manifest is the YAML document printed by the manifest command.
type manifest struct {
	Source    string          `yaml:"source"`
	Format    string          `yaml:"format"`
	URL       string          `yaml:"url"`
	TotalSize int             `yaml:"total_size"`
	Resources []extract.Entry `yaml:"resources"`
}

type manifestCommand struct {
	Args inputArgs `positional-args:"yes" required:"yes"`

	out io.Writer
}

func (c *manifestCommand) Execute(args []string) error {
	a, format, err := readArchive(c.Args.Input)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(&manifest{
		Source:    c.Args.Input,
		Format:    format.String(),
		URL:       a.MainResource.URL,
		TotalSize: a.TotalSize(),
		Resources: extract.Plan(a),
	})
	if err != nil {
		return err
	}
	_, err = outputOf(c.out).Write(data)
	return err
}

func outputOf(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
