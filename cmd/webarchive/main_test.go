package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/zdypro888/webarchive"
)

func writeArchive(t *testing.T, format webarchive.Format) string {
	t.Helper()
	a := webarchive.NewArchive(
		webarchive.NewResource("https://example.com/", "text/html", []byte("<html></html>"),
			webarchive.WithTextEncodingName("UTF-8")),
		webarchive.WithSubresources(
			webarchive.NewResource("https://example.com/style.css", "text/css", []byte("p{}")),
		),
	)
	data, err := webarchive.Encode(a, format)
	require.NoError(t, err)
	name := filepath.Join(t.TempDir(), "page.webarchive")
	require.NoError(t, os.WriteFile(name, data, 0o644))
	return name
}

func TestList(t *testing.T) {
	var buf bytes.Buffer
	cmd := &listCommand{Args: inputArgs{Input: writeArchive(t, webarchive.BinaryFormat)}, out: &buf}
	require.NoError(t, cmd.Execute(nil))
	require.Equal(t, `WebArchive of "https://example.com/" ("text/html", 13 bytes): 1 subresource, 0 subframe archives totalling 16 bytes
  - "https://example.com/style.css" ("text/css", 3 bytes)
`, buf.String())
}

func TestConvert(t *testing.T) {
	in := writeArchive(t, webarchive.BinaryFormat)

	var buf bytes.Buffer
	cmd := &convertCommand{Format: "xml", out: &buf}
	cmd.Args.Input = in
	cmd.Args.Output = "-"
	require.NoError(t, cmd.Execute(nil))
	require.True(t, strings.HasPrefix(buf.String(), "<?xml"))
	require.Contains(t, buf.String(), "<string>https://example.com/style.css</string>")

	out := filepath.Join(t.TempDir(), "out.webarchive")
	cmd = &convertCommand{Format: "binary"}
	cmd.Args.Input = in
	cmd.Args.Output = out
	require.NoError(t, cmd.Execute(nil))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	original, err := os.ReadFile(in)
	require.NoError(t, err)
	require.Equal(t, original, data)
}

func TestManifest(t *testing.T) {
	var buf bytes.Buffer
	cmd := &manifestCommand{Args: inputArgs{Input: writeArchive(t, webarchive.XMLFormat)}, out: &buf}
	require.NoError(t, cmd.Execute(nil))

	var got manifest
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, "XML", got.Format)
	require.Equal(t, "https://example.com/", got.URL)
	require.Equal(t, 16, got.TotalSize)
	require.Len(t, got.Resources, 2)
	require.Equal(t, "example.com/_unnamed_index.html", got.Resources[0].Path)
	require.Equal(t, "example.com/style.css", got.Resources[1].Path)
	require.Equal(t, 3, got.Resources[1].Size)
}

func TestExtractCommandDefaultsToArchiveDir(t *testing.T) {
	in := writeArchive(t, webarchive.BinaryFormat)
	_, err := newParser().ParseArgs([]string{"extract", "-j", "2", in})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(filepath.Dir(in), "example.com", "style.css"))
	require.NoError(t, err)
	require.Equal(t, "p{}", string(data))
}

func TestExtractCommandOutput(t *testing.T) {
	in := writeArchive(t, webarchive.XMLFormat)
	out := t.TempDir()
	_, err := newParser().ParseArgs([]string{"extract", "--output", out, in})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "example.com", "_unnamed_index.html"))
	require.NoError(t, err)
}

func TestReadErrors(t *testing.T) {
	name := filepath.Join(t.TempDir(), "bad.webarchive")
	require.NoError(t, os.WriteFile(name, []byte("bplist00"), 0o644))
	_, err := newParser().ParseArgs([]string{"list", name})
	require.Error(t, err)
	require.Contains(t, err.Error(), name)

	attrs := errorAttrs(err)
	require.Contains(t, attrs, "truncated")

	_, err = newParser().ParseArgs([]string{"list", filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}

func TestErrorAttrs(t *testing.T) {
	err := &webarchive.SchemaError{Path: "WebSubframeArchives[0]", Key: "WebMainResource", Err: os.ErrNotExist}
	attrs := errorAttrs(err)
	require.Contains(t, attrs, "schema")
	require.Contains(t, attrs, "WebMainResource")

	attrs = errorAttrs(&webarchive.FormatError{Format: "XML", Offset: -1, Err: os.ErrInvalid})
	require.Contains(t, attrs, "format")
	require.NotContains(t, attrs, "offset")
}

func TestUsageErrors(t *testing.T) {
	_, err := newParser().ParseArgs([]string{"convert", "--format", "json", "a", "b"})
	require.Error(t, err)
	_, err = newParser().ParseArgs([]string{"list"})
	require.Error(t, err)
}
