// Package extension provides the reference format plugin.  It identifies
// formats purely from file name suffixes and performs no deep structural
// validation, which makes it the executable specification of the plugin
// contract and the backend of choice for tests that must not depend on
// external processes.
package extension

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dcmlab/bagv"
	"github.com/pkg/errors"
)

// mimeTypes maps MIME types to the file extensions they are conventionally
// stored under.
// see http://svn.apache.org/viewvc/httpd/httpd/trunk/docs/conf/mime.types?view=markup
var mimeTypes = map[string][]string{
	"text/csv":         {"csv"},
	"text/html":        {"html", "htm"},
	"text/xml":         {"xml"},
	"text/plain":       {"txt", "text", "conf", "def", "list", "log", "in"},
	"application/pdf":  {"pdf"},
	"image/bmp":        {"bmp"},
	"image/gif":        {"gif"},
	"image/tiff":       {"tiff", "tif"},
	"image/png":        {"png"},
	"image/jpeg":       {"jpeg", "jpg", "jpe"},
	"video/webm":       {"webm"},
	"video/x-matroska": {"mkv", "mk3d", "mks"},
}

// byExtension is the inverse lookup, built once at init
var byExtension = func() map[string]string {
	m := map[string]string{}
	for mime, exts := range mimeTypes {
		for _, ext := range exts {
			m[ext] = mime
		}
	}
	return m
}()

// Plugin identifies and "validates" formats by file extension alone
type Plugin struct{}

// New creates the extension plugin.  It holds no state and needs no
// configuration.
func New() *Plugin {
	return &Plugin{}
}

// Describe returns the plugin's static self-description
func (p *Plugin) Describe() bagv.Descriptor {
	formats := make([]string, 0, len(mimeTypes))
	for mime := range mimeTypes {
		formats = append(formats, mime)
	}
	sort.Strings(formats)

	return bagv.Descriptor{
		Name:    "extension",
		Summary: "file format validation by file name suffix",
		Description: "Identifies a file's format from its name suffix using a " +
			"static extension map and performs no structural validation. " +
			"It demonstrates the plugin contract and is not intended for production use.",
		DefaultFormats: formats,
	}
}

// Identify derives the format from the file's suffix.  Unmapped suffixes
// yield an unknown-format identification rather than an error; only an
// unreadable file fails.
func (p *Plugin) Identify(path string) (bagv.Identification, error) {
	if _, err := os.Stat(path); err != nil {
		return bagv.Identification{}, bagv.IOWrap(errors.Wrap(err, "cannot identify"), path)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	format, ok := byExtension[ext]
	if !ok {
		return bagv.Identification{Path: path, Format: bagv.FormatUnknown}, nil
	}

	return bagv.Identification{Path: path, Format: format, Certainty: bagv.Heuristic}, nil
}

// ValidateFormat checks that the file's suffix is plausible for the
// declared format.  The check is heuristic only and always says so.
func (p *Plugin) ValidateFormat(ctx context.Context, path string, format string) (*bagv.Result, error) {
	r := &bagv.Result{}

	exts, known := mimeTypes[strings.ToLower(format)]
	if !known {
		r.Infof(bagv.CodeUnsupportedFormat, path,
			"format %s is outside this plugin's extension map; nothing checked", format)
		return r, nil
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	plausible := false
	for _, e := range exts {
		if e == ext {
			plausible = true
			break
		}
	}

	if !plausible {
		r.Errf(bagv.CodeMalformedFile, path,
			"file suffix %q is not plausible for declared format %s", ext, format)
	}
	r.Infof(bagv.CodeHeuristicOnly, path,
		"extension check is heuristic only; no structural validation performed")

	return r, nil
}
