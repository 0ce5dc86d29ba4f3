// Package jhove provides a format plugin backed by the JHOVE object
// validation tool from the Open Preservation Foundation,
// https://jhove.openpreservation.org/.  Identification is performed
// in-process from magic numbers; structural validation shells out to the
// jhove executable per file, with a timeout, and maps its report into
// findings.
package jhove

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/dcmlab/bagv"
	"github.com/gabriel-vasile/mimetype"
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

// Environment variables consulted by FromEnv, once, at construction
const (
	EnvApp  = "JHOVE_APP"
	EnvConf = "JHOVE_APP_CONF"
)

// DefaultTimeout bounds a single jhove invocation
const DefaultTimeout = 2 * time.Minute

// modules maps jhove validation modules to the MIME types they handle.
// The empty module lets jhove pick one itself (used for text/plain, since
// magic-number identification reports no charset).
// see https://jhove.openpreservation.org/modules/
var modules = map[string][]string{
	"":             {"text/plain"},
	"AIFF-hul":     {"audio/x-aiff"},
	"GIF-hul":      {"image/gif"},
	"HTML-hul":     {"text/html"},
	"JPEG-hul":     {"image/jpeg"},
	"JPEG2000-hul": {"image/jp2", "image/jpx"},
	"PDF-hul":      {"application/pdf"},
	"TIFF-hul":     {"image/tiff", "image/tiff-fx", "image/ief"},
	"WAVE-hul":     {"audio/vnd.wave", "audio/wav"},
	"XML-hul":      {"text/xml", "application/xml"},
	"PNG-gdm":      {"image/png"}, // third party
}

// Config locates and bounds the external jhove process.  All fields are
// resolved once, at construction; nothing is read from the environment
// per file.
type Config struct {
	// Command invokes the jhove starter script, e.g. "jhove" or
	// "java -jar /opt/jhove/jhove.jar".  Split with shell quoting rules.
	Command string

	// ConfFile is the path of the jhove configuration file, passed as -c
	// when non-empty.
	ConfFile string

	// Timeout per invocation; DefaultTimeout when zero
	Timeout time.Duration
}

// Plugin wraps the jhove executable behind the format plugin contract
type Plugin struct {
	argv    []string
	conf    string
	timeout time.Duration
}

// New creates a jhove plugin.  The configured command must resolve to an
// executable now; a missing or unresolvable jhove is a configuration
// error at plugin load, not a per-file failure later.
func New(cfg Config) (*Plugin, error) {
	command := cfg.Command
	if command == "" {
		command = "jhove"
	}

	argv, err := shellquote.Split(command)
	if err != nil || len(argv) == 0 {
		return nil, bagv.ConfigWrap(err, "bad jhove command %q", command)
	}

	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, bagv.ConfigWrap(err, "jhove executable %q not found", argv[0])
	}

	if cfg.ConfFile != "" {
		if _, err := os.Stat(cfg.ConfFile); err != nil {
			return nil, bagv.ConfigWrap(err, "jhove configuration file %q not readable", cfg.ConfFile)
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Plugin{argv: argv, conf: cfg.ConfFile, timeout: timeout}, nil
}

// FromEnv creates a jhove plugin from JHOVE_APP and JHOVE_APP_CONF.
// The environment is read here, once; a convenience over explicit Config.
func FromEnv() (*Plugin, error) {
	return New(Config{
		Command:  os.Getenv(EnvApp),
		ConfFile: os.Getenv(EnvConf),
	})
}

// Describe returns the plugin's static self-description
func (p *Plugin) Describe() bagv.Descriptor {
	var formats []string
	for _, mimes := range modules {
		formats = append(formats, mimes...)
	}
	sort.Strings(formats)

	var pairs []string
	for _, m := range sortedModules() {
		pairs = append(pairs, fmt.Sprintf("%s: %v", m, modules[m]))
	}

	return bagv.Descriptor{
		Name:    "jhove",
		Summary: "file format validation based on JHOVE",
		Description: "Validates file formats with the JHOVE software by the Open " +
			"Preservation Foundation (https://jhove.openpreservation.org/), " +
			"configured with the following module map: " + strings.Join(pairs, "; "),
		DefaultFormats: formats,
	}
}

// Identify determines the file's MIME type from its magic numbers.
// Content that matches no signature is reported as unknown, not failed.
func (p *Plugin) Identify(path string) (bagv.Identification, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return bagv.Identification{}, bagv.IOWrap(errors.Wrap(err, "cannot identify"), path)
	}

	format := strings.ToLower(strings.TrimSpace(strings.Split(mt.String(), ";")[0]))
	certainty := bagv.Certain
	if format == "application/octet-stream" || format == "" {
		// the detector's fallback type, i.e. no signature matched
		return bagv.Identification{Path: path, Format: bagv.FormatUnknown}, nil
	}

	return bagv.Identification{Path: path, Format: format, Certainty: certainty}, nil
}

// ValidateFormat runs jhove on the file with the module registered for
// the format and converts its report into findings.  A crash, timeout,
// or unparseable report is a plugin failure for this file only.
func (p *Plugin) ValidateFormat(ctx context.Context, path string, format string) (*bagv.Result, error) {
	module, ok := moduleFor(format)
	if !ok {
		r := &bagv.Result{}
		r.Infof(bagv.CodeUnsupportedFormat, path,
			"no jhove module registered for format %s; nothing checked", format)
		return r, nil
	}

	out, err := p.invoke(ctx, path, module)
	if err != nil {
		return nil, err
	}

	rep, err := parseReport(out)
	if err != nil {
		return nil, bagv.PluginWrap(err, "jhove", path)
	}

	return rep.result(path), nil
}

func (p *Plugin) invoke(ctx context.Context, path, module string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := append([]string(nil), p.argv[1:]...)
	if p.conf != "" {
		args = append(args, "-c", p.conf)
	}
	if module != "" {
		args = append(args, "-m", module)
	}
	args = append(args, "-h", "XML", path)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.argv[0], args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, bagv.PluginWrap(
				errors.Errorf("timed out after %s", p.timeout), "jhove", path)
		}
		return nil, bagv.PluginWrap(
			errors.Wrapf(err, "jhove exited abnormally: %s", firstLine(stderr.String())),
			"jhove", path)
	}

	return stdout.Bytes(), nil
}

func moduleFor(format string) (string, bool) {
	for module, mimes := range modules {
		for _, m := range mimes {
			if strings.EqualFold(m, format) {
				return module, true
			}
		}
	}
	return "", false
}

func sortedModules() []string {
	names := make([]string, 0, len(modules))
	for m := range modules {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
