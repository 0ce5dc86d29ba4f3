package validate

import (
	"context"
	"path/filepath"

	"github.com/dcmlab/bagv"
	"github.com/dcmlab/bagv/bag"
	"github.com/dcmlab/bagv/profile"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// FormatConfig tunes the file-format validator.
type FormatConfig struct {
	// SkipUnsupported skips files whose identified format is outside the
	// plugin's default set, recording an Info finding instead of invoking
	// the plugin.  The default is to check everything and let the plugin
	// report unsupported formats itself.
	SkipUnsupported bool

	// Workers bounds the number of files checked concurrently.  Zero or
	// one means sequential.  Report order is deterministic regardless:
	// findings are assembled sorted by file path, not by completion.
	Workers int
}

// FormatValidator checks payload file formats by delegating per-file
// identification and validation to a plugin.  One file's plugin failure
// is converted into a finding for that file and never aborts the batch.
type FormatValidator struct {
	plugin bagv.Plugin
	policy profile.FormatPolicy
	cfg    FormatConfig
}

// NewFormat prepares a format validator around the given plugin
func NewFormat(p bagv.Plugin, policy profile.FormatPolicy, cfg FormatConfig) (*FormatValidator, error) {
	if p == nil {
		return nil, bagv.Configf("format validation requires a plugin")
	}
	return &FormatValidator{plugin: p, policy: policy, cfg: cfg}, nil
}

func (v *FormatValidator) Name() string { return "format" }

// Validate identifies and validates every in-scope payload file
func (v *FormatValidator) Validate(ctx context.Context, b *bag.Bag) (*bagv.Result, error) {
	files, err := b.PayloadFiles()
	if err != nil {
		return nil, bagv.IOWrap(err, b.PayloadDir())
	}

	var targets []string
	for _, f := range files {
		if v.policy.Selects(f) {
			targets = append(targets, f)
		}
	}

	results := make([]*bagv.Result, len(targets))

	if v.cfg.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(v.cfg.Workers)
		for i, f := range targets {
			i, f := i, f
			g.Go(func() error {
				results[i] = v.checkFile(gctx, b, f)
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return nil, errors.Wrap(err, "format validation interrupted")
		}
	} else {
		for i, f := range targets {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "format validation interrupted")
			}
			results[i] = v.checkFile(ctx, b, f)
		}
	}

	// targets is sorted, so per-file order in the merged report is by path
	return bagv.Merge(results...), nil
}

// checkFile runs identify + validate for one payload file.  All failure
// modes end up as findings; the batch continues regardless.
func (v *FormatValidator) checkFile(ctx context.Context, b *bag.Bag, relpath string) *bagv.Result {
	r := &bagv.Result{}
	ospath := filepath.Join(b.Root, filepath.FromSlash(relpath))

	id, err := v.plugin.Identify(ospath)
	if err != nil {
		r.Errf(bagv.CodePluginFailure, relpath,
			"could not identify format of %s: %s", relpath, err)
		return r
	}

	if !id.Known() {
		r.Errf(bagv.CodeUnknownFormat, relpath,
			"format of %s could not be identified", relpath)
		return r
	}

	if v.cfg.SkipUnsupported && !v.plugin.Describe().Supports(id.Format) {
		r.Infof(bagv.CodeFormatNotChecked, relpath,
			"format %s of %s not checked: outside plugin %s's default formats",
			id.Format, relpath, v.plugin.Describe().Name)
		return r
	}

	fr, err := v.plugin.ValidateFormat(ctx, ospath, id.Format)
	if err != nil {
		r.Errf(bagv.CodePluginFailure, relpath,
			"format validation of %s (%s) failed: %s", relpath, id.Format, err)
		return r
	}

	// tag each finding with the payload-relative path where the plugin
	// left the subject empty or used the OS path
	for _, f := range fr.Findings() {
		if f.Subject == "" || f.Subject == ospath {
			f.Subject = relpath
		}
		r.Add(f)
	}
	return r
}
