package validate

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/dcmlab/bagv"
	"github.com/dcmlab/bagv/bag"
	"github.com/pkg/errors"
)

// IntegrityValidator checks payload integrity: every manifest entry
// resolves to a file whose recomputed digest matches, every payload file
// is listed in each manifest, and the declared Payload-Oxum agrees with
// the payload actually present.
type IntegrityValidator struct{}

// NewIntegrity prepares a payload-integrity validator
func NewIntegrity() *IntegrityValidator {
	return &IntegrityValidator{}
}

func (v *IntegrityValidator) Name() string { return "integrity" }

// Validate recomputes checksums for each payload manifest of the bag.
// An unsupported manifest algorithm is a configuration error and aborts
// before any hashing; an unreadable single file is reported as a finding
// and does not stop the run.
func (v *IntegrityValidator) Validate(ctx context.Context, b *bag.Bag) (*bagv.Result, error) {
	if len(b.Manifests) == 0 {
		r := &bagv.Result{}
		r.Errf(bagv.CodeMissingManifest, "manifest",
			"bag carries no payload manifest; integrity cannot be established")
		return r, nil
	}

	for alg := range b.Manifests {
		if !alg.Supported() {
			return nil, bagv.Configf("unsupported checksum algorithm %q in manifest", alg)
		}
	}

	onDisk, err := b.PayloadFiles()
	if err != nil {
		return nil, bagv.IOWrap(err, b.PayloadDir())
	}

	r := &bagv.Result{}
	for _, alg := range sortedAlgs(b.Manifests) {
		if err := v.checkManifest(ctx, b, alg, b.Manifests[alg], onDisk, r); err != nil {
			return nil, err
		}
	}

	v.checkOxum(b, onDisk, r)

	return r, nil
}

func (v *IntegrityValidator) checkManifest(ctx context.Context, b *bag.Bag, alg bag.Alg, m bag.Manifest, onDisk []string, r *bagv.Result) error {
	// manifest entries against the filesystem
	for _, path := range m.Paths() {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "integrity check interrupted")
		}

		declared := m[path]
		computed, err := hashFile(alg, filepath.Join(b.Root, filepath.FromSlash(path)))
		if os.IsNotExist(errors.Cause(err)) {
			r.Errf(bagv.CodeMissingFile, path,
				"file %s is listed in the %s manifest but absent from the payload", path, alg)
			continue
		}
		if err != nil {
			// unreadable file: report and keep going
			r.Errf(bagv.CodeUnreadableFile, path, "could not hash %s: %s", path, err)
			continue
		}

		if computed != declared {
			r.Errf(bagv.CodeChecksumMismatch, path,
				"checksum mismatch for %s: manifest declares %s %s, computed %s",
				path, alg, declared, computed)
		}
	}

	// filesystem against the manifest
	for _, path := range onDisk {
		if _, ok := m[path]; !ok {
			r.Errf(bagv.CodeOrphanFile, path,
				"payload file %s is not listed in the %s manifest", path, alg)
		}
	}

	return nil
}

func (v *IntegrityValidator) checkOxum(b *bag.Bag, onDisk []string, r *bagv.Result) {
	if b.Oxum == nil {
		return
	}

	var octets, count int64
	for _, path := range onDisk {
		fi, err := os.Stat(filepath.Join(b.Root, filepath.FromSlash(path)))
		if err != nil {
			continue // already reported against the manifest
		}
		octets += fi.Size()
		count++
	}

	if octets != b.Oxum.Octets || count != b.Oxum.Count {
		r.Errf(bagv.CodeOxumMismatch, "Payload-Oxum",
			"Payload-Oxum declares %d.%d but payload holds %d octets in %d files",
			b.Oxum.Octets, b.Oxum.Count, octets, count)
	}
}

// FileValidator checks a single file's digest against an expected value.
// It is the smallest integrity check, usable outside any bag context.
type FileValidator struct {
	Alg   bag.Alg
	Value string
}

// NewFile prepares a single-file checksum validator.  The algorithm must
// be a supported one.
func NewFile(alg bag.Alg, value string) (*FileValidator, error) {
	if !alg.Supported() {
		return nil, bagv.Configf("unsupported checksum algorithm %q", alg)
	}
	return &FileValidator{Alg: alg, Value: value}, nil
}

func (v *FileValidator) Name() string { return "file-integrity" }

// ValidateFile hashes one file and compares against the expected value
func (v *FileValidator) ValidateFile(path string) (*bagv.Result, error) {
	computed, err := hashFile(v.Alg, path)
	if err != nil {
		return nil, bagv.IOWrap(err, path)
	}

	r := &bagv.Result{}
	if computed != v.Value {
		r.Errf(bagv.CodeChecksumMismatch, path,
			"checksum mismatch: expected %q, but found %q", v.Value, computed)
	}
	return r, nil
}

// Validate checks every payload file of the bag against the expected
// value, satisfying the Validator contract.  Useful mainly for bags whose
// payload is a single object.
func (v *FileValidator) Validate(ctx context.Context, b *bag.Bag) (*bagv.Result, error) {
	files, err := b.PayloadFiles()
	if err != nil {
		return nil, bagv.IOWrap(err, b.PayloadDir())
	}

	results := make([]*bagv.Result, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "file integrity check interrupted")
		}
		r, err := v.ValidateFile(filepath.Join(b.Root, filepath.FromSlash(f)))
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return bagv.Merge(results...), nil
}

func hashFile(alg bag.Alg, path string) (string, error) {
	h := alg.New()
	if h == nil {
		return "", bagv.Configf("unsupported checksum algorithm %q", alg)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "could not open %s", path)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "could not hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func sortedAlgs(m map[bag.Alg]bag.Manifest) []bag.Alg {
	algs := make([]bag.Alg, 0, len(m))
	for a := range m {
		algs = append(algs, a)
	}
	sort.Slice(algs, func(i, j int) bool { return algs[i] < algs[j] })
	return algs
}
