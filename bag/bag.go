package bag

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dcmlab/bagv"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// Well-known file names within a bag, as defined by RFC 8493
const (
	DeclarationFile = "bagit.txt"
	InfoFile        = "bag-info.txt"
	PayloadDirName  = "data"
)

// Alg identifies a checksum algorithm as named in manifest file names,
// e.g. manifest-sha512.txt
type Alg string

// Checksum algorithms this package can recompute
const (
	MD5    Alg = "md5"
	SHA1   Alg = "sha1"
	SHA256 Alg = "sha256"
	SHA512 Alg = "sha512"
)

// Supported reports whether the algorithm can be recomputed locally
func (a Alg) Supported() bool {
	switch a {
	case MD5, SHA1, SHA256, SHA512:
		return true
	}
	return false
}

// New returns a fresh hash for the algorithm, or nil if unsupported
func (a Alg) New() hash.Hash {
	switch a {
	case MD5:
		return md5.New()
	case SHA1:
		return sha1.New()
	case SHA256:
		return sha256.New()
	case SHA512:
		return sha512.New()
	}
	return nil
}

// Manifest maps payload-relative file paths (solidus delimited, e.g.
// data/sub/file.txt) to lowercase hex digests
type Manifest map[string]string

// Paths returns the manifest's file paths in sorted order
func (m Manifest) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Oxum is the Payload-Oxum tag value: total octets and file count of the
// payload as declared in bag-info.txt
type Oxum struct {
	Octets int64
	Count  int64
}

// Bag is a read-only view of a BagIt bag on disk: its declaration, metadata
// tags, manifests, and payload directory.  A Bag never mutates its backing
// files.
type Bag struct {
	Root         string
	Version      string // from bagit.txt, e.g. "1.0"
	Encoding     string // from bagit.txt, e.g. "UTF-8"
	Tags         map[string][]string
	Manifests    map[Alg]Manifest
	TagManifests map[Alg]Manifest
	Oxum         *Oxum // nil when bag-info.txt carries no Payload-Oxum
}

// Open reads the bag rooted at dir.  The directory must exist and contain
// a bagit.txt declaration; tag files and all manifests are parsed eagerly,
// payload files are not touched.  Read failures carry the IOError kind,
// so callers can tell an unreadable bag from an invalid one.
func Open(dir string) (*Bag, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, bagv.IOWrap(errors.Wrap(err, "could not stat bag root"), dir)
	}
	if !fi.IsDir() {
		// a serialized bag (archive file) must be unpacked before validation
		return nil, bagv.IOWrap(errors.New("bag root is not a directory"), dir)
	}

	b := &Bag{
		Root:         dir,
		Tags:         map[string][]string{},
		Manifests:    map[Alg]Manifest{},
		TagManifests: map[Alg]Manifest{},
	}

	if err := b.readDeclaration(); err != nil {
		return nil, err
	}
	if err := b.readInfo(); err != nil {
		return nil, err
	}
	if err := b.readManifests(); err != nil {
		return nil, err
	}

	return b, nil
}

// PayloadDir returns the OS path of the bag's payload directory
func (b *Bag) PayloadDir() string {
	return filepath.Join(b.Root, PayloadDirName)
}

// Tag returns the first value of the named bag-info tag
func (b *Bag) Tag(name string) (string, bool) {
	vals, ok := b.Tags[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// PayloadFiles enumerates the files actually present under data/, as sorted
// payload-relative solidus-delimited paths (e.g. data/sub/a.txt).  A missing
// payload directory yields an empty list; structural validators report on it
// separately.
func (b *Bag) PayloadFiles() ([]string, error) {
	payload := b.PayloadDir()
	if _, err := os.Stat(payload); os.IsNotExist(err) {
		return nil, nil
	}

	var files []string
	err := godirwalk.Walk(payload, &godirwalk.Options{
		Callback: func(ospath string, dirent *godirwalk.Dirent) error {
			if dirent.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(b.Root, ospath)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error walking payload of %s", b.Root)
	}

	sort.Strings(files)
	return files, nil
}

func (b *Bag) readDeclaration() error {
	decl := filepath.Join(b.Root, DeclarationFile)
	tags, err := parseTagFile(decl)
	if err != nil {
		return bagv.IOWrap(errors.Wrapf(err, "bag has no readable %s", DeclarationFile), b.Root)
	}
	if v, ok := tags["BagIt-Version"]; ok && len(v) > 0 {
		b.Version = v[0]
	}
	if e, ok := tags["Tag-File-Character-Encoding"]; ok && len(e) > 0 {
		b.Encoding = e[0]
	}
	return nil
}

func (b *Bag) readInfo() error {
	info := filepath.Join(b.Root, InfoFile)
	tags, err := parseTagFile(info)
	if os.IsNotExist(errors.Cause(err)) {
		return nil // bag-info.txt is optional
	}
	if err != nil {
		return bagv.IOWrap(errors.Wrapf(err, "could not read %s", InfoFile), b.Root)
	}
	b.Tags = tags

	if o, ok := b.Tag("Payload-Oxum"); ok {
		oxum, err := parseOxum(o)
		if err != nil {
			return errors.Wrapf(err, "bad Payload-Oxum in %s", info)
		}
		b.Oxum = &oxum
	}
	return nil
}

func (b *Bag) readManifests() error {
	entries, err := os.ReadDir(b.Root)
	if err != nil {
		return bagv.IOWrap(errors.Wrap(err, "could not list bag root"), b.Root)
	}

	for _, e := range entries {
		name := e.Name()
		alg, tagManifest, ok := manifestAlg(name)
		if !ok {
			continue
		}
		m, err := parseManifest(filepath.Join(b.Root, name))
		if err != nil {
			return errors.Wrapf(err, "could not parse manifest %s", name)
		}
		if tagManifest {
			b.TagManifests[alg] = m
		} else {
			b.Manifests[alg] = m
		}
	}
	return nil
}

// manifestAlg extracts the algorithm from a manifest file name, e.g.
// manifest-sha512.txt or tagmanifest-md5.txt
func manifestAlg(name string) (alg Alg, tagManifest bool, ok bool) {
	if !strings.HasSuffix(name, ".txt") {
		return "", false, false
	}
	base := strings.TrimSuffix(name, ".txt")

	switch {
	case strings.HasPrefix(base, "tagmanifest-"):
		return Alg(strings.TrimPrefix(base, "tagmanifest-")), true, true
	case strings.HasPrefix(base, "manifest-"):
		return Alg(strings.TrimPrefix(base, "manifest-")), false, true
	}
	return "", false, false
}

func parseOxum(s string) (Oxum, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Oxum{}, errors.Errorf("expected <octets>.<count>, got %q", s)
	}
	octets, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Oxum{}, errors.Wrapf(err, "bad octet count %q", parts[0])
	}
	count, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Oxum{}, errors.Wrapf(err, "bad file count %q", parts[1])
	}
	return Oxum{Octets: octets, Count: count}, nil
}
