package validate_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dcmlab/bagv"
	"github.com/dcmlab/bagv/bag"
	"github.com/dcmlab/bagv/profile"
	"github.com/dcmlab/bagv/validate"
)

// writeBag lays out a bag with a correct sha256 manifest for the given
// payload, then applies overrides to individual manifest entries.
func writeBag(t *testing.T, payload map[string]string, overrides map[string]string) string {
	t.Helper()
	root := t.TempDir()

	var manifest strings.Builder
	var octets int64
	for name, content := range payload {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		octets += int64(len(content))

		digest := sha256.Sum256([]byte(content))
		hexdigest := hex.EncodeToString(digest[:])
		if o, ok := overrides[name]; ok {
			hexdigest = o
		}
		fmt.Fprintf(&manifest, "%s %s\n", hexdigest, name)
	}

	files := map[string]string{
		"bagit.txt": "BagIt-Version: 1.0\nTag-File-Character-Encoding: UTF-8\n",
		"bag-info.txt": "Source-Organization: LZV\n" +
			fmt.Sprintf("Payload-Oxum: %d.%d\n", octets, len(payload)),
		"manifest-sha256.txt": manifest.String(),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func openBag(t *testing.T, root string) *bag.Bag {
	t.Helper()
	b, err := bag.Open(root)
	if err != nil {
		t.Fatalf("could not open fixture bag: %s", err)
	}
	return b
}

func findingsWithCode(r *bagv.Result, code bagv.Code) []bagv.Finding {
	var out []bagv.Finding
	for _, f := range r.Findings() {
		if f.Code == code {
			out = append(out, f)
		}
	}
	return out
}

func TestIntegrityConformingBag(t *testing.T) {
	root := writeBag(t, map[string]string{"data/a.txt": "hello"}, nil)

	r, err := validate.NewIntegrity().Validate(context.Background(), openBag(t, root))
	if err != nil {
		t.Fatal(err)
	}
	if !r.Valid() {
		t.Errorf("conforming bag reported invalid: %+v", r.Findings())
	}
}

func TestIntegrityChecksumMismatch(t *testing.T) {
	root := writeBag(t, map[string]string{
		"data/a.txt": "hello",
		"data/b.txt": "world",
	}, map[string]string{
		"data/b.txt": strings.Repeat("0", 64),
	})

	r, err := validate.NewIntegrity().Validate(context.Background(), openBag(t, root))
	if err != nil {
		t.Fatal(err)
	}
	if r.Valid() {
		t.Fatal("bag with a mismatched checksum reported valid")
	}

	mismatches := findingsWithCode(r, bagv.CodeChecksumMismatch)
	if len(mismatches) != 1 {
		t.Fatalf("expected exactly one mismatch finding, got %d", len(mismatches))
	}
	f := mismatches[0]
	if f.Subject != "data/b.txt" || f.Severity != bagv.Error {
		t.Errorf("wrong mismatch finding: %+v", f)
	}
	if !strings.Contains(f.Message, strings.Repeat("0", 64)) {
		t.Error("mismatch message should carry the declared checksum")
	}
}

func TestIntegrityMissingFiles(t *testing.T) {
	root := writeBag(t, map[string]string{
		"data/a.txt": "hello",
		"data/b.txt": "world",
	}, nil)
	for _, gone := range []string{"data/a.txt", "data/b.txt"} {
		if err := os.Remove(filepath.Join(root, filepath.FromSlash(gone))); err != nil {
			t.Fatal(err)
		}
	}

	r, err := validate.NewIntegrity().Validate(context.Background(), openBag(t, root))
	if err != nil {
		t.Fatal(err)
	}
	if r.Valid() {
		t.Fatal("bag with missing files reported valid")
	}

	missing := findingsWithCode(r, bagv.CodeMissingFile)
	if len(missing) != 2 {
		t.Errorf("expected one missing-file finding per missing file, got %d", len(missing))
	}
}

func TestIntegrityOrphanFile(t *testing.T) {
	root := writeBag(t, map[string]string{"data/a.txt": "hello"}, nil)
	if err := os.WriteFile(filepath.Join(root, "data", "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := validate.NewIntegrity().Validate(context.Background(), openBag(t, root))
	if err != nil {
		t.Fatal(err)
	}

	orphans := findingsWithCode(r, bagv.CodeOrphanFile)
	if len(orphans) != 1 || orphans[0].Subject != "data/stray.txt" {
		t.Errorf("expected one orphan finding for data/stray.txt, got %+v", orphans)
	}
	// the stray file also breaks the oxum
	if len(findingsWithCode(r, bagv.CodeOxumMismatch)) != 1 {
		t.Error("expected an oxum mismatch finding")
	}
}

func TestIntegrityUnsupportedAlgorithm(t *testing.T) {
	root := writeBag(t, map[string]string{"data/a.txt": "hello"}, nil)
	err := os.WriteFile(filepath.Join(root, "manifest-crc32.txt"), []byte("abcd data/a.txt\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}

	_, verr := validate.NewIntegrity().Validate(context.Background(), openBag(t, root))
	if verr == nil || !bagv.IsConfig(verr) {
		t.Errorf("expected a configuration error for an unsupported algorithm, got %v", verr)
	}
}

func TestFileValidator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "object.bin")
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}
	digest := sha256.Sum256([]byte("payload"))

	v, err := validate.NewFile(bag.SHA256, hex.EncodeToString(digest[:]))
	if err != nil {
		t.Fatal(err)
	}

	r, err := v.ValidateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Valid() {
		t.Errorf("matching checksum reported invalid: %+v", r.Findings())
	}

	bad, _ := validate.NewFile(bag.SHA256, strings.Repeat("f", 64))
	r, err = bad.ValidateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if r.Valid() {
		t.Error("wrong checksum reported valid")
	}

	if _, err := validate.NewFile(bag.Alg("crc32"), "x"); err == nil || !bagv.IsConfig(err) {
		t.Errorf("expected a configuration error for crc32, got %v", err)
	}
}

func TestProfileMissingRequiredField(t *testing.T) {
	root := writeBag(t, map[string]string{"data/a.txt": "hello"}, nil)

	v, err := validate.NewProfile(&profile.Profile{
		BagInfo: map[string]profile.TagSpec{
			"Source-Organization": {Required: true}, // present in fixture
			"Contact-Name":        {Required: true}, // absent
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	r, err := v.Validate(context.Background(), openBag(t, root))
	if err != nil {
		t.Fatal(err)
	}
	if r.Valid() {
		t.Fatal("bag missing a required field reported valid")
	}

	missing := findingsWithCode(r, bagv.CodeMissingRequiredField)
	if len(missing) != 1 || missing[0].Subject != "Contact-Name" {
		t.Errorf("expected one missing-field finding for Contact-Name, got %+v", missing)
	}
}

func TestProfileValueConstraints(t *testing.T) {
	root := writeBag(t, map[string]string{"data/a.txt": "hello"}, nil)

	v, err := validate.NewProfile(&profile.Profile{
		BagInfo: map[string]profile.TagSpec{
			"Source-Organization": {Required: true, Values: []string{"Somewhere Else"}},
		},
		ManifestsRequired:  []string{"sha512"}, // fixture only has sha256
		AcceptBagItVersion: []string{"0.97"},   // fixture declares 1.0
	})
	if err != nil {
		t.Fatal(err)
	}

	r, err := v.Validate(context.Background(), openBag(t, root))
	if err != nil {
		t.Fatal(err)
	}

	for _, code := range []bagv.Code{bagv.CodeBadFieldValue, bagv.CodeMissingManifest, bagv.CodeBagVersion} {
		if len(findingsWithCode(r, code)) != 1 {
			t.Errorf("expected one %s finding", code)
		}
	}
}

func TestProfileBadRegexIsConfigError(t *testing.T) {
	_, err := validate.NewProfile(&profile.Profile{
		BagInfo: map[string]profile.TagSpec{"X": {Regex: "("}},
	})
	if err == nil || !bagv.IsConfig(err) {
		t.Errorf("expected a configuration error, got %v", err)
	}
}

func TestStructure(t *testing.T) {
	root := writeBag(t, map[string]string{
		"data/models/m.bin":  "m",
		"data/scratch/s.tmp": "s",
	}, nil)

	pp := &profile.PayloadProfile{
		Required: []profile.Rule{{Pattern: "models/"}, {Pattern: "sources/"}},
		Allowed:  []profile.Rule{{Pattern: "models/"}, {Pattern: "sources/"}},
	}
	if err := pp.Compile(); err != nil {
		t.Fatal(err)
	}

	r, err := validate.NewStructure(pp).Validate(context.Background(), openBag(t, root))
	if err != nil {
		t.Fatal(err)
	}
	if r.Valid() {
		t.Fatal("bag missing a required directory reported valid")
	}

	missing := findingsWithCode(r, bagv.CodeMissingRequiredDir)
	if len(missing) != 1 || missing[0].Subject != "sources/" {
		t.Errorf("expected one missing-dir finding for sources/, got %+v", missing)
	}

	extras := findingsWithCode(r, bagv.CodeDisallowedEntry)
	if len(extras) != 1 || extras[0].Severity != bagv.Warning || extras[0].Subject != "data/scratch/s.tmp" {
		t.Errorf("expected one Warning disallowed-entry finding for data/scratch/s.tmp, got %+v", extras)
	}
}

func TestStructureNestedAllowedLocation(t *testing.T) {
	root := writeBag(t, map[string]string{
		"data/models/v1/a.txt": "a",
		"data/models/v1/b.txt": "b",
	}, nil)

	pp := &profile.PayloadProfile{
		Allowed: []profile.Rule{{Pattern: "models/v1/"}},
	}
	if err := pp.Compile(); err != nil {
		t.Fatal(err)
	}

	r, err := validate.NewStructure(pp).Validate(context.Background(), openBag(t, root))
	if err != nil {
		t.Fatal(err)
	}
	if !r.Valid() {
		t.Errorf("files under a nested allowed directory reported invalid: %+v", r.Findings())
	}
}

func TestStructureRegexLocation(t *testing.T) {
	root := writeBag(t, map[string]string{
		"data/img_001/page.tif": "t",
		"data/notes/n.txt":      "n",
	}, nil)

	pp := &profile.PayloadProfile{
		Allowed: []profile.Rule{{Pattern: `img_\d+/`, IsRegex: true}},
	}
	if err := pp.Compile(); err != nil {
		t.Fatal(err)
	}

	r, err := validate.NewStructure(pp).Validate(context.Background(), openBag(t, root))
	if err != nil {
		t.Fatal(err)
	}

	extras := findingsWithCode(r, bagv.CodeDisallowedEntry)
	if len(extras) != 1 || extras[0].Subject != "data/notes/n.txt" {
		t.Errorf("expected one disallowed-entry finding for data/notes/n.txt, got %+v", extras)
	}
}

func TestStructureRegexRequired(t *testing.T) {
	pp := &profile.PayloadProfile{
		Required: []profile.Rule{{Pattern: `img_\d+/`, IsRegex: true}},
	}
	if err := pp.Compile(); err != nil {
		t.Fatal(err)
	}
	v := validate.NewStructure(pp)

	met := writeBag(t, map[string]string{"data/img_001/page.tif": "t"}, nil)
	r, err := v.Validate(context.Background(), openBag(t, met))
	if err != nil {
		t.Fatal(err)
	}
	if len(findingsWithCode(r, bagv.CodeMissingRequiredDir)) != 0 {
		t.Errorf("regex requirement met by img_001 but reported missing: %+v", r.Findings())
	}

	unmet := writeBag(t, map[string]string{"data/notes/n.txt": "n"}, nil)
	r, err = v.Validate(context.Background(), openBag(t, unmet))
	if err != nil {
		t.Fatal(err)
	}
	if len(findingsWithCode(r, bagv.CodeMissingRequiredDir)) != 1 {
		t.Errorf("expected one missing-dir finding, got %+v", r.Findings())
	}
}

func TestStructureRequiredNotAllowed(t *testing.T) {
	root := writeBag(t, map[string]string{
		"data/models/m.bin":  "m",
		"data/sources/s.txt": "s",
	}, nil)

	pp := &profile.PayloadProfile{
		Required: []profile.Rule{{Pattern: "models/"}, {Pattern: "sources/"}},
		Allowed:  []profile.Rule{{Pattern: "models/"}},
	}
	if err := pp.Compile(); err != nil {
		t.Fatal(err)
	}

	r, err := validate.NewStructure(pp).Validate(context.Background(), openBag(t, root))
	if err != nil {
		t.Fatal(err)
	}
	if r.Valid() {
		t.Fatal("profile requiring a directory its allowed set rejects reported valid")
	}

	bad := findingsWithCode(r, bagv.CodeRequiredNotAllowed)
	if len(bad) != 1 || bad[0].Subject != "sources/" || bad[0].Severity != bagv.Error {
		t.Errorf("expected one Error finding for sources/, got %+v", bad)
	}
}

func TestStructureCaseCollision(t *testing.T) {
	root := writeBag(t, map[string]string{
		"data/Readme.txt": "a",
		"data/readme.txt": "b",
	}, nil)
	b := openBag(t, root)

	files, err := b.PayloadFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) < 2 {
		t.Skip("filesystem folds case; collision cannot be laid out")
	}

	pp := &profile.PayloadProfile{ForbidCaseCollisions: true}
	r, err := validate.NewStructure(pp).Validate(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}

	if len(findingsWithCode(r, bagv.CodeCapitalization)) != 1 {
		t.Errorf("expected one capitalization finding, got %+v", r.Findings())
	}
}
