package bagv_test

import (
	"testing"

	"github.com/dcmlab/bagv"
	"github.com/go-test/deep"
	"github.com/pkg/errors"
)

func TestSeverityRoundTrip(t *testing.T) {
	for _, sev := range []bagv.Severity{bagv.Info, bagv.Warning, bagv.Error} {
		sev := sev
		t.Run(sev.String(), func(t *testing.T) {
			if rt := bagv.ParseSeverity(sev.String()); rt != sev {
				t.Errorf("roundtrip failed for %s", sev)
			}
		})
	}
}

func TestResultValidity(t *testing.T) {
	cases := []struct {
		name     string
		findings []bagv.Finding
		valid    bool
	}{
		{"empty", nil, true},
		{"info only", []bagv.Finding{{Severity: bagv.Info, Code: bagv.CodeHeuristicOnly}}, true},
		{"warning only", []bagv.Finding{{Severity: bagv.Warning, Code: bagv.CodeDisallowedEntry}}, true},
		{"one error", []bagv.Finding{
			{Severity: bagv.Info, Code: bagv.CodeFormatOK},
			{Severity: bagv.Error, Code: bagv.CodeChecksumMismatch},
		}, false},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			r := &bagv.Result{}
			r.Add(c.findings...)
			if r.Valid() != c.valid {
				t.Errorf("Valid() = %v, expected %v", r.Valid(), c.valid)
			}
		})
	}
}

func TestMergePreservesOrderAndValidity(t *testing.T) {
	a := &bagv.Result{}
	a.Infof(bagv.CodeFormatOK, "data/a.txt", "fine")
	b := &bagv.Result{}
	b.Errf(bagv.CodeMissingFile, "data/b.txt", "gone")
	c := &bagv.Result{}
	c.Warnf(bagv.CodeDisallowedEntry, "data/extra/", "unexpected")

	merged := bagv.Merge(a, b, c)
	if merged.Valid() {
		t.Error("merge of an invalid result must be invalid")
	}

	var subjects []string
	for _, f := range merged.Findings() {
		subjects = append(subjects, f.Subject)
	}
	expected := []string{"data/a.txt", "data/b.txt", "data/extra/"}
	if diffs := deep.Equal(expected, subjects); len(diffs) != 0 {
		t.Errorf("finding order not preserved: %s", diffs)
	}

	// validity is an AND: associative and commutative
	if bagv.Merge(bagv.Merge(a, b), c).Valid() != bagv.Merge(a, bagv.Merge(c, b)).Valid() {
		t.Error("merged validity depends on grouping or order")
	}

	if !bagv.Merge(a, c, nil).Valid() {
		t.Error("merge of valid results must be valid")
	}
}

func TestErrorKinds(t *testing.T) {
	cfg := bagv.Configf("profile %s missing", "p.json")
	ioErr := bagv.IOWrap(errors.New("permission denied"), "data/a.txt")
	pluginErr := bagv.PluginWrap(errors.New("exit 137"), "jhove", "data/a.pdf")

	cases := []struct {
		name string
		err  error
		want func(error) bool
	}{
		{"config", cfg, bagv.IsConfig},
		{"config wrapped", errors.Wrap(cfg, "setting up"), bagv.IsConfig},
		{"io", ioErr, bagv.IsIO},
		{"plugin", pluginErr, bagv.IsPlugin},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			if !c.want(c.err) {
				t.Errorf("kind predicate failed for %s", c.err)
			}
		})
	}

	if bagv.IsConfig(ioErr) || bagv.IsPlugin(cfg) {
		t.Error("error kinds must not overlap")
	}
}

func TestDescriptorSupports(t *testing.T) {
	d := bagv.Descriptor{DefaultFormats: []string{"image/png", "text/plain"}}

	if !d.Supports("image/png") || !d.Supports("Text/Plain") {
		t.Error("expected declared formats to be supported")
	}
	if d.Supports("application/pdf") {
		t.Error("undeclared format reported as supported")
	}
}
