package jhove

import (
	"testing"

	"github.com/dcmlab/bagv"
)

const wellFormedXML = `<?xml version="1.0"?>
<jhove xmlns="http://schema.openpreservation.org/ois/xml/ns/jhove" release="1.28">
 <repInfo uri="/bags/b1/data/report.xml">
  <format>XML</format>
  <version>1.0</version>
  <status>Well-Formed and valid</status>
 </repInfo>
</jhove>`

const malformedPDF = `<?xml version="1.0"?>
<jhove xmlns="http://schema.openpreservation.org/ois/xml/ns/jhove" release="1.28">
 <repInfo uri="/bags/b1/data/broken.pdf">
  <format>PDF</format>
  <status>Not well-formed</status>
  <messages>
   <message severity="error">Invalid cross-reference table</message>
   <message severity="warning">Outlines contain recursion</message>
  </messages>
 </repInfo>
</jhove>`

func TestParseReportWellFormed(t *testing.T) {
	rep, err := parseReport([]byte(wellFormedXML))
	if err != nil {
		t.Fatalf("could not parse jhove output: %s", err)
	}

	r := rep.result("data/report.xml")
	if !r.Valid() {
		t.Errorf("well-formed report should validate: %+v", r.Findings())
	}
}

func TestParseReportMalformed(t *testing.T) {
	rep, err := parseReport([]byte(malformedPDF))
	if err != nil {
		t.Fatal(err)
	}

	r := rep.result("data/broken.pdf")
	if r.Valid() {
		t.Error("a not-well-formed status must invalidate")
	}

	var sawError, sawWarning bool
	for _, f := range r.Findings() {
		if f.Code != bagv.CodeMalformedFile && f.Code != bagv.CodeFormatOK {
			t.Errorf("unexpected code %s", f.Code)
		}
		switch f.Severity {
		case bagv.Error:
			sawError = true
		case bagv.Warning:
			sawWarning = true
		}
	}
	if !sawError || !sawWarning {
		t.Error("expected jhove's error and warning messages to map to findings")
	}
}

func TestParseReportGarbage(t *testing.T) {
	if _, err := parseReport([]byte("no xml here")); err == nil {
		t.Error("expected an error for unparseable output")
	}
	if _, err := parseReport([]byte("<jhove></jhove>")); err == nil {
		t.Error("expected an error for output without repInfo")
	}
}

func TestModuleFor(t *testing.T) {
	cases := []struct {
		format string
		module string
		ok     bool
	}{
		{"application/pdf", "PDF-hul", true},
		{"image/PNG", "PNG-gdm", true},
		{"text/plain", "", true}, // empty module lets jhove pick
		{"video/x-matroska", "", false},
	}

	for _, c := range cases {
		c := c
		t.Run(c.format, func(t *testing.T) {
			module, ok := moduleFor(c.format)
			if ok != c.ok || module != c.module {
				t.Errorf("moduleFor(%s) = %q, %v; expected %q, %v",
					c.format, module, ok, c.module, c.ok)
			}
		})
	}
}

func TestNewMissingExecutable(t *testing.T) {
	_, err := New(Config{Command: "definitely-not-a-jhove-binary-on-path"})
	if err == nil || !bagv.IsConfig(err) {
		t.Errorf("a missing executable must be a configuration error, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	// Describe is static and must work without a resolvable executable
	p := &Plugin{}
	d := p.Describe()
	if !d.Supports("application/pdf") {
		t.Error("application/pdf should be a default format")
	}
	if d.Supports("video/x-matroska") {
		t.Error("matroska has no jhove module and must not be claimed")
	}
}
