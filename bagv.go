package bagv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Severity ranks a Finding, ordered by increasing gravity
type Severity int

// Finding severities.  Only Error affects a Result's validity.
const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	}
	return fmt.Sprintf("SEVERITY(%d)", int(s))
}

// ParseSeverity maps a severity name to a Severity, defaulting to Info
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(s) {
	case "ERROR":
		return Error
	case "WARNING":
		return Warning
	}
	return Info
}

// MarshalJSON serializes a severity by name
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a severity from its name
func (s *Severity) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	*s = ParseSeverity(name)
	return nil
}

// Code is a stable, machine-checkable category for a Finding
type Code string

// Finding codes used by the bundled validators and plugins.
const (
	CodeMissingRequiredField Code = "missing-required-field"
	CodeBadFieldValue        Code = "bad-field-value"
	CodeRepeatedField        Code = "repeated-field"
	CodeBagVersion           Code = "bag-version"
	CodeMissingManifest      Code = "missing-manifest"

	CodeMissingRequiredDir Code = "missing-required-dir"
	CodeDisallowedEntry    Code = "disallowed-entry"
	CodeRequiredNotAllowed Code = "required-not-allowed"
	CodeCapitalization     Code = "capitalization"

	CodeChecksumMismatch Code = "checksum-mismatch"
	CodeMissingFile      Code = "missing-file"
	CodeOrphanFile       Code = "orphan-file"
	CodeOxumMismatch     Code = "oxum-mismatch"
	CodeUnreadableFile   Code = "unreadable-file"

	CodeUnknownFormat     Code = "unknown-format"
	CodeUnsupportedFormat Code = "unsupported-format"
	CodeFormatNotChecked  Code = "format-not-checked"
	CodeHeuristicOnly     Code = "heuristic-only"
	CodeMalformedFile     Code = "malformed-file"
	CodePluginFailure     Code = "plugin-failure"
	CodeFormatOK          Code = "format-ok"
)

// Finding is one discrete issue or confirmation reported by a validator.
// Subject names what the finding concerns: a payload-relative file path,
// a bag-info tag, or a profile rule.  Findings are immutable once created.
type Finding struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	Subject  string   `json:"subject,omitempty"`
}

// Result accumulates the findings of one validator invocation.
// The zero value is a valid, empty result ready for use.
type Result struct {
	findings []Finding
}

// Add appends findings in order
func (r *Result) Add(f ...Finding) {
	r.findings = append(r.findings, f...)
}

// Errf records an Error finding against subject
func (r *Result) Errf(code Code, subject, format string, args ...interface{}) {
	r.Add(Finding{Severity: Error, Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// Warnf records a Warning finding against subject
func (r *Result) Warnf(code Code, subject, format string, args ...interface{}) {
	r.Add(Finding{Severity: Warning, Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// Infof records an Info finding against subject
func (r *Result) Infof(code Code, subject, format string, args ...interface{}) {
	r.Add(Finding{Severity: Info, Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// Findings returns the accumulated findings in report order
func (r *Result) Findings() []Finding {
	out := make([]Finding, len(r.findings))
	copy(out, r.findings)
	return out
}

// Valid is true iff no Error-severity finding is present.  Warnings and
// Info findings never invalidate a result.
func (r *Result) Valid() bool {
	for _, f := range r.findings {
		if f.Severity == Error {
			return false
		}
	}
	return true
}

// Merge concatenates the findings of each result, preserving per-result
// order.  The merged result is valid iff every constituent is valid.
func Merge(results ...*Result) *Result {
	merged := &Result{}
	for _, r := range results {
		if r == nil {
			continue
		}
		merged.findings = append(merged.findings, r.findings...)
	}
	return merged
}

// MarshalJSON serializes a result as {valid, findings}
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Valid    bool      `json:"valid"`
		Findings []Finding `json:"findings"`
	}{r.Valid(), r.Findings()})
}

// FormatUnknown marks a file whose format could not be identified
const FormatUnknown = ""

// Certainty grades how trustworthy an identification is
type Certainty int

// Identification certainties, ordered by increasing trust
const (
	Unknown Certainty = iota
	Heuristic
	Certain
)

func (c Certainty) String() string {
	switch c {
	case Heuristic:
		return "heuristic"
	case Certain:
		return "certain"
	}
	return "unknown"
}

// Identification is the per-file outcome of format identification
type Identification struct {
	Path      string
	Format    string // MIME type, or FormatUnknown
	Certainty Certainty
}

// Known reports whether a format was identified at all
func (id Identification) Known() bool {
	return id.Format != FormatUnknown
}

// Descriptor is a plugin's static self-description, read at configuration
// time for documentation and routing decisions.
type Descriptor struct {
	Name           string
	Summary        string
	Description    string
	DefaultFormats []string
}

// Supports reports whether format is among the plugin's default formats
func (d Descriptor) Supports(format string) bool {
	for _, f := range d.DefaultFormats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// Plugin is the capability contract for format identification/validation
// backends.  Access to format checking is provided by one or more Plugin
// implementations; see plugins/ for the bundled ones.
//
// Identify must be deterministic and side-effect free, must not touch the
// network, and must return an Identification with FormatUnknown rather
// than failing for unrecognizable content.  An error is reserved for an
// unreadable file.
//
// ValidateFormat checks structural conformance of one file to the given
// format.  For formats the plugin does not support it reports an Info
// finding with CodeUnsupportedFormat rather than silently passing.
// Plugins must be safe for concurrent use across files.
type Plugin interface {
	Identify(path string) (Identification, error)
	ValidateFormat(ctx context.Context, path string, format string) (*Result, error)
	Describe() Descriptor
}
