// Package profile models the declarative documents a bag is validated
// against: BagIt profiles for metadata conformance, payload profiles for
// directory structure, and format policies for file-format coverage.
// Profiles are immutable once loaded.
package profile

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// TagSpec constrains one bag-info tag
type TagSpec struct {
	Required   bool     `json:"required" yaml:"required"`
	Repeatable bool     `json:"repeatable" yaml:"repeatable"`
	Values     []string `json:"values,omitempty" yaml:"values,omitempty"`
	Regex      string   `json:"regex,omitempty" yaml:"regex,omitempty"`
}

// Info describes the profile itself (provenance, not rules)
type Info struct {
	Identifier   string `json:"BagIt-Profile-Identifier,omitempty" yaml:"BagIt-Profile-Identifier,omitempty"`
	SourceOrg    string `json:"Source-Organization,omitempty" yaml:"Source-Organization,omitempty"`
	ExternalDesc string `json:"External-Description,omitempty" yaml:"External-Description,omitempty"`
	Version      string `json:"Version,omitempty" yaml:"Version,omitempty"`
}

// Profile is a BagIt profile: required and constrained metadata tags,
// required manifests, and accepted BagIt versions.  PayloadProfileRef may
// point at a payload-structure profile to be folded into profile
// validation.
type Profile struct {
	Info               Info               `json:"BagIt-Profile-Info,omitempty" yaml:"BagIt-Profile-Info,omitempty"`
	BagInfo            map[string]TagSpec `json:"Bag-Info,omitempty" yaml:"Bag-Info,omitempty"`
	ManifestsRequired  []string           `json:"Manifests-Required,omitempty" yaml:"Manifests-Required,omitempty"`
	AcceptBagItVersion []string           `json:"Accept-BagIt-Version,omitempty" yaml:"Accept-BagIt-Version,omitempty"`
	PayloadProfileRef  string             `json:"Payload-Profile,omitempty" yaml:"Payload-Profile,omitempty"`
}

// Rule matches payload locations either literally or by regular
// expression.  Patterns name directories relative to the payload root and
// carry a trailing solidus; a rule covers the named location and
// everything below it.
type Rule struct {
	Pattern string
	IsRegex bool

	re *regexp.Regexp
}

// Compile prepares a regex rule for matching.  Literal rules compile
// trivially.
func (r *Rule) Compile() error {
	if !r.IsRegex {
		return nil
	}
	re, err := regexp.Compile("^(?:" + r.Pattern + ")")
	if err != nil {
		return errors.Wrapf(err, "bad payload rule pattern %q", r.Pattern)
	}
	r.re = re
	return nil
}

// Match reports whether the payload-root-relative file path lies under a
// location the rule names.  Literal rules match by path prefix, regex
// rules by anchored prefix.
func (r *Rule) Match(path string) bool {
	if r.IsRegex {
		if r.re == nil {
			return false
		}
		return r.re.MatchString(path)
	}
	return strings.HasPrefix(path, r.Pattern)
}

// PayloadProfile describes required and allowed payload directory
// structure.  An empty Allowed list permits everything.
type PayloadProfile struct {
	Required             []Rule
	Allowed              []Rule
	ForbidCaseCollisions bool
}

// Compile prepares all rules for matching
func (p *PayloadProfile) Compile() error {
	for i := range p.Required {
		if err := p.Required[i].Compile(); err != nil {
			return err
		}
	}
	for i := range p.Allowed {
		if err := p.Allowed[i].Compile(); err != nil {
			return err
		}
	}
	return nil
}

// Allows reports whether a payload file at the payload-root-relative
// path lies in an allowed location.  An empty Allowed list permits
// everything.
func (p *PayloadProfile) Allows(path string) bool {
	if len(p.Allowed) == 0 {
		return true
	}
	for i := range p.Allowed {
		if p.Allowed[i].Match(path) {
			return true
		}
	}
	return false
}

// FormatPolicy selects which payload files require format conformance.
// An empty Include list selects every payload file.
type FormatPolicy struct {
	Include []string `json:"include,omitempty" yaml:"include,omitempty"` // path glob patterns, payload relative
}

// Selects reports whether the payload-relative path is in scope
func (p FormatPolicy) Selects(path string) bool {
	if len(p.Include) == 0 {
		return true
	}
	for _, pattern := range p.Include {
		if ok, err := matchGlob(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}
