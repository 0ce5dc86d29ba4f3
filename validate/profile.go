// Package validate implements the bag validator kinds and the composite
// entry point that runs them.  Each validator checks one concern and
// reports nonconformance through findings; an error return is reserved
// for conditions under which the check could not be attempted at all.
package validate

import (
	"context"
	"regexp"

	"github.com/dcmlab/bagv"
	"github.com/dcmlab/bagv/bag"
	"github.com/dcmlab/bagv/profile"
)

// ProfileValidator checks a bag's metadata against a BagIt profile:
// required tags, allowed values, required manifests, accepted versions.
// When the profile references a payload-structure profile, those findings
// are folded into this validator's result.
type ProfileValidator struct {
	profile   *profile.Profile
	regexes   map[string]*regexp.Regexp
	structure *StructureValidator
}

// NewProfile prepares a profile validator.  Constraint regexes are
// compiled up front; a bad pattern is a configuration error.  A
// Payload-Profile reference, if present, is resolved now for the same
// reason.
func NewProfile(p *profile.Profile) (*ProfileValidator, error) {
	v := &ProfileValidator{
		profile: p,
		regexes: map[string]*regexp.Regexp{},
	}

	for tag, spec := range p.BagInfo {
		if spec.Regex == "" {
			continue
		}
		re, err := regexp.Compile("^(?:" + spec.Regex + ")$")
		if err != nil {
			return nil, bagv.ConfigWrap(err, "bad value pattern for tag %s", tag)
		}
		v.regexes[tag] = re
	}

	if p.PayloadProfileRef != "" {
		pp, err := profile.LoadPayload(p.PayloadProfileRef)
		if err != nil {
			return nil, err
		}
		v.structure = NewStructure(pp)
	}

	return v, nil
}

func (v *ProfileValidator) Name() string { return "profile" }

// Validate evaluates the bag's tags and manifests against the profile
func (v *ProfileValidator) Validate(ctx context.Context, b *bag.Bag) (*bagv.Result, error) {
	r := &bagv.Result{}

	v.checkVersion(b, r)
	v.checkManifests(b, r)
	v.checkTags(b, r)

	if v.structure != nil {
		sub, err := v.structure.Validate(ctx, b)
		if err != nil {
			return nil, err
		}
		r = bagv.Merge(r, sub)
	}

	return r, nil
}

func (v *ProfileValidator) checkVersion(b *bag.Bag, r *bagv.Result) {
	accepted := v.profile.AcceptBagItVersion
	if len(accepted) == 0 {
		return
	}
	for _, version := range accepted {
		if b.Version == version {
			return
		}
	}
	r.Errf(bagv.CodeBagVersion, "BagIt-Version",
		"bag declares version %q, profile accepts %v", b.Version, accepted)
}

func (v *ProfileValidator) checkManifests(b *bag.Bag, r *bagv.Result) {
	for _, alg := range v.profile.ManifestsRequired {
		if _, ok := b.Manifests[bag.Alg(alg)]; !ok {
			r.Errf(bagv.CodeMissingManifest, "manifest-"+alg+".txt",
				"profile requires a %s payload manifest", alg)
		}
	}
}

func (v *ProfileValidator) checkTags(b *bag.Bag, r *bagv.Result) {
	for tag, spec := range v.profile.BagInfo {
		vals := b.Tags[tag]

		if len(vals) == 0 {
			if spec.Required {
				r.Errf(bagv.CodeMissingRequiredField, tag,
					"required metadata field %s is missing", tag)
			}
			continue
		}

		if len(vals) > 1 && !spec.Repeatable {
			r.Errf(bagv.CodeRepeatedField, tag,
				"field %s appears %d times but is not repeatable", tag, len(vals))
		}

		for _, val := range vals {
			if len(spec.Values) > 0 && !contains(spec.Values, val) {
				r.Errf(bagv.CodeBadFieldValue, tag,
					"value %q for %s is not among the allowed values %v", val, tag, spec.Values)
			}
			if re, ok := v.regexes[tag]; ok && !re.MatchString(val) {
				r.Errf(bagv.CodeBadFieldValue, tag,
					"value %q for %s does not match required pattern %q", val, tag, spec.Regex)
			}
		}
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
