package validate

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/dcmlab/bagv"
	"github.com/dcmlab/bagv/bag"
	"github.com/dcmlab/bagv/profile"
	"github.com/pkg/errors"
)

// StructureValidator checks the payload directory tree against a
// payload-structure profile: required directories present on disk, every
// payload file located under an allowed directory, and no file names
// colliding by case alone.
//
// A missing required directory is an Error; a file in a disallowed
// location is a Warning unless promoted via StrictExtras.
type StructureValidator struct {
	profile *profile.PayloadProfile

	// StrictExtras reports disallowed locations at Error severity
	StrictExtras bool
}

// NewStructure prepares a structure validator for a compiled profile
func NewStructure(p *profile.PayloadProfile) *StructureValidator {
	return &StructureValidator{profile: p}
}

func (v *StructureValidator) Name() string { return "structure" }

// Validate evaluates the payload tree against the profile
func (v *StructureValidator) Validate(ctx context.Context, b *bag.Bag) (*bagv.Result, error) {
	r := &bagv.Result{}

	files, err := b.PayloadFiles()
	if err != nil {
		return nil, errors.Wrap(err, "could not enumerate payload")
	}

	// rules speak in paths relative to the payload root
	rel := make([]string, len(files))
	for i, f := range files {
		rel[i] = strings.TrimPrefix(f, bag.PayloadDirName+"/")
	}

	v.checkRuleConsistency(r)
	v.checkRequired(b, rel, r)
	v.checkLocations(files, rel, r)

	if v.profile.ForbidCaseCollisions {
		v.checkCapitalization(files, r)
	}

	return r, nil
}

// checkRuleConsistency flags required directories the profile's own
// allowed set would reject.  Such a profile can never be satisfied.
func (v *StructureValidator) checkRuleConsistency(r *bagv.Result) {
	if len(v.profile.Allowed) == 0 {
		return
	}
	for i := range v.profile.Required {
		rule := &v.profile.Required[i]
		if !v.allowedByRule(rule.Pattern) {
			r.Errf(bagv.CodeRequiredNotAllowed, rule.Pattern,
				"required payload directory %s is not listed among the allowed directories",
				rule.Pattern)
		}
	}
}

// allowedByRule checks a required rule's pattern against the allowed set.
// Unlike file-path matching, a literal allowed rule must name the same
// directory; regex rules are matched against the pattern text.
func (v *StructureValidator) allowedByRule(pattern string) bool {
	for i := range v.profile.Allowed {
		a := &v.profile.Allowed[i]
		if a.IsRegex {
			if a.Match(pattern) {
				return true
			}
			continue
		}
		if strings.TrimSuffix(a.Pattern, "/") == strings.TrimSuffix(pattern, "/") {
			return true
		}
	}
	return false
}

func (v *StructureValidator) checkRequired(b *bag.Bag, rel []string, r *bagv.Result) {
	for i := range v.profile.Required {
		rule := &v.profile.Required[i]

		if rule.IsRegex {
			// a regex requirement is met by any file under a matching location
			found := false
			for _, p := range rel {
				if rule.Match(p) {
					found = true
					break
				}
			}
			if !found {
				r.Errf(bagv.CodeMissingRequiredDir, rule.Pattern,
					"no payload file lies under a directory matching required pattern %s",
					rule.Pattern)
			}
			continue
		}

		dir := filepath.Join(b.PayloadDir(), filepath.FromSlash(strings.TrimSuffix(rule.Pattern, "/")))
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			r.Errf(bagv.CodeMissingRequiredDir, rule.Pattern,
				"required payload directory %s is not present", rule.Pattern)
		}
	}
}

// checkLocations verifies every payload file sits under an allowed
// directory.  files carries the report subjects, rel the payload-root
// relative paths the rules match on.
func (v *StructureValidator) checkLocations(files, rel []string, r *bagv.Result) {
	for i, p := range rel {
		if v.profile.Allows(p) {
			continue
		}
		if v.StrictExtras {
			r.Errf(bagv.CodeDisallowedEntry, files[i],
				"file %s found in illegal location of payload directory", files[i])
		} else {
			r.Warnf(bagv.CodeDisallowedEntry, files[i],
				"file %s found in illegal location of payload directory", files[i])
		}
	}
}

// checkCapitalization flags payload paths that collide when compared
// case-insensitively.  Such bags cannot be restored faithfully on
// case-insensitive filesystems.
func (v *StructureValidator) checkCapitalization(files []string, r *bagv.Result) {
	seen := map[string]string{}
	for _, f := range files {
		lower := strings.ToLower(f)
		if prior, ok := seen[lower]; ok {
			r.Errf(bagv.CodeCapitalization, f,
				"payload file %s collides with %s on case-insensitive filesystems", f, prior)
			continue
		}
		seen[lower] = f
	}
}
