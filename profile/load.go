package profile

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"

	getter "github.com/hashicorp/go-getter"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/dcmlab/bagv"
)

// payloadProfileDoc is the serialized form of a PayloadProfile, using the
// established profile vocabulary.  Allowed entries may be plain strings or
// {"regex": "..."} objects.
type payloadProfileDoc struct {
	Required        []ruleDoc `json:"Payload-Folders-Required,omitempty" yaml:"Payload-Folders-Required,omitempty"`
	Allowed         []ruleDoc `json:"Payload-Folders-Allowed,omitempty" yaml:"Payload-Folders-Allowed,omitempty"`
	AllowCollisions bool      `json:"Allow-Case-Collisions,omitempty" yaml:"Allow-Case-Collisions,omitempty"`
}

type ruleDoc struct {
	Rule
}

func (r *ruleDoc) set(literal string, regex string) {
	if regex != "" {
		r.Pattern, r.IsRegex = ensureSlash(regex), true
		return
	}
	r.Pattern = ensureSlash(literal)
}

// directory rules always name directories; normalize to a trailing solidus
func ensureSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func (r *ruleDoc) UnmarshalJSON(b []byte) error {
	var literal string
	if err := json.Unmarshal(b, &literal); err == nil {
		r.set(literal, "")
		return nil
	}
	var obj struct {
		Regex string `json:"regex"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return errors.Wrap(err, "payload rule must be a string or {regex}")
	}
	r.set("", obj.Regex)
	return nil
}

func (r *ruleDoc) UnmarshalYAML(node *yaml.Node) error {
	var literal string
	if err := node.Decode(&literal); err == nil {
		r.set(literal, "")
		return nil
	}
	var obj struct {
		Regex string `yaml:"regex"`
	}
	if err := node.Decode(&obj); err != nil {
		return errors.Wrap(err, "payload rule must be a string or {regex}")
	}
	r.set("", obj.Regex)
	return nil
}

// Load fetches and decodes a BagIt profile from a local path or any
// go-getter-supported source (http, file, ...).  Problems loading a
// profile are configuration errors: there is nothing to validate against.
func Load(src string) (*Profile, error) {
	p := &Profile{}
	if err := load(src, p); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadPayload fetches and decodes a payload-structure profile.
// Case-collision checking defaults to on; the document may opt out with
// Allow-Case-Collisions.
func LoadPayload(src string) (*PayloadProfile, error) {
	var doc payloadProfileDoc
	if err := load(src, &doc); err != nil {
		return nil, err
	}

	p := &PayloadProfile{ForbidCaseCollisions: !doc.AllowCollisions}
	for _, r := range doc.Required {
		p.Required = append(p.Required, r.Rule)
	}
	for _, r := range doc.Allowed {
		p.Allowed = append(p.Allowed, r.Rule)
	}

	if err := p.Compile(); err != nil {
		return nil, bagv.ConfigWrap(err, "payload profile %s", src)
	}
	return p, nil
}

// LoadFormatPolicy fetches and decodes a format-coverage policy
func LoadFormatPolicy(src string) (*FormatPolicy, error) {
	p := &FormatPolicy{}
	if err := load(src, p); err != nil {
		return nil, err
	}
	return p, nil
}

func load(src string, v interface{}) error {
	raw, name, err := fetch(src)
	if err != nil {
		return bagv.ConfigWrap(err, "could not load profile %s", src)
	}
	if err := decode(raw, name, v); err != nil {
		return bagv.ConfigWrap(err, "could not parse profile %s", src)
	}
	return nil
}

// fetch reads the profile document.  A plain existing file path is read
// directly; anything else goes through go-getter, which understands
// file, http(s), git, and s3 sources.
func fetch(src string) (raw []byte, name string, err error) {
	if _, serr := os.Stat(src); serr == nil {
		raw, err = os.ReadFile(src)
		return raw, src, errors.Wrap(err, "could not read profile file")
	}

	tmp, err := os.MkdirTemp("", "bagv-profile-")
	if err != nil {
		return nil, "", errors.Wrap(err, "could not create temp dir for profile fetch")
	}
	defer os.RemoveAll(tmp)

	dst := filepath.Join(tmp, "profile"+path.Ext(src))
	if err := getter.GetFile(dst, src); err != nil {
		return nil, "", errors.Wrapf(err, "could not fetch profile from %s", src)
	}

	raw, err = os.ReadFile(dst)
	return raw, src, errors.Wrap(err, "could not read fetched profile")
}

// decode interprets the document as YAML or JSON depending on the source's
// extension, trying JSON when the extension is not telling.
func decode(raw []byte, name string, v interface{}) error {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(raw, v)
	case ".json":
		return json.Unmarshal(raw, v)
	}

	if err := json.Unmarshal(raw, v); err == nil {
		return nil
	}
	return yaml.Unmarshal(raw, v)
}

// matchGlob matches a payload-relative path against a glob pattern,
// either in full or by base name.
func matchGlob(pattern, p string) (bool, error) {
	if ok, err := path.Match(pattern, p); err != nil || ok {
		return ok, err
	}
	return path.Match(pattern, path.Base(p))
}
