package bag

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// parseTagFile reads a BagIt tag file (bagit.txt, bag-info.txt) into an
// ordered multi-map.  Lines beginning with whitespace continue the previous
// tag's value, per RFC 8493 section 2.2.2.
func parseTagFile(path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open tag file")
	}
	defer f.Close()

	return parseTags(f)
}

func parseTags(r io.Reader) (map[string][]string, error) {
	tags := map[string][]string{}
	var lastTag string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		// continuation of the previous value
		if line[0] == ' ' || line[0] == '\t' {
			if lastTag == "" {
				return nil, errors.Errorf("continuation line with no preceding tag: %q", line)
			}
			vals := tags[lastTag]
			vals[len(vals)-1] += " " + strings.TrimSpace(line)
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, errors.Errorf("malformed tag line: %q", line)
		}
		key = strings.TrimSpace(key)
		tags[key] = append(tags[key], strings.TrimSpace(value))
		lastTag = key
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading tag file")
	}

	return tags, nil
}

// parseManifest reads a BagIt manifest file: one "<digest> <path>" entry
// per line, path solidus delimited relative to the bag root.
func parseManifest(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open manifest")
	}
	defer f.Close()

	m := Manifest{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, errors.Errorf("malformed manifest line: %q", line)
		}
		digest := strings.ToLower(fields[0])
		entry := strings.Join(fields[1:], " ") // file names may contain spaces
		m[entry] = digest
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading manifest")
	}

	return m, nil
}
