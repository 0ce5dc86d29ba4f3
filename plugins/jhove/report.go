package jhove

import (
	"encoding/xml"
	"strings"

	"github.com/dcmlab/bagv"
	"github.com/pkg/errors"
)

// report mirrors the parts of jhove's XML output schema this plugin
// consumes: the representation info status plus any messages.
type report struct {
	XMLName xml.Name  `xml:"jhove"`
	RepInfo []repInfo `xml:"repInfo"`
}

type repInfo struct {
	URI      string    `xml:"uri,attr"`
	Status   string    `xml:"status"`
	Format   string    `xml:"format"`
	Version  string    `xml:"version"`
	Messages []message `xml:"messages>message"`
}

type message struct {
	Severity string `xml:"severity,attr"`
	Text     string `xml:",chardata"`
}

// Status values jhove reports for well-formed content
const (
	statusWellFormedValid = "Well-Formed and valid"
	statusWellFormed      = "Well-Formed"
)

func parseReport(raw []byte) (*report, error) {
	var rep report
	if err := xml.Unmarshal(raw, &rep); err != nil {
		return nil, errors.Wrap(err, "could not parse jhove XML output")
	}
	if len(rep.RepInfo) == 0 {
		return nil, errors.New("jhove output carries no repInfo")
	}
	return &rep, nil
}

// result converts the report into findings for the given file
func (rep *report) result(path string) *bagv.Result {
	r := &bagv.Result{}

	for _, ri := range rep.RepInfo {
		for _, m := range ri.Messages {
			text := strings.TrimSpace(m.Text)
			switch strings.ToLower(m.Severity) {
			case "error":
				r.Errf(bagv.CodeMalformedFile, path, "%s", text)
			case "warning":
				r.Warnf(bagv.CodeMalformedFile, path, "%s", text)
			default:
				r.Infof(bagv.CodeFormatOK, path, "%s", text)
			}
		}

		switch ri.Status {
		case statusWellFormedValid, statusWellFormed:
			r.Infof(bagv.CodeFormatOK, path, "%s reported as %q by jhove", ri.Format, ri.Status)
		default:
			r.Errf(bagv.CodeMalformedFile, path,
				"jhove reports status %q for format %s", ri.Status, ri.Format)
		}
	}

	return r
}
