package validate_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dcmlab/bagv"
	"github.com/dcmlab/bagv/profile"
	"github.com/dcmlab/bagv/plugins/extension"
	"github.com/dcmlab/bagv/validate"
	"github.com/go-test/deep"
)

func TestCompositeRunsInOrder(t *testing.T) {
	root := writeBag(t, map[string]string{"data/a.txt": "hello"}, nil)

	pv, err := validate.NewProfile(&profile.Profile{
		BagInfo: map[string]profile.TagSpec{"Source-Organization": {Required: true}},
	})
	if err != nil {
		t.Fatal(err)
	}
	fv, err := validate.NewFormat(extension.New(), profile.FormatPolicy{}, validate.FormatConfig{})
	if err != nil {
		t.Fatal(err)
	}

	report, err := validate.NewComposite().
		Add(pv).
		Add(validate.NewIntegrity()).
		Add(fv).
		Run(context.Background(), root)
	if err != nil {
		t.Fatalf("validation could not complete: %s", err)
	}

	if !report.Valid() {
		t.Errorf("conforming bag reported invalid: %+v", report.Aggregate.Findings())
	}

	if diffs := deep.Equal([]string{"profile", "integrity", "format"}, report.Order); len(diffs) != 0 {
		t.Errorf("validators did not run in configured order: %s", diffs)
	}

	// unconfigured kinds are simply absent, never failures
	if _, ok := report.ByKind["structure"]; ok {
		t.Error("structure was never configured and must be absent")
	}
}

func TestCompositeAggregatesInvalidity(t *testing.T) {
	root := writeBag(t, map[string]string{"data/a.txt": "hello"}, nil)

	pv, err := validate.NewProfile(&profile.Profile{
		BagInfo: map[string]profile.TagSpec{"Contact-Name": {Required: true}},
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := validate.NewComposite().
		Add(pv).
		Add(validate.NewIntegrity()).
		Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	if report.Valid() {
		t.Error("aggregate must be invalid when any kind is")
	}
	if report.ByKind["profile"].Valid() {
		t.Error("profile kind should be invalid")
	}
	if !report.ByKind["integrity"].Valid() {
		t.Error("integrity kind should be valid")
	}
}

func TestCompositeUnopenableBag(t *testing.T) {
	_, err := validate.NewComposite().
		Add(validate.NewIntegrity()).
		Run(context.Background(), t.TempDir()+"/nonexistent")
	if err == nil || !bagv.IsIO(err) {
		t.Errorf("expected an IO error kind, got %v", err)
	}
}

func TestReportJSON(t *testing.T) {
	root := writeBag(t, map[string]string{"data/a.txt": "hello"}, nil)

	report, err := validate.NewComposite().
		Add(validate.NewIntegrity()).
		Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Valid    bool                     `json:"valid"`
		Findings []map[string]interface{} `json:"findings"`
		ByKind   map[string]struct {
			Valid bool `json:"valid"`
		} `json:"by_kind"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("report does not round-trip as JSON: %s", err)
	}
	if !decoded.Valid || !decoded.ByKind["integrity"].Valid {
		t.Errorf("unexpected serialized report: %s", raw)
	}
}
