package validate

import (
	"context"
	"encoding/json"

	"github.com/dcmlab/bagv"
	"github.com/dcmlab/bagv/bag"
	"github.com/pkg/errors"
)

// Validator is the common contract satisfied by every bag validator kind.
//
// Expected nonconformance of the bag is reported through findings on the
// returned Result, never through the error.  A non-nil error means the
// check could not be attempted at all (see the error kinds in the root
// package).
type Validator interface {
	Name() string
	Validate(ctx context.Context, b *bag.Bag) (*bagv.Result, error)
}

// Report is the aggregate outcome of a composite run: one merged result
// plus the per-kind breakdown, in run order, for traceability.
type Report struct {
	Aggregate *bagv.Result
	ByKind    map[string]*bagv.Result
	Order     []string
}

// Valid is true iff every executed validator found the bag valid
func (r *Report) Valid() bool {
	return r.Aggregate.Valid()
}

// MarshalJSON serializes the report as {valid, findings, by_kind}
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Valid    bool                    `json:"valid"`
		Findings []bagv.Finding          `json:"findings"`
		ByKind   map[string]*bagv.Result `json:"by_kind"`
	}{r.Valid(), r.Aggregate.Findings(), r.ByKind})
}

// Composite is the single entry point for validating a bag: it runs its
// configured validators in the order they were added and merges their
// results.  A validator kind that was never added is simply absent from
// the report.
type Composite struct {
	steps []step
}

type step struct {
	name      string
	validator Validator
}

// NewComposite creates an empty composite; add validators with Add
func NewComposite() *Composite {
	return &Composite{}
}

// Add appends a validator to the run order under its own name
func (c *Composite) Add(v Validator) *Composite {
	c.steps = append(c.steps, step{name: v.Name(), validator: v})
	return c
}

// Run opens the bag at path once and validates it with every configured
// validator.  A nil error with an invalid report means the bag failed
// its checks; a non-nil error means validation could not be completed
// and no report is produced.
func (c *Composite) Run(ctx context.Context, path string) (*Report, error) {
	b, err := bag.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open bag at %s", path)
	}
	return c.RunBag(ctx, b)
}

// RunBag validates an already opened bag
func (c *Composite) RunBag(ctx context.Context, b *bag.Bag) (*Report, error) {
	report := &Report{ByKind: map[string]*bagv.Result{}}

	var results []*bagv.Result
	for _, s := range c.steps {
		r, err := s.validator.Validate(ctx, b)
		if err != nil {
			return nil, errors.Wrapf(err, "validator %s could not complete", s.name)
		}
		report.ByKind[s.name] = r
		report.Order = append(report.Order, s.name)
		results = append(results, r)
	}

	report.Aggregate = bagv.Merge(results...)
	return report, nil
}
