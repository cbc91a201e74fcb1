// Package classify is component B, the Schema Classifier (SPEC_FULL.md §5,
// spec.md §4.B). It partitions a table's columns into the disjoint subsets the
// rest of the pipeline builds on: pk, mrv, payload, order, regular, and the
// derived not_mrv = complement of (mrv ∪ payload ∪ order).
package classify

import (
	"github.com/k0kubun/pp/v3"
	"github.com/pkg/errors"

	"github.com/mrvx-tools/mrvxdef/catalog"
	"github.com/mrvx-tools/mrvxdef/mrverrors"
	"github.com/mrvx-tools/mrvxdef/util"
)

// Classification is the `data` bundle spec.md §3 describes.
type Classification struct {
	PK      []catalog.Column
	MRV     []catalog.Column
	Payload []catalog.Column
	Order   []catalog.Column
	Regular []catalog.Column
}

// NotMRV is pk ∪ regular: every column not touched by the MRV transform,
// the set T_orig's columns are drawn from.
func (c *Classification) NotMRV() []catalog.Column {
	out := make([]catalog.Column, 0, len(c.PK)+len(c.Regular))
	out = append(out, c.PK...)
	out = append(out, c.Regular...)
	return out
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// Classify partitions allColumns per the model's declared mrv/payload/order
// names and the catalog's primary-key set (spec.md §4.B). A payload, order or
// mrv column that is also a primary-key column fails with
// AmbiguousColumnClassification, so pk and order never overlap.
func Classify(allColumns []catalog.Column, pkNames map[string]bool, mrvNames, payloadNames, orderNames []string) (*Classification, error) {
	mrvSet := toSet(mrvNames)
	payloadSet := toSet(payloadNames)
	orderSet := toSet(orderNames)

	// Deterministic key order (rather than Go's randomised map iteration) keeps
	// the first-reported conflict stable across runs for the same model.
	for name := range util.CanonicalMapIter(payloadSet) {
		if pkNames[name] {
			return nil, errors.Wrapf(mrverrors.AmbiguousColumnClassification, "payload column %q is also a primary-key column", name)
		}
	}
	for name := range util.CanonicalMapIter(orderSet) {
		if pkNames[name] {
			return nil, errors.Wrapf(mrverrors.AmbiguousColumnClassification, "order column %q is also a primary-key column", name)
		}
	}
	for name := range util.CanonicalMapIter(mrvSet) {
		if pkNames[name] {
			return nil, errors.Wrapf(mrverrors.AmbiguousColumnClassification, "mrv column %q is also a primary-key column", name)
		}
		if payloadSet[name] || orderSet[name] {
			return nil, errors.Wrapf(mrverrors.AmbiguousColumnClassification, "column %q is named in both mrv and payload/order", name)
		}
	}
	for name := range util.CanonicalMapIter(payloadSet) {
		if orderSet[name] {
			return nil, errors.Wrapf(mrverrors.AmbiguousColumnClassification, "column %q is named in both payload and order", name)
		}
	}

	c := &Classification{}
	for _, col := range allColumns {
		switch {
		case orderSet[col.Name]:
			c.Order = append(c.Order, col)
		case pkNames[col.Name]:
			c.PK = append(c.PK, col)
		case mrvSet[col.Name]:
			c.MRV = append(c.MRV, col)
		case payloadSet[col.Name]:
			c.Payload = append(c.Payload, col)
		default:
			c.Regular = append(c.Regular, col)
		}
	}

	if len(c.MRV) != len(mrvSet) {
		return nil, errors.Wrapf(mrverrors.NoSuchColumn, "one or more of the model's mrv columns were not found on the table")
	}
	if len(c.Payload) != len(payloadSet) {
		return nil, errors.Wrapf(mrverrors.NoSuchColumn, "one or more of the model's payload columns were not found on the table")
	}
	if len(c.Order) != len(orderSet) {
		return nil, errors.Wrapf(mrverrors.NoSuchColumn, "one or more of the model's order columns were not found on the table")
	}

	return c, nil
}

// Dump pretty-prints a classification for --verbose diagnostics.
func Dump(c *Classification) string {
	return pp.Sprint(c)
}
