// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Table-driven attribute validation.3.

package schema

import (
	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/goipp"
)

// Op distinguishes a create-style request (requires group membership
// except for CreateExempt rows) from a set-style one (uses the
// "not settable" status and response group instead).
type Op int

// Validation op kinds.
const (
	OpCreate Op = iota
	OpSet
)

// Result is the outcome of validating an attribute group.
type Result struct {
	OK          bool
	Status      goipp.Status
	Unsupported *ipp.AttributeSet // offending attributes, original values preserved
}

// Validate checks every attribute present in group (an AttributeSet
// already scoped to the table's declared goipp group tag, e.g.
// TagJobGroup for JobCreationTable) against table, honoring an optional
// "supported keywords" allow-list (e.g.
// printer-creation-attributes-supported) and the create-op exemption.
//
// exempt, when non-nil, is the operation-group AttributeSet checked for
// CreateExempt rows only (§4.3: "require group=G, or operation for
// create-op-exempt names") — pass nil when the table carries no
// CreateExempt rows or the operation isn't a job/printer-creation
// request folding operation-group attributes in (e.g. Set-*-Attributes).
func Validate(table []Row, group *ipp.AttributeSet, exempt *ipp.AttributeSet,
	op Op, supportedKeywords []string) Result {

	unsupported := ipp.NewAttributeSet(ipp.GroupUnsupported)
	allow := map[string]bool{}
	restrict := len(supportedKeywords) > 0
	for _, k := range supportedKeywords {
		allow[k] = true
	}

	bad := false
	check := func(a ipp.Attribute, row Row) {
		if restrict && !allow[a.Name] {
			unsupported.Add(a)
			bad = true
			return
		}

		if len(a.Values) == 0 {
			return
		}

		if row.Cardinality != OneSetOf && len(a.Values) > 1 {
			unsupported.Add(a)
			bad = true
			return
		}

		for _, v := range a.Values {
			if ipp.IsOutOfBand(v.T) {
				if row.AltTag != 0 && v.T == row.AltTag {
					continue
				}
				unsupported.Add(a)
				bad = true
				break
			}
			if !tagEquivalent(row.Tag, v.T) {
				unsupported.Add(a)
				bad = true
				break
			}
		}
	}

	group.Iterate(func(a ipp.Attribute) bool {
		row, known := lookup(table, a.Name)
		if !known {
			return true // unknown attributes are simply ignored here
		}
		check(a, row)
		return true
	})

	if exempt != nil {
		exempt.Iterate(func(a ipp.Attribute) bool {
			row, known := lookup(table, a.Name)
			if !known || !row.CreateExempt {
				// Not one of this table's create-op-exempt rows: an
				// unrelated operation attribute, not this table's concern.
				return true
			}
			check(a, row)
			return true
		})
	}

	if !bad {
		return Result{OK: true, Status: goipp.StatusOk}
	}

	status := goipp.StatusErrorAttributesOrValues
	if op == OpSet {
		status = goipp.StatusErrorAttributesNotSettable
	}
	return Result{OK: false, Status: status, Unsupported: unsupported}
}
