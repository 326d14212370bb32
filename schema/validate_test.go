// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Validator table tests.

package schema

import (
	"testing"

	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/goipp"
	"github.com/stretchr/testify/require"
)

// TestValidateAcceptsWellFormedGroup checks a group matching the
// table's declared tags passes cleanly.
func TestValidateAcceptsWellFormedGroup(t *testing.T) {
	g := ipp.NewAttributeSet(ipp.GroupJob)
	g.Add(ipp.NewAttribute("job-name", goipp.TagName, goipp.String("report.pdf")))
	g.Add(ipp.NewAttribute("copies", goipp.TagInteger, goipp.Integer(2)))

	res := Validate(JobCreationTable, g, nil, OpCreate, nil)

	require.True(t, res.OK)
	require.Equal(t, goipp.StatusOk, res.Status)
	require.Nil(t, res.Unsupported)
}

// TestValidateRejectsWrongTag checks that an attribute present with a
// tag the table doesn't expect is reported as unsupported rather than
// silently accepted.
func TestValidateRejectsWrongTag(t *testing.T) {
	g := ipp.NewAttributeSet(ipp.GroupJob)
	g.Add(ipp.NewAttribute("copies", goipp.TagKeyword, goipp.String("two")))

	res := Validate(JobCreationTable, g, nil, OpCreate, nil)

	require.False(t, res.OK)
	require.Equal(t, goipp.StatusErrorAttributesOrValues, res.Status)
	_, ok := res.Unsupported.Find("copies")
	require.True(t, ok)
}

// TestValidateSetOpUsesNotSettableStatus checks an OpSet validation
// failure reports the not-settable status rather than the create-op
// attributes-or-values status.
func TestValidateSetOpUsesNotSettableStatus(t *testing.T) {
	g := ipp.NewAttributeSet(ipp.GroupPrinter)
	g.Add(ipp.NewAttribute("printer-is-accepting-jobs", goipp.TagInteger, goipp.Integer(1)))

	res := Validate(PrinterCreationTable, g, nil, OpSet, nil)

	require.False(t, res.OK)
	require.Equal(t, goipp.StatusErrorAttributesNotSettable, res.Status)
}

// TestValidateUnknownAttributeIgnored checks an attribute absent from
// the table is passed through rather than flagged, since it is the
// caller's job to reject truly unrecognized attributes elsewhere.
func TestValidateUnknownAttributeIgnored(t *testing.T) {
	g := ipp.NewAttributeSet(ipp.GroupJob)
	g.Add(ipp.NewAttribute("x-vendor-quirk", goipp.TagKeyword, goipp.String("yes")))

	res := Validate(JobCreationTable, g, nil, OpCreate, nil)

	require.True(t, res.OK)
}

// TestValidateSupportedKeywordsRestrictsSet checks that when a
// supported-keywords allow-list is given, any attribute absent from it
// is rejected even if the table otherwise recognizes it.
func TestValidateSupportedKeywordsRestrictsSet(t *testing.T) {
	g := ipp.NewAttributeSet(ipp.GroupJob)
	g.Add(ipp.NewAttribute("job-name", goipp.TagName, goipp.String("report.pdf")))
	g.Add(ipp.NewAttribute("sides", goipp.TagKeyword, goipp.String("two-sided-long-edge")))

	res := Validate(JobCreationTable, g, nil, OpCreate, []string{"job-name"})

	require.False(t, res.OK)
	_, ok := res.Unsupported.Find("sides")
	require.True(t, ok)
	_, ok = res.Unsupported.Find("job-name")
	require.False(t, ok)
}

// TestValidateAllowsOutOfBandAltTag checks an attribute whose AltTag
// permits an out-of-band value (e.g. job-name's unknown/no-value form)
// passes instead of being flagged as a tag mismatch.
func TestValidateAllowsOutOfBandAltTag(t *testing.T) {
	g := ipp.NewAttributeSet(ipp.GroupJob)
	g.Add(ipp.NewAttribute("job-name", goipp.TagNoValue, goipp.Void{}))

	res := Validate(JobCreationTable, g, nil, OpCreate, nil)

	require.True(t, res.OK)
}

// TestValidateChecksExemptGroupCreateExemptRows checks that a
// create-op-exempt row (e.g. document-format) found in the exempt
// (operation-group) AttributeSet is validated against its declared tag,
// and that a wrong tag there is flagged exactly as a wrong tag in the
// main group would be.
func TestValidateChecksExemptGroupCreateExemptRows(t *testing.T) {
	g := ipp.NewAttributeSet(ipp.GroupJob)
	exempt := ipp.NewAttributeSet(ipp.GroupOperation)
	exempt.Add(ipp.NewAttribute("document-format", goipp.TagMimeType, goipp.String("application/pdf")))

	res := Validate(JobCreationTable, g, exempt, OpCreate, nil)
	require.True(t, res.OK)

	badExempt := ipp.NewAttributeSet(ipp.GroupOperation)
	badExempt.Add(ipp.NewAttribute("document-format", goipp.TagKeyword, goipp.String("application/pdf")))

	res = Validate(JobCreationTable, g, badExempt, OpCreate, nil)
	require.False(t, res.OK)
	_, ok := res.Unsupported.Find("document-format")
	require.True(t, ok)
}

// TestValidateIgnoresNonExemptRowsInExemptGroup checks a table row that
// is not CreateExempt (e.g. job-priority) appearing in the exempt group is
// not validated there — it's this table's concern only within the main
// group.
func TestValidateIgnoresNonExemptRowsInExemptGroup(t *testing.T) {
	g := ipp.NewAttributeSet(ipp.GroupJob)
	exempt := ipp.NewAttributeSet(ipp.GroupOperation)
	exempt.Add(ipp.NewAttribute("job-priority", goipp.TagKeyword, goipp.String("bogus")))

	res := Validate(JobCreationTable, g, exempt, OpCreate, nil)
	require.True(t, res.OK)
}

// TestValidateRejectsOutOfBandWithoutAltTag checks an out-of-band value
// on an attribute with no AltTag is still flagged.
func TestValidateRejectsOutOfBandWithoutAltTag(t *testing.T) {
	g := ipp.NewAttributeSet(ipp.GroupJob)
	g.Add(ipp.NewAttribute("copies", goipp.TagNoValue, goipp.Void{}))

	res := Validate(JobCreationTable, g, nil, OpCreate, nil)

	require.False(t, res.OK)
	_, ok := res.Unsupported.Find("copies")
	require.True(t, ok)
}

// TestValidateRejectsMultiValueWithoutOneSetOf checks an attribute
// carrying more than one value without the table marking it OneSetOf
// is flagged.
func TestValidateRejectsMultiValueWithoutOneSetOf(t *testing.T) {
	g := ipp.NewAttributeSet(ipp.GroupJob)
	attr := ipp.NewAttribute("copies", goipp.TagInteger, goipp.Integer(1))
	attr.Values.Add(goipp.TagInteger, goipp.Integer(2))
	g.Add(attr)

	res := Validate(JobCreationTable, g, nil, OpCreate, nil)

	require.False(t, res.OK)
}

// TestValidateAllowsMultiValueWithOneSetOf checks finishings, a
// OneSetOf attribute, accepts multiple values cleanly.
func TestValidateAllowsMultiValueWithOneSetOf(t *testing.T) {
	g := ipp.NewAttributeSet(ipp.GroupJob)
	attr := ipp.NewAttribute("finishings", goipp.TagEnum, goipp.Integer(3))
	attr.Values.Add(goipp.TagEnum, goipp.Integer(4))
	g.Add(attr)

	res := Validate(JobCreationTable, g, nil, OpCreate, nil)

	require.True(t, res.OK)
}

// TestTagEquivalentNameAndTextLangVariants checks the name<->nameWithLang
// and text<->textWithLang equivalences §4.3 calls for.
func TestTagEquivalentNameAndTextLangVariants(t *testing.T) {
	require.True(t, tagEquivalent(goipp.TagName, goipp.TagNameLang))
	require.True(t, tagEquivalent(goipp.TagNameLang, goipp.TagName))
	require.True(t, tagEquivalent(goipp.TagText, goipp.TagTextLang))
	require.True(t, tagEquivalent(goipp.TagTextLang, goipp.TagText))
	require.False(t, tagEquivalent(goipp.TagName, goipp.TagKeyword))
}
