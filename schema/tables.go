// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Static validator tables: job-creation, printer-creation and
// system-settable attributes.3.

package schema

import "github.com/OpenPrinting/goipp"

// Cardinality flags an entry's cardinality (group-exemption is the
// separate Row.CreateExempt flag).
type Cardinality int

// Cardinality flags.
const (
	// Normal means the attribute carries a single value.
	Normal Cardinality = iota
	// OneSetOf means the attribute may carry multiple values.
	OneSetOf
)

// Row is one entry of a validator table.
type Row struct {
	Name          string      // Attribute name
	Tag           goipp.Tag   // Expected value tag
	AltTag        goipp.Tag   // Allowed alternate tag (0 = none); usually an out-of-band tag
	Cardinality   Cardinality // Normal or OneSetOf
	CreateExempt  bool        // Create-op attribute allowed outside its nominal group
}

// tagEquivalent reports whether got satisfies an expectation of want,
// honoring the name<->nameWithLang and text<->textWithLang equivalences
// §4.3 calls out.
func tagEquivalent(want, got goipp.Tag) bool {
	if want == got {
		return true
	}
	switch want {
	case goipp.TagName:
		return got == goipp.TagNameLang
	case goipp.TagNameLang:
		return got == goipp.TagName
	case goipp.TagText:
		return got == goipp.TagTextLang
	case goipp.TagTextLang:
		return got == goipp.TagText
	}
	return false
}

// JobCreationTable lists attributes acceptable in job-creation
// operations (Print-Job, Create-Job, Send-Document doc-group, Validate-Job).
var JobCreationTable = []Row{
	{Name: "job-name", Tag: goipp.TagName, AltTag: goipp.TagNoValue},
	{Name: "job-priority", Tag: goipp.TagInteger},
	{Name: "job-hold-until", Tag: goipp.TagKeyword},
	{Name: "job-hold-until-time", Tag: goipp.TagDateTime},
	{Name: "job-sheets", Tag: goipp.TagKeyword},
	{Name: "multiple-document-handling", Tag: goipp.TagKeyword},
	{Name: "copies", Tag: goipp.TagInteger},
	{Name: "finishings", Tag: goipp.TagEnum, Cardinality: OneSetOf},
	{Name: "page-ranges", Tag: goipp.TagRange, Cardinality: OneSetOf},
	{Name: "sides", Tag: goipp.TagKeyword},
	{Name: "number-up", Tag: goipp.TagInteger},
	{Name: "orientation-requested", Tag: goipp.TagEnum},
	{Name: "media", Tag: goipp.TagKeyword},
	{Name: "media-col", Tag: goipp.TagBeginCollection},
	{Name: "print-quality", Tag: goipp.TagEnum},
	{Name: "printer-resolution", Tag: goipp.TagResolution},
	{Name: "print-color-mode", Tag: goipp.TagKeyword},
	{Name: "document-format", Tag: goipp.TagMimeType, CreateExempt: true},
	{Name: "document-format-detected", Tag: goipp.TagMimeType, CreateExempt: true},
	{Name: "document-name", Tag: goipp.TagName, CreateExempt: true},
	{Name: "compression", Tag: goipp.TagKeyword, CreateExempt: true},
	{Name: "ipp-attribute-fidelity", Tag: goipp.TagBoolean},
	{Name: "requesting-user-name", Tag: goipp.TagName, CreateExempt: true},
}

// PrinterCreationTable lists attributes acceptable when creating or
// setting a printer (Create-Printer, Set-Printer-Attributes).
var PrinterCreationTable = []Row{
	{Name: "printer-name", Tag: goipp.TagName},
	{Name: "printer-info", Tag: goipp.TagText},
	{Name: "printer-location", Tag: goipp.TagText},
	{Name: "printer-geo-location", Tag: goipp.TagURI, AltTag: goipp.TagUnknown},
	{Name: "printer-organization", Tag: goipp.TagText},
	{Name: "printer-organizational-unit", Tag: goipp.TagText},
	{Name: "device-uri", Tag: goipp.TagURI},
	{Name: "printer-is-accepting-jobs", Tag: goipp.TagBoolean},
	{Name: "printer-is-shared", Tag: goipp.TagBoolean},
	{Name: "document-format-default", Tag: goipp.TagMimeType},
	{Name: "document-format-supported", Tag: goipp.TagMimeType, Cardinality: OneSetOf},
	{Name: "identify-actions-default", Tag: goipp.TagKeyword, Cardinality: OneSetOf},
	{Name: "printer-icc-profiles", Tag: goipp.TagBeginCollection, Cardinality: OneSetOf},
	{Name: "print-group", Tag: goipp.TagName, AltTag: goipp.TagNoValue},
	{Name: "proxy-group", Tag: goipp.TagName, AltTag: goipp.TagNoValue},
	{Name: "printer-creation-attributes-supported", Tag: goipp.TagKeyword, Cardinality: OneSetOf},
	{Name: "job-creation-attributes-supported", Tag: goipp.TagKeyword, Cardinality: OneSetOf},
}

// SystemSettableTable lists attributes acceptable in
// Set-System-Attributes.
var SystemSettableTable = []Row{
	{Name: "system-default-printer-id", Tag: goipp.TagInteger},
	{Name: "system-name", Tag: goipp.TagName},
	{Name: "system-location", Tag: goipp.TagText},
	{Name: "system-geo-location", Tag: goipp.TagURI, AltTag: goipp.TagUnknown},
	{Name: "system-owner-col", Tag: goipp.TagBeginCollection},
	{Name: "system-contact-col", Tag: goipp.TagBeginCollection},
}

func lookup(table []Row, name string) (Row, bool) {
	for _, r := range table {
		if r.Name == name {
			return r, true
		}
	}
	return Row{}, false
}
