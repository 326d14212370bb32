// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Document format detection from the first bytes of a spooled document.

package ipp

import "bytes"

// magicEntry maps a document's leading bytes to its detected MIME type.
type magicEntry struct {
	prefix []byte
	mask   []byte // nil means exact match of prefix
	format string
}

var magicTable = []magicEntry{
	{prefix: []byte("%PDF"), format: "application/pdf"},
	{prefix: []byte("%!"), format: "application/postscript"},
	{prefix: []byte{0xFF, 0xD8, 0xFF}, format: "image/jpeg"},
	{prefix: []byte("\x89PNG"), format: "image/png"},
	{prefix: []byte("RAS2"), format: "image/pwg-raster"},
	{prefix: []byte("UNIRAST"), format: "image/urf"},
}

// DetectFormatLen is the number of leading bytes DetectFormat needs.
const DetectFormatLen = 8

// DetectFormat returns the detected MIME type for the given leading
// bytes of a document, or "" if none of the known magic sequences
// match. Running it twice on the same prefix always yields the same
// answer (it is a pure function of its input).
func DetectFormat(head []byte) string {
	if len(head) > DetectFormatLen {
		head = head[:DetectFormatLen]
	}

	for _, m := range magicTable {
		if len(head) < len(m.prefix) {
			continue
		}
		if !bytes.Equal(head[:len(m.prefix)], m.prefix) {
			continue
		}
		if m.format == "image/jpeg" {
			// JPEG: fourth byte must additionally fall in E0..EF.
			if len(head) < 4 || head[3] < 0xE0 || head[3] > 0xEF {
				continue
			}
		}
		return m.format
	}
	return ""
}
