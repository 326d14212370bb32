// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Collection value nesting.

package ipp

import "github.com/OpenPrinting/goipp"

// NewCollectionValue builds a goipp.Collection value from an
// AttributeSet, for embedding as a 1setOf collection member.
func NewCollectionValue(set *AttributeSet) goipp.Collection {
	return goipp.Collection(set.ToGoipp())
}

// CollectionFromValue extracts the nested AttributeSet from a
// goipp.Collection value. The returned set's Group is GroupJob, which
// is harmless: collection members are never re-serialized by group tag.
func CollectionFromValue(v goipp.Value) (*AttributeSet, bool) {
	coll, ok := v.(goipp.Collection)
	if !ok {
		return nil, false
	}
	return FromGoipp(GroupJob, goipp.Attributes(coll)), true
}

// Validate performs structural well-formedness checks on the set:
// every name is non-empty, every *WithLang value carries a non-empty
// language, and every nested collection passes the same checks. It
// does not compare the tags of a multi-valued attribute's values with
// each other, and it does not check the per-operation schema
// (that's schema.Validate); this is the kernel-level sanity check
// referenced by "Attribute round-trip" property.
func (s *AttributeSet) Validate() bool {
	for _, a := range s.attrs {
		if a.Name == "" {
			return false
		}
		for _, v := range a.Values {
			switch v.T {
			case goipp.TagTextLang, goipp.TagNameLang:
				sl, ok := v.V.(goipp.TextWithLang)
				if !ok || sl.Lang == "" {
					return false
				}
			case goipp.TagBeginCollection:
				set, ok := CollectionFromValue(v.V)
				if !ok || !set.Validate() {
					return false
				}
			}
		}
	}
	return true
}
