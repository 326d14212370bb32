// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// The attribute kernel: typed attribute values, group tags and
// attribute-set operations, built directly on goipp.

package ipp

import (
	"github.com/OpenPrinting/goipp"
)

// Group identifies which attribute group an Attribute belongs to.
type Group goipp.Tag

// Attribute groups used throughout the server.
const (
	GroupOperation    = Group(goipp.TagOperationGroup)
	GroupJob          = Group(goipp.TagJobGroup)
	GroupPrinter      = Group(goipp.TagPrinterGroup)
	GroupUnsupported  = Group(goipp.TagUnsupportedGroup)
	GroupSubscription = Group(goipp.TagSubscriptionGroup)
	GroupEvent        = Group(goipp.TagEventNotificationGroup)
	GroupResource     = Group(goipp.TagResourceGroup)
	GroupDocument     = Group(goipp.TagDocumentGroup)
	GroupSystem       = Group(goipp.TagSystemGroup)
)

// Out-of-band value tags (carry no concrete value).
const (
	TagNoValue     = goipp.TagNoValue
	TagUnknown     = goipp.TagUnknown
	TagUnsupported = goipp.TagUnsupportedValue
	TagNotSettable = goipp.TagNotSettable
	TagDeleteAttr  = goipp.TagDeleteAttr
	TagAdminDefine = goipp.TagAdminDefine
)

// IsOutOfBand reports whether tag is one of the out-of-band tags that
// carry no concrete value but still participate in find/copy.
func IsOutOfBand(tag goipp.Tag) bool {
	switch tag {
	case TagNoValue, TagUnknown, TagUnsupported, TagNotSettable,
		TagDeleteAttr, TagAdminDefine:
		return true
	}
	return false
}

// Attribute is a single named, typed, multi-valued IPP attribute.
//
// Name equality is byte-exact ASCII comparison (plain Go string ==),
// which matches the wire semantics goipp already enforces at decode time.
type Attribute struct {
	Name   string
	Values goipp.Values
}

// NewAttribute builds a single-valued Attribute.
func NewAttribute(name string, tag goipp.Tag, val goipp.Value) Attribute {
	a := Attribute{Name: name}
	a.Values.Add(tag, val)
	return a
}

// IsOutOfBand reports whether a's (first) value is an out-of-band tag.
func (a Attribute) IsOutOfBand() bool {
	return len(a.Values) > 0 && IsOutOfBand(a.Values[0].T)
}

// IsSetOf reports whether a carries more than one value.
func (a Attribute) IsSetOf() bool {
	return len(a.Values) > 1
}

// goippAttr converts a to the underlying goipp.Attribute.
func (a Attribute) goippAttr() goipp.Attribute {
	return goipp.Attribute{Name: a.Name, Values: a.Values}
}

func fromGoippAttr(a goipp.Attribute) Attribute {
	return Attribute{Name: a.Name, Values: a.Values}
}

// AttributeSet is an ordered collection of Attributes within a single
// group. Collections (goipp.TagBeginCollection) nest further
// AttributeSets as their member values.
type AttributeSet struct {
	Group Group
	attrs []Attribute
}

// NewAttributeSet creates an empty AttributeSet for the given group.
func NewAttributeSet(group Group) *AttributeSet {
	return &AttributeSet{Group: group}
}

// FromGoipp builds an AttributeSet from a goipp.Attributes slice.
func FromGoipp(group Group, attrs goipp.Attributes) *AttributeSet {
	set := NewAttributeSet(group)
	for _, a := range attrs {
		set.attrs = append(set.attrs, fromGoippAttr(a))
	}
	return set
}

// ToGoipp converts the set back to goipp.Attributes, in order.
func (s *AttributeSet) ToGoipp() goipp.Attributes {
	out := make(goipp.Attributes, 0, len(s.attrs))
	for _, a := range s.attrs {
		out = append(out, a.goippAttr())
	}
	return out
}

// Len returns the number of attributes in the set.
func (s *AttributeSet) Len() int { return len(s.attrs) }

// All returns the set's attributes in order. The returned slice must
// not be mutated by the caller.
func (s *AttributeSet) All() []Attribute { return s.attrs }

// Add appends attr to the set.
func (s *AttributeSet) Add(attr Attribute) {
	s.attrs = append(s.attrs, attr)
}

// Set replaces every value of name with attr's values, or appends attr
// if name is not yet present.
func (s *AttributeSet) Set(attr Attribute) {
	for i := range s.attrs {
		if s.attrs[i].Name == attr.Name {
			s.attrs[i] = attr
			return
		}
	}
	s.Add(attr)
}

// Delete removes every attribute named name. It reports whether
// anything was removed.
func (s *AttributeSet) Delete(name string) bool {
	out := s.attrs[:0]
	found := false
	for _, a := range s.attrs {
		if a.Name == name {
			found = true
			continue
		}
		out = append(out, a)
	}
	s.attrs = out
	return found
}

// Find returns the attribute named name, and whether it was found.
func (s *AttributeSet) Find(name string) (Attribute, bool) {
	for _, a := range s.attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// FindTagged returns the attribute named name only if its first value
// carries the given tag.
func (s *AttributeSet) FindTagged(name string, tag goipp.Tag) (Attribute, bool) {
	a, ok := s.Find(name)
	if !ok || len(a.Values) == 0 || a.Values[0].T != tag {
		return Attribute{}, false
	}
	return a, true
}

// Copy returns a deep copy of the set, retargeted to group.
func (s *AttributeSet) Copy(group Group) *AttributeSet {
	return s.CopyFilter(group, func(Attribute) bool { return true })
}

// CopyFilter returns a deep copy of the attributes for which keep
// returns true, retargeted to group. It is used both by
// requested-attributes filtering and by per-user privacy filters.
func (s *AttributeSet) CopyFilter(group Group, keep func(Attribute) bool) *AttributeSet {
	out := NewAttributeSet(group)
	for _, a := range s.attrs {
		if !keep(a) {
			continue
		}
		cp := Attribute{Name: a.Name, Values: append(goipp.Values(nil), a.Values...)}
		out.attrs = append(out.attrs, cp)
	}
	return out
}

// Iterate calls fn for every attribute in the set, in order. Iteration
// stops early if fn returns false.
func (s *AttributeSet) Iterate(fn func(Attribute) bool) {
	for _, a := range s.attrs {
		if !fn(a) {
			return
		}
	}
}

// RequestedAttributesFilter builds a CopyFilter predicate from the
// value of a "requested-attributes" operation attribute: "all" keeps
// everything, an explicit list keeps only matching names.
func RequestedAttributesFilter(requested []string) func(Attribute) bool {
	if len(requested) == 0 {
		return func(Attribute) bool { return true }
	}
	want := make(map[string]bool, len(requested))
	all := false
	for _, r := range requested {
		if r == "all" {
			all = true
		}
		want[r] = true
	}
	if all {
		return func(Attribute) bool { return true }
	}
	return func(a Attribute) bool { return want[a.Name] }
}
