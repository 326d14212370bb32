// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Request/response header helpers, carrying the version/request-id
// pair common to every IPP message and building the matching
// response header from a request in one call.

package ipp

import "github.com/OpenPrinting/goipp"

// RequestHeader carries the fields common to every IPP request.
type RequestHeader struct {
	Version   goipp.Version
	RequestID uint32
}

// ResponseHeader carries the fields common to every IPP response.
type ResponseHeader struct {
	Version   goipp.Version
	RequestID uint32
	Status    goipp.Status
}

// ResponseHeader builds the response header that answers rq with the
// given status.
func (rq RequestHeader) ResponseHeader(status goipp.Status) ResponseHeader {
	return ResponseHeader{
		Version:   rq.Version,
		RequestID: rq.RequestID,
		Status:    status,
	}
}

// NewRequestMessage builds a Decode-ready goipp.Message shell for a
// request with the given operation attributes.
func NewRequestMessage(version goipp.Version, op goipp.Op, id uint32,
	operation *AttributeSet) *goipp.Message {

	m := goipp.NewRequest(version, op, id)
	*m.Operation() = operation.ToGoipp()
	return m
}

// GroupsByTag returns every attribute group in m carrying tag, in wire
// order. A request or response may legally repeat TagJobGroup (one per
// document) or TagPrinterGroup (one per listed printer), so callers
// that expect at most one group still need to pick the right one
// (usually the first).
func GroupsByTag(m *goipp.Message, tag goipp.Tag) []*AttributeSet {
	var out []*AttributeSet
	for _, g := range m.Groups {
		if g.Tag == tag {
			out = append(out, FromGoipp(Group(tag), g.Attrs))
		}
	}
	return out
}

// GroupByTag returns the first attribute group in m carrying tag, or
// an empty set if none is present.
func GroupByTag(m *goipp.Message, tag goipp.Tag) *AttributeSet {
	sets := GroupsByTag(m, tag)
	if len(sets) == 0 {
		return NewAttributeSet(Group(tag))
	}
	return sets[0]
}

// ResponseBuilder assembles a response goipp.Message group by group,
// in the fixed wire order: operation, unsupported, then any
// object-specific groups the handler adds.
type ResponseBuilder struct {
	hdr        ResponseHeader
	operation  *AttributeSet
	groups     []*AttributeSet
}

// NewResponse starts building a response with the given header and an
// (initially empty) operation attribute group.
func NewResponse(hdr ResponseHeader) *ResponseBuilder {
	return &ResponseBuilder{hdr: hdr, operation: NewAttributeSet(GroupOperation)}
}

// Operation returns the builder's operation attribute group, for the
// caller to populate (attributes-charset, attributes-natural-language,
// status-message, ...).
func (b *ResponseBuilder) Operation() *AttributeSet { return b.operation }

// AddGroup appends an additional attribute group (job, printer,
// unsupported, subscription, ...) to the response.
func (b *ResponseBuilder) AddGroup(set *AttributeSet) {
	b.groups = append(b.groups, set)
}

// Build renders the accumulated groups into a goipp.Message.
func (b *ResponseBuilder) Build() *goipp.Message {
	m := goipp.NewResponse(b.hdr.Version, b.hdr.Status, b.hdr.RequestID)
	*m.Operation() = b.operation.ToGoipp()
	for _, g := range b.groups {
		grp := m.EnsureGroup(goipp.Tag(g.Group))
		*grp = append(*grp, g.ToGoipp()...)
	}
	return m
}

// StandardCharsetLanguage populates the charset/natural-language pair
// every response is required to echo back.
func (b *ResponseBuilder) StandardCharsetLanguage(charset, language string) {
	b.operation.Add(NewAttribute("attributes-charset", goipp.TagCharset, goipp.String(charset)))
	b.operation.Add(NewAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String(language)))
}
