// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// The operation dispatcher: the six-step precondition pipeline of
// §4.4, followed by the exhaustive operation table.

package server

import (
	"context"

	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/go-ippd/store"
	"github.com/OpenPrinting/goipp"
)

// handlerFunc implements one IPP operation. It may assume rc.target,
// rc.printer and rc.job are already resolved per the operation's
// target kind, and that authorization already passed.
type handlerFunc func(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError)

// opEntry binds an operation to its handler, authorization policy and
// the kind of target URI it expects.
type opEntry struct {
	handler handlerFunc
	policy  Policy
	target  ipp.TargetKind // TargetUnknown means "any resolved target accepted"
}

// dispatch runs the full precondition pipeline and invokes the
// matching handler, returning a fully-built response either way.
func (s *Server) dispatch(ctx context.Context, rc *reqContext) *ipp.ResponseBuilder {
	m := rc.msg
	hdr := ipp.RequestHeader{Version: m.Version, RequestID: m.RequestID}

	fail := func(status goipp.Status, msg string) *ipp.ResponseBuilder {
		rb := ipp.NewResponse(hdr.ResponseHeader(status))
		charset, language := rc.charset, rc.language
		if charset == "" {
			charset = "utf-8"
		}
		if language == "" {
			language = "en"
		}
		rb.StandardCharsetLanguage(charset, language)
		if msg != "" {
			rb.Operation().Add(ipp.NewAttribute("status-message", goipp.TagText, goipp.String(msg)))
		}
		return rb
	}

	// Step 1: version.
	if m.Version.Major() != 1 && m.Version.Major() != 2 {
		return fail(goipp.StatusErrorVersionNotSupported, "unsupported IPP version")
	}

	// Step 2: request-id.
	if m.RequestID == 0 {
		return fail(goipp.StatusErrorBadRequest, "request-id must be positive")
	}

	// Step 3: group-tag ordering.
	lastTag := goipp.Tag(0)
	for _, g := range m.Groups {
		if g.Tag == 0 {
			continue
		}
		if g.Tag < lastTag {
			return fail(goipp.StatusErrorBadRequest, "attribute groups out of order")
		}
		lastTag = g.Tag
	}

	// Step 4: charset / natural-language / target URI as the first
	// three operation attributes (relaxed: anywhere in the group).
	charset, okCharset := firstAttrAt(m, 0, "attributes-charset", s.RelaxedTargetURI)
	language, okLang := firstAttrAt(m, 1, "attributes-natural-language", s.RelaxedTargetURI)
	targetRaw, okTarget, targetName := findTargetURI(m, s.RelaxedTargetURI)
	if !okCharset || !okLang || !okTarget {
		return fail(goipp.StatusErrorBadRequest, "missing charset/language/target-uri")
	}
	if charset != "us-ascii" && charset != "utf-8" {
		return fail(goipp.StatusErrorCharset, "unsupported charset")
	}
	rc.charset, rc.language = charset, language
	_ = targetName

	// Step 5: target resolution.
	target, ok := ipp.ParseTarget(targetRaw)
	if !ok {
		return fail(goipp.StatusErrorNotFound, "target URI does not resolve")
	}
	rc.target = target

	op := goipp.Op(m.Code)

	var printer *store.Printer
	var job *store.Job
	switch target.Kind {
	case ipp.TargetSystem:
		// no object to resolve
	case ipp.TargetPrinter:
		p, ok := s.Sys.FindPrinterByName(target.Printer)
		if !ok {
			return fail(goipp.StatusErrorNotFound, "printer not found")
		}
		printer = p
	case ipp.TargetJob:
		p, ok := s.Sys.FindPrinterByName(target.Printer)
		if !ok {
			return fail(goipp.StatusErrorNotFound, "printer not found")
		}
		printer = p
		printer.RLock()
		for _, j := range printer.Jobs {
			j.RLock()
			match := j.ID == target.JobID
			j.RUnlock()
			if match {
				job = j
				break
			}
		}
		printer.RUnlock()
		if job == nil {
			return fail(goipp.StatusErrorNotFound, "job not found")
		}
	default:
		return fail(goipp.StatusErrorNotFound, "unrecognized target")
	}
	rc.printer = printer
	rc.job = job

	// Step 6: shutdown check.
	if printer != nil {
		printer.RLock()
		shutdown := printer.IsShutdown
		printer.RUnlock()
		if shutdown && op != goipp.OpStartupPrinter && op != goipp.OpStartupOnePrinter {
			return fail(goipp.StatusErrorServiceUnavailable, "printer is shut down")
		}
	}

	entry, ok := opTable[op]
	if !ok {
		return fail(goipp.StatusErrorOperationNotSupported, "operation not supported")
	}

	if entry.target != ipp.TargetUnknown && entry.target != target.Kind {
		return fail(goipp.StatusErrorBadRequest, "operation does not accept this target kind")
	}

	requestingUser, _ := operationAttr(m, "requesting-user-name")
	if aerr := authorize(rc.id, entry.policy, printer, job, requestingUser); aerr != nil {
		return fail(aerr.status, aerr.message)
	}

	rb, herr := entry.handler(ctx, rc)
	if herr != nil {
		return fail(herr.status, herr.message)
	}
	return rb
}

// firstAttrAt returns the value of the operation attribute expected at
// position idx (0-based) within the operation group. In strict mode
// (relaxed == false) the attribute must actually sit at idx, matching
// §4.4 step 4's "first three operation attributes" requirement; in
// relaxed mode it may appear anywhere in the group.
func firstAttrAt(m *goipp.Message, idx int, name string, relaxed bool) (string, bool) {
	if relaxed {
		return operationAttr(m, name)
	}
	ops := *m.Operation()
	if idx < 0 || idx >= len(ops) {
		return "", false
	}
	a := ops[idx]
	if a.Name != name || len(a.Values) == 0 {
		return "", false
	}
	return a.Values[0].V.String(), true
}

// findTargetURI locates whichever of system-uri/printer-uri/job-uri
// names the operation's target. In strict mode it must be the third
// operation attribute (index 2, after charset and natural-language);
// in relaxed mode it may appear anywhere in the group.
func findTargetURI(m *goipp.Message, relaxed bool) (value string, ok bool, name string) {
	targetNames := []string{"printer-uri", "job-uri", "system-uri"}
	if !relaxed {
		ops := *m.Operation()
		if len(ops) <= 2 {
			return "", false, ""
		}
		a := ops[2]
		for _, n := range targetNames {
			if a.Name == n && len(a.Values) > 0 {
				return a.Values[0].V.String(), true, a.Name
			}
		}
		return "", false, ""
	}
	for _, n := range targetNames {
		if v, found := operationAttr(m, n); found {
			return v, true, n
		}
	}
	return "", false, ""
}
