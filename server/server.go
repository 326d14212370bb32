// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// The HTTP entry point: decodes the IPP request, drives it through the
// precondition pipeline, and encodes whatever response the dispatcher
// produces.

package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/OpenPrinting/go-ippd/events"
	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/go-ippd/jobengine"
	"github.com/OpenPrinting/go-ippd/log"
	"github.com/OpenPrinting/go-ippd/store"
	"github.com/OpenPrinting/goipp"
)

// Server is the top-level IPP service: an http.Handler bound to one
// System, event engine and scheduler.
type Server struct {
	Sys       *store.System
	Events    *events.Engine
	Scheduler *jobengine.Scheduler

	SpoolDir  string
	AllowDirs []string

	// Authenticate extracts the caller's identity from an incoming
	// request; nil means every request is anonymous.
	Authenticate func(*http.Request) Identity

	// RelaxedTargetURI allows the target URI operation attribute to
	// appear anywhere in the operation group instead of strictly as
	// the third attribute.4 step 4.
	RelaxedTargetURI bool
}

const ippContentType = "application/ipp"

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	msg := &goipp.Message{}
	if err := msg.Decode(r.Body); err != nil {
		s.writeError(w, goipp.DefaultVersion, 0, goipp.StatusErrorBadRequest, "malformed IPP header")
		return
	}

	id := Identity{}
	if s.Authenticate != nil {
		id = s.Authenticate(r)
	}

	rc := &reqContext{
		srv:  s,
		msg:  msg,
		body: r.Body,
		id:   id,
	}

	resp := s.dispatch(ctx, rc)

	w.Header().Set("Content-Type", ippContentType)
	w.WriteHeader(http.StatusOK)
	if err := resp.Build().Encode(w); err != nil {
		log.Error(ctx, "encode response: %v", err)
	}
	if rc.outBody != nil {
		if _, err := io.Copy(w, rc.outBody); err != nil {
			log.Error(ctx, "write document body: %v", err)
		}
		if c, ok := rc.outBody.(io.Closer); ok {
			c.Close()
		}
	}
	if rc.bodyReader != nil {
		io.Copy(io.Discard, rc.bodyReader)
	}
}

// reqContext bundles everything a handler needs from one request.
type reqContext struct {
	srv  *Server
	msg  *goipp.Message
	body io.ReadCloser
	id   Identity

	// bodyReader is set once a handler has started consuming document
	// data, letting ServeHTTP drain whatever is left afterward.
	bodyReader io.Reader

	// outBody, when set by a handler such as Fetch-Document, is copied
	// to the response writer right after the encoded IPP message and
	// then closed if it implements io.Closer.
	outBody io.Reader

	target  ipp.Target
	printer *store.Printer
	job     *store.Job

	charset  string
	language string
}

func (s *Server) writeError(w http.ResponseWriter, version goipp.Version, reqID uint32,
	status goipp.Status, message string) {

	hdr := ipp.ResponseHeader{Version: version, RequestID: reqID, Status: status}
	rb := ipp.NewResponse(hdr)
	rb.StandardCharsetLanguage("utf-8", "en")
	rb.Operation().Add(ipp.NewAttribute("status-message", goipp.TagText, goipp.String(message)))

	w.Header().Set("Content-Type", ippContentType)
	w.WriteHeader(http.StatusOK)
	rb.Build().Encode(w)
}

// operationAttr is a small helper for pulling a single string-valued
// operation attribute out of the decoded message.
func operationAttr(m *goipp.Message, name string) (string, bool) {
	for _, a := range *m.Operation() {
		if a.Name != name || len(a.Values) == 0 {
			continue
		}
		return a.Values[0].V.String(), true
	}
	return "", false
}

// newResponse starts a response for this request, already carrying the
// echoed charset/language pair every response must include.
func (rc *reqContext) newResponse(status goipp.Status) *ipp.ResponseBuilder {
	hdr := ipp.RequestHeader{Version: rc.msg.Version, RequestID: rc.msg.RequestID}
	rb := ipp.NewResponse(hdr.ResponseHeader(status))
	charset, language := rc.charset, rc.language
	if charset == "" {
		charset = "utf-8"
	}
	if language == "" {
		language = "en"
	}
	rb.StandardCharsetLanguage(charset, language)
	return rb
}

func operationInt(m *goipp.Message, name string) (int, bool) {
	v, ok := operationAttr(m, name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}
