// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// End-to-end request/response tests.

package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/OpenPrinting/go-ippd/events"
	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/go-ippd/store"
	"github.com/OpenPrinting/goipp"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *store.Printer) {
	t.Helper()
	sys := store.NewSystem()
	p := sys.CreatePrinter("office")

	ev := events.NewEngine(sys)
	return &Server{Sys: sys, Events: ev}, p
}

func buildRequest(op goipp.Op, targetURI string) *goipp.Message {
	operation := ipp.NewAttributeSet(ipp.GroupOperation)
	operation.Add(ipp.NewAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")))
	operation.Add(ipp.NewAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en")))
	operation.Add(ipp.NewAttribute("printer-uri", goipp.TagURI, goipp.String(targetURI)))
	return ipp.NewRequestMessage(goipp.DefaultVersion, op, 1, operation)
}

func encode(t *testing.T, m *goipp.Message) []byte {
	t.Helper()
	data, err := m.EncodeBytes()
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, data []byte) *goipp.Message {
	t.Helper()
	m := &goipp.Message{}
	require.NoError(t, m.DecodeBytes(data))
	return m
}

// TestGetPrinterAttributesHappyPath checks that a well-formed
// Get-Printer-Attributes request against an existing printer succeeds
// and echoes its identity.
func TestGetPrinterAttributesHappyPath(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req := buildRequest(goipp.OpGetPrinterAttributes, "ipp://localhost/ipp/print/office")
	resp, err := http.Post(ts.URL, "application/ipp", bytes.NewReader(encode(t, req)))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	out := decode(t, buf.Bytes())
	require.Equal(t, goipp.Code(goipp.StatusOk), out.Code)

	var uuidSeen bool
	for _, g := range out.Groups {
		if g.Tag != goipp.TagPrinterGroup {
			continue
		}
		for _, a := range g.Attrs {
			if a.Name == "printer-uuid" {
				uuidSeen = true
			}
		}
	}
	require.True(t, uuidSeen, "response must carry the printer group with printer-uuid")
}

// TestGetPrinterAttributesUnknownPrinter checks an unresolvable target
// URI yields client-error-not-found rather than a crash or empty 200.
func TestGetPrinterAttributesUnknownPrinter(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req := buildRequest(goipp.OpGetPrinterAttributes, "ipp://localhost/ipp/print/nonexistent")
	resp, err := http.Post(ts.URL, "application/ipp", bytes.NewReader(encode(t, req)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	out := decode(t, buf.Bytes())
	require.Equal(t, goipp.Code(goipp.StatusErrorNotFound), out.Code)
}

// TestServeHTTPRejectsNonPost checks the handler refuses anything but
// POST, as IPP-over-HTTP requires.
func TestServeHTTPRejectsNonPost(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// TestServeHTTPRejectsMalformedBody checks an undecodable body yields a
// bad-request IPP response rather than an HTTP-level failure.
func TestServeHTTPRejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Post(ts.URL, "application/ipp", bytes.NewReader([]byte{0xff, 0x00}))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	out := decode(t, buf.Bytes())
	require.Equal(t, goipp.Code(goipp.StatusErrorBadRequest), out.Code)
}
