// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// STATE:/ATTR: sideband parsing tests.

package jobengine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSideband records every callback invocation for assertion.
type fakeSideband struct {
	printerAdd     []string
	printerRemove  []string
	printerReplace []string
	jobAdd         []string
	jobRemove      []string
	aborted        bool
	attrs          map[string]string
	commandModeOf  map[string]bool
	logLines       []string
}

func newFakeSideband() *fakeSideband {
	return &fakeSideband{
		attrs:         map[string]string{},
		commandModeOf: map[string]bool{},
	}
}

func (f *fakeSideband) OnPrinterStateAdd(kw string)    { f.printerAdd = append(f.printerAdd, kw) }
func (f *fakeSideband) OnPrinterStateRemove(kw string) { f.printerRemove = append(f.printerRemove, kw) }
func (f *fakeSideband) OnPrinterStateReplace(kws []string) {
	f.printerReplace = append(f.printerReplace, kws...)
}
func (f *fakeSideband) OnJobStateAdd(kw string)    { f.jobAdd = append(f.jobAdd, kw) }
func (f *fakeSideband) OnJobStateRemove(kw string) { f.jobRemove = append(f.jobRemove, kw) }
func (f *fakeSideband) OnJobAbort()                { f.aborted = true }
func (f *fakeSideband) OnAttr(name, value string, isCommandMode bool) {
	f.attrs[name] = value
	f.commandModeOf[name] = isCommandMode
}
func (f *fakeSideband) OnLogLine(line string) { f.logLines = append(f.logLines, line) }

// TestParseStateAddWithWarningSuffix checks a
// "+media-empty-warning,paused" line must add both base keywords to the
// job and printer reason sets, with the "-warning" suffix stripped
// before classification, and must not trigger an abort.
func TestParseStateAddWithWarningSuffix(t *testing.T) {
	h := newFakeSideband()

	parseState(" +media-empty-warning,paused", h)

	require.ElementsMatch(t, []string{"media-empty", "paused"}, h.printerAdd)
	require.ElementsMatch(t, []string{"media-empty", "paused"}, h.jobAdd)
	require.False(t, h.aborted)
	require.Empty(t, h.printerRemove)
}

// TestParseStateErrorSuffixAborts checks that a "-error" suffixed
// keyword both adds the base keyword and triggers a job abort.
func TestParseStateErrorSuffixAborts(t *testing.T) {
	h := newFakeSideband()

	parseState("+media-jam-error", h)

	require.Equal(t, []string{"media-jam"}, h.printerAdd)
	require.Equal(t, []string{"media-jam"}, h.jobAdd)
	require.True(t, h.aborted)
}

// TestParseStateRemove checks the "-" prefix removes keywords from
// both reason sets without affecting the abort flag.
func TestParseStateRemove(t *testing.T) {
	h := newFakeSideband()

	parseState("-paused,media-empty", h)

	require.ElementsMatch(t, []string{"paused", "media-empty"}, h.printerRemove)
	require.ElementsMatch(t, []string{"paused", "media-empty"}, h.jobRemove)
	require.False(t, h.aborted)
}

// TestParseStateNoPrefixReplacesPrinterOnly checks §9's
// preserved-as-is behavior: a bare (no +/-) STATE: line replaces the
// printer-state-reasons set wholesale while still adding to the job's
// reasons additively.
func TestParseStateNoPrefixReplacesPrinterOnly(t *testing.T) {
	h := newFakeSideband()

	parseState("marker-supply-low", h)

	require.Equal(t, []string{"marker-supply-low"}, h.printerReplace)
	require.Equal(t, []string{"marker-supply-low"}, h.jobAdd)
	require.Empty(t, h.printerAdd)
}

// TestParseAttrURLUnescapesValue checks ATTR: lines are name=value
// pairs with a URL-escaped value, and that job-impressions-completed's
// command-mode flag is threaded through unchanged.
func TestParseAttrURLUnescapesValue(t *testing.T) {
	h := newFakeSideband()

	parseAttr(" job-media-sheets-completed=3", h, false)
	parseAttr("job-impressions-completed=7", h, true)
	parseAttr("printer-alert=code%3D1%2Cseverity%3Dwarning", h, false)

	require.Equal(t, "3", h.attrs["job-media-sheets-completed"])
	require.Equal(t, "7", h.attrs["job-impressions-completed"])
	require.True(t, h.commandModeOf["job-impressions-completed"])
	require.Equal(t, "code=1,severity=warning", h.attrs["printer-alert"])
}

// TestParseAttrMissingEqualsIgnored checks a malformed ATTR: line (no
// "=") is silently dropped rather than panicking or recording garbage.
func TestParseAttrMissingEqualsIgnored(t *testing.T) {
	h := newFakeSideband()

	parseAttr("not-a-kv-pair", h, false)

	require.Empty(t, h.attrs)
}

// TestParseSidebandRoutesLinesByPrefix exercises the line-oriented
// scanner end to end: STATE:/ATTR:/plain lines must route to the right
// handler callback, matching the §9 single-assembly-buffer design note.
func TestParseSidebandRoutesLinesByPrefix(t *testing.T) {
	h := newFakeSideband()
	input := "STATE: +paused\n" +
		"ATTR: job-impressions=42\n" +
		"some informational line\n"

	parseSideband(context.Background(), strings.NewReader(input), h, false)

	require.Equal(t, []string{"paused"}, h.jobAdd)
	require.Equal(t, "42", h.attrs["job-impressions"])
	require.Equal(t, []string{"some informational line"}, h.logLines)
}

// TestClassifyKeywordStripsKnownSuffixes checks every recognized
// suffix is stripped and only "-error" reports isError.
func TestClassifyKeywordStripsKnownSuffixes(t *testing.T) {
	cases := []struct {
		in       string
		wantBase string
		wantErr  bool
	}{
		{"media-jam-error", "media-jam", true},
		{"media-empty-warning", "media-empty", false},
		{"cover-open-report", "cover-open", false},
		{"paused", "paused", false},
	}
	for _, c := range cases {
		base, isErr := classifyKeyword(c.in)
		require.Equal(t, c.wantBase, base, "base for %q", c.in)
		require.Equal(t, c.wantErr, isErr, "isError for %q", c.in)
	}
}
