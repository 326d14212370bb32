// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Job creation, document submission, and job lifecycle management, per
// §4.6.

package server

import (
	"context"
	"io"

	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/go-ippd/jobengine"
	"github.com/OpenPrinting/go-ippd/schema"
	"github.com/OpenPrinting/go-ippd/store"
	"github.com/OpenPrinting/goipp"
)

// docLevelNames lists the document-group attributes a job-creation
// request may additionally carry in its operation group (Print-Job
// folds document-group attributes into the operation group), per
// §4.6 step 3.
var docLevelNames = []string{
	"document-format", "document-format-detected", "document-name",
	"compression", "requesting-user-name",
}

// newJob allocates and registers a Job on printer, copying approved
// job-group attributes from the request and the document-level
// attributes docLevelNames names from the operation group.
func (s *Server) newJob(ctx context.Context, rc *reqContext, printer *store.Printer) (*store.Job, *ippError) {
	jobGroup := ipp.GroupByTag(rc.msg, goipp.TagJobGroup)
	operationGroup := ipp.GroupByTag(rc.msg, goipp.TagOperationGroup)

	result := schema.Validate(schema.JobCreationTable, jobGroup, operationGroup, schema.OpCreate, nil)
	if !result.OK {
		return nil, &ippError{status: result.Status, message: "unsupported job attribute"}
	}

	requestingUser, _ := operationAttr(rc.msg, "requesting-user-name")
	username := EffectiveUsername(rc.id, requestingUser)

	printer.Lock()
	defer printer.Unlock()

	id := s.Sys.JobIDs.Next()
	job := store.NewJob(id, printer, username)

	jobGroup.Iterate(func(a ipp.Attribute) bool {
		job.Attrs.Add(a)
		return true
	})
	for _, name := range docLevelNames {
		if name == "requesting-user-name" {
			continue
		}
		if a, ok := operationGroup.Find(name); ok {
			job.DocAttrs.Add(a)
		}
	}

	if hold, ok := job.Attrs.Find("job-hold-until"); ok && len(hold.Values) > 0 {
		if hv := hold.Values[0].V.String(); hv != "" && hv != "no-hold" {
			job.Transition(ctx, "hold")
		}
	} else if printer.HoldNewJobs {
		job.Transition(ctx, "hold")
	}

	printer.Jobs = append(printer.Jobs, job)
	if !job.IsTerminal() {
		printer.ActiveJobs = append(printer.ActiveJobs, job)
		printer.SortActiveJobs()
	}

	return job, nil
}

// receiveDocumentBody spools rc's remaining HTTP body into job's
// document, detecting the format when declared is octet-stream or
// absent.6 step 4.
func (s *Server) receiveDocumentBody(rc *reqContext, job *store.Job, declared string) error {
	path := jobengine.JobSpoolPath(s.SpoolDir, mustPrinterName(job), job.ID, declared)
	format, _, err := jobengine.ReceiveDocument(path, declared, rc.body)
	if err != nil {
		return err
	}

	job.Lock()
	job.Format = format
	job.Filename = path
	job.Unlock()

	rc.bodyReader = io.Discard
	return nil
}

func mustPrinterName(job *store.Job) string {
	job.RLock()
	defer job.RUnlock()
	return job.Printer.Name
}

// finishCreation releases the job to the scheduler (unless held) and
// builds the Job-group response testable property S1/S2
// call for.
func (s *Server) finishCreation(rc *reqContext, printer *store.Printer, job *store.Job) *ipp.ResponseBuilder {
	s.Events.AddEvent(printer, job, "job-created", nil)
	s.Scheduler.Wake(printer.ID)

	rb := rc.newResponse(goipp.StatusOk)
	jg := ipp.NewAttributeSet(ipp.GroupJob)

	job.RLock()
	state := job.StateLocked()
	reasons := job.StateReasons.Keywords()
	jg.Add(ipp.NewAttribute("job-id", goipp.TagInteger, goipp.Integer(job.ID)))
	jg.Add(ipp.NewAttribute("job-uri", goipp.TagURI,
		goipp.String("ipp://"+printer.Resource+"/"+itoa(job.ID))))
	jg.Add(ipp.NewAttribute("job-state", goipp.TagEnum, goipp.Integer(store.JobStateCode(state))))
	ra := ipp.Attribute{Name: "job-state-reasons"}
	for _, r := range reasons {
		ra.Values.Add(goipp.TagKeyword, goipp.String(r))
	}
	jg.Add(ra)
	job.RUnlock()

	rb.AddGroup(jg)
	return rb
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// handlePrintJob implements Print-Job: create + single document in one
// request.
func handlePrintJob(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	srv := rc.srv
	job, err := srv.newJob(ctx, rc, rc.printer)
	if err != nil {
		return nil, err
	}
	declared, _ := operationAttr(rc.msg, "document-format")
	if declared == "" {
		declared = "application/octet-stream"
	}
	if ioErr := srv.receiveDocumentBody(rc, job, declared); ioErr != nil {
		return nil, ippErrorf(goipp.StatusErrorDocumentAccess, "failed to spool document")
	}
	return srv.finishCreation(rc, rc.printer, job), nil
}

// handleCreateJob implements Create-Job: no document body yet.
func handleCreateJob(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	srv := rc.srv
	job, err := srv.newJob(ctx, rc, rc.printer)
	if err != nil {
		return nil, err
	}
	return srv.finishCreation(rc, rc.printer, job), nil
}

// handlePrintURI implements Print-URI: create + fetch the document
// from a client-supplied URI.
func handlePrintURI(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	srv := rc.srv
	job, err := srv.newJob(ctx, rc, rc.printer)
	if err != nil {
		return nil, err
	}
	return srv.sendURI(ctx, rc, job)
}

// handleSendURI implements Send-URI against an existing job.
func handleSendURI(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	return rc.srv.sendURI(ctx, rc, rc.job)
}

func (s *Server) sendURI(ctx context.Context, rc *reqContext, job *store.Job) (*ipp.ResponseBuilder, *ippError) {
	docURI, ok := operationAttr(rc.msg, "document-uri")
	if !ok {
		return nil, errBadRequest
	}
	body, ferr := jobengine.FetchURI(ctx, docURI, s.AllowDirs)
	if ferr != nil {
		return nil, ippErrorf(goipp.StatusErrorDocumentAccess, "document fetch failed")
	}
	defer body.Close()

	declared, _ := operationAttr(rc.msg, "document-format")
	if declared == "" {
		declared = "application/octet-stream"
	}

	job.RLock()
	path := jobengine.JobSpoolPath(s.SpoolDir, job.Printer.Name, job.ID, declared)
	printer := job.Printer
	job.RUnlock()

	format, _, err := jobengine.ReceiveDocument(path, declared, body)
	if err != nil {
		return nil, ippErrorf(goipp.StatusErrorDocumentAccess, "failed to spool document")
	}
	job.Lock()
	job.Format, job.Filename = format, path
	job.Unlock()

	return s.finishCreation(rc, printer, job), nil
}

// handleSendDocument implements Send-Document against an existing job.
func handleSendDocument(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	srv := rc.srv
	job := rc.job

	declared, _ := operationAttr(rc.msg, "document-format")
	if declared == "" {
		declared = "application/octet-stream"
	}
	if err := srv.receiveDocumentBody(rc, job, declared); err != nil {
		return nil, ippErrorf(goipp.StatusErrorDocumentAccess, "failed to spool document")
	}

	job.RLock()
	printer := job.Printer
	job.RUnlock()

	return srv.finishCreation(rc, printer, job), nil
}

// handleValidateJob implements Validate-Job: run the same validation
// Create-Job would, without creating anything.
func handleValidateJob(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	jobGroup := ipp.GroupByTag(rc.msg, goipp.TagJobGroup)
	operationGroup := ipp.GroupByTag(rc.msg, goipp.TagOperationGroup)
	result := schema.Validate(schema.JobCreationTable, jobGroup, operationGroup, schema.OpCreate, nil)
	if !result.OK {
		rb := rc.newResponse(result.Status)
		rb.AddGroup(result.Unsupported)
		return rb, nil
	}
	return rc.newResponse(goipp.StatusOk), nil
}

// handleValidateDocument implements Validate-Document: it answers
// successful-ok without checking the request's attributes.
func handleValidateDocument(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	return rc.newResponse(goipp.StatusOk), nil
}

// handleCloseJob implements Close-Job: it wakes the printer's
// scheduler; no job state records that further documents are not
// coming.
func handleCloseJob(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	rc.srv.Scheduler.Wake(rc.printer.ID)
	return rc.newResponse(goipp.StatusOk), nil
}

// ----- job query and lifecycle management -----

func handleGetJobAttributes(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	job := rc.job
	requested, _ := operationAttrList(rc.msg, "requested-attributes")
	filter := ipp.RequestedAttributesFilter(requested)

	privileged := IsPrivilegedView(rc.id, job)

	job.RLock()
	keep := func(a ipp.Attribute) bool {
		if !filter(a) {
			return false
		}
		if !privileged && privateJobAttr(a.Name) {
			return false
		}
		return true
	}
	jg := job.Attrs.CopyFilter(ipp.GroupJob, keep)
	jg.Add(ipp.NewAttribute("job-id", goipp.TagInteger, goipp.Integer(job.ID)))
	jg.Add(ipp.NewAttribute("job-state", goipp.TagEnum, goipp.Integer(store.JobStateCode(job.StateLocked()))))
	job.RUnlock()

	rb := rc.newResponse(goipp.StatusOk)
	rb.AddGroup(jg)
	return rb, nil
}

func privateJobAttr(name string) bool {
	switch name {
	case "job-originating-user-name", "document-access-error":
		return true
	}
	return false
}

func handleGetJobs(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	requested, _ := operationAttrList(rc.msg, "requested-attributes")
	filter := ipp.RequestedAttributesFilter(requested)
	whichJobs, _ := operationAttr(rc.msg, "which-jobs")
	myJobs, _ := operationAttr(rc.msg, "my-jobs")
	limit, hasLimit := operationInt(rc.msg, "limit")

	rb := rc.newResponse(goipp.StatusOk)

	printer.RLock()
	jobs := append([]*store.Job(nil), printer.Jobs...)
	printer.RUnlock()

	count := 0
	for _, job := range jobs {
		if hasLimit && count >= limit {
			break
		}
		job.RLock()
		state := job.StateLocked()
		owner := job.Username
		job.RUnlock()

		if myJobs == "true" && owner != rc.id.Username {
			continue
		}
		if whichJobs == "completed" && !store.TerminalStates[state] {
			continue
		}
		if (whichJobs == "" || whichJobs == "not-completed") && store.TerminalStates[state] {
			continue
		}

		job.RLock()
		jg := job.Attrs.CopyFilter(ipp.GroupJob, filter)
		jg.Add(ipp.NewAttribute("job-id", goipp.TagInteger, goipp.Integer(job.ID)))
		jg.Add(ipp.NewAttribute("job-state", goipp.TagEnum, goipp.Integer(store.JobStateCode(state))))
		job.RUnlock()

		rb.AddGroup(jg)
		count++
	}
	return rb, nil
}

func handleSetJobAttributes(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	job := rc.job
	jobGroup := ipp.GroupByTag(rc.msg, goipp.TagJobGroup)
	result := schema.Validate(schema.JobCreationTable, jobGroup, nil, schema.OpSet, nil)
	if !result.OK {
		rb := rc.newResponse(result.Status)
		rb.AddGroup(result.Unsupported)
		return rb, nil
	}

	job.Lock()
	jobGroup.Iterate(func(a ipp.Attribute) bool {
		job.Attrs.Set(a)
		return true
	})
	job.Unlock()
	return rc.newResponse(goipp.StatusOk), nil
}

// transitionJob drives job through event, taking the owning printer's
// write lock first per the locking order §4.2 fixes (Printer
// before Job), and performs the single post-transition hook when the
// job lands in a terminal state.
func transitionJob(ctx context.Context, job *store.Job, event string) error {
	printer := job.Printer
	printer.Lock()
	defer printer.Unlock()

	reached, err := job.Transition(ctx, event)
	if err != nil {
		return err
	}
	if reached {
		printer.RemoveFromActive(job)
	}
	return nil
}

func handleCancelJob(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	job := rc.job
	state := job.State()

	if state == store.JobProcessing {
		job.SetCancelFlag()
		rc.srv.Events.AddEvent(rc.printer, job, "job-state-changed", nil)
		return rc.newResponse(goipp.StatusOk), nil
	}

	if err := transitionJob(ctx, job, "cancel"); err != nil {
		return nil, errNotPossible
	}
	rc.srv.Events.AddEvent(rc.printer, job, "job-completed", nil)
	return rc.newResponse(goipp.StatusOk), nil
}

func handleCancelCurrentJob(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	printer.RLock()
	job := printer.ProcessingJob
	printer.RUnlock()
	if job == nil {
		return nil, errNotPossible
	}
	job.SetCancelFlag()
	return rc.newResponse(goipp.StatusOk), nil
}

func handleCancelJobs(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	printer.Lock()
	jobs := append([]*store.Job(nil), printer.ActiveJobs...)
	printer.Unlock()

	for _, job := range jobs {
		if job.State() == store.JobProcessing {
			job.SetCancelFlag()
			continue
		}
		transitionJob(ctx, job, "cancel")
	}
	return rc.newResponse(goipp.StatusOk), nil
}

func handleCancelMyJobs(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	printer.Lock()
	jobs := append([]*store.Job(nil), printer.ActiveJobs...)
	printer.Unlock()

	for _, job := range jobs {
		job.RLock()
		owner := job.Username
		job.RUnlock()
		state := job.State()
		if owner != rc.id.Username {
			continue
		}
		if state == store.JobProcessing {
			job.SetCancelFlag()
			continue
		}
		transitionJob(ctx, job, "cancel")
	}
	return rc.newResponse(goipp.StatusOk), nil
}

func handleHoldJob(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	if err := transitionJob(ctx, rc.job, "hold"); err != nil {
		return nil, errNotPossible
	}
	return rc.newResponse(goipp.StatusOk), nil
}

func handleReleaseJob(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	if err := transitionJob(ctx, rc.job, "release"); err != nil {
		return nil, errNotPossible
	}
	rc.srv.Scheduler.Wake(rc.printer.ID)
	return rc.newResponse(goipp.StatusOk), nil
}

func handleHoldNewJobs(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	rc.printer.Lock()
	rc.printer.HoldNewJobs = true
	rc.printer.Unlock()
	return rc.newResponse(goipp.StatusOk), nil
}

func handleReleaseHeldNewJobs(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	printer.Lock()
	printer.HoldNewJobs = false
	held := make([]*store.Job, 0)
	for _, j := range printer.ActiveJobs {
		if j.State() == store.JobHeld {
			held = append(held, j)
		}
	}
	printer.Unlock()

	for _, j := range held {
		transitionJob(ctx, j, "release")
	}
	rc.srv.Scheduler.Wake(printer.ID)
	return rc.newResponse(goipp.StatusOk), nil
}

func handleIdentifyPrinter(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	actions, _ := operationAttrList(rc.msg, "identify-actions")
	message, _ := operationAttr(rc.msg, "message")

	printer := rc.printer
	printer.Lock()
	printer.IdentifyActions = actions
	printer.IdentifyMessage = message
	printer.StateReasons.Add("identify-printer-requested")
	printer.Unlock()

	rc.srv.Events.AddEvent(printer, nil, "printer-state-changed", nil)
	return rc.newResponse(goipp.StatusOk), nil
}

func handleAcknowledgeIdentifyPrinter(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	printer.Lock()
	printer.StateReasons.Remove("identify-printer-requested")
	printer.Unlock()
	return rc.newResponse(goipp.StatusOk), nil
}

// handleRestartJob implements Restart-Job/Reprocess-Job: a job in any
// terminal state (completed, canceled or aborted) is requeued as a fresh pending job against the same
// printer, reusing its spooled document.
func handleRestartJob(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	srv := rc.srv
	job := rc.job
	printer := rc.printer

	job.RLock()
	if !job.IsTerminal() {
		job.RUnlock()
		return nil, errNotPossible
	}
	format, filename, username := job.Format, job.Filename, job.Username
	job.RUnlock()

	printer.Lock()
	id := srv.Sys.JobIDs.Next()
	fresh := store.NewJob(id, printer, username)
	fresh.Format, fresh.Filename = format, filename
	printer.Jobs = append(printer.Jobs, fresh)
	printer.ActiveJobs = append(printer.ActiveJobs, fresh)
	printer.SortActiveJobs()
	printer.Unlock()

	return srv.finishCreation(rc, printer, fresh), nil
}

// handleResubmitJob implements Resubmit-Job: like Restart-Job but the
// request may carry replacement job-group attributes for the copy.
func handleResubmitJob(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	srv := rc.srv
	job := rc.job
	printer := rc.printer

	job.RLock()
	format, filename, username := job.Format, job.Filename, job.Username
	job.RUnlock()

	jobGroup := ipp.GroupByTag(rc.msg, goipp.TagJobGroup)

	printer.Lock()
	id := srv.Sys.JobIDs.Next()
	fresh := store.NewJob(id, printer, username)
	fresh.Format, fresh.Filename = format, filename
	jobGroup.Iterate(func(a ipp.Attribute) bool {
		fresh.Attrs.Set(a)
		return true
	})
	printer.Jobs = append(printer.Jobs, fresh)
	printer.ActiveJobs = append(printer.ActiveJobs, fresh)
	printer.SortActiveJobs()
	printer.Unlock()

	return srv.finishCreation(rc, printer, fresh), nil
}

// handlePromoteJob implements Promote-Job: raise a job's priority above
// every other currently-pending job on the same printer.
func handlePromoteJob(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	job := rc.job

	printer.Lock()
	top := 0
	for _, j := range printer.ActiveJobs {
		j.RLock()
		if j.Priority > top {
			top = j.Priority
		}
		j.RUnlock()
	}
	job.Lock()
	job.Priority = top + 1
	job.Unlock()
	printer.SortActiveJobs()
	printer.Unlock()

	rc.srv.Scheduler.Wake(printer.ID)
	return rc.newResponse(goipp.StatusOk), nil
}

// handleScheduleJobAfter implements Schedule-Job-After: place the
// target job immediately below another job named by the target-job-id
// operation attribute in priority order.
func handleScheduleJobAfter(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	job := rc.job
	afterID, ok := operationInt(rc.msg, "target-job-id")
	if !ok {
		return nil, errBadRequest
	}

	printer.Lock()
	var afterPriority int
	found := false
	for _, j := range printer.ActiveJobs {
		j.RLock()
		if j.ID == afterID {
			afterPriority = j.Priority
			found = true
		}
		j.RUnlock()
	}
	if !found {
		printer.Unlock()
		return nil, errNotFound
	}
	job.Lock()
	job.Priority = afterPriority - 1
	job.Unlock()
	printer.SortActiveJobs()
	printer.Unlock()

	return rc.newResponse(goipp.StatusOk), nil
}

// handleAcknowledgeJob implements Acknowledge-Job/Acknowledge-Document:
// a proxy confirms it has durably recorded a job/document update, per
// §4.9. No server-side state changes beyond the acknowledgment
// itself, which the proxy tracks; this simply validates the target.
func handleAcknowledgeJob(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	return rc.newResponse(goipp.StatusOk), nil
}

// operationAttrList returns every value of a 1setOf operation
// attribute as strings.
func operationAttrList(m *goipp.Message, name string) ([]string, bool) {
	for _, a := range *m.Operation() {
		if a.Name != name {
			continue
		}
		out := make([]string, 0, len(a.Values))
		for _, v := range a.Values {
			out = append(out, v.V.String())
		}
		return out, true
	}
	return nil, false
}
