// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Output device (proxy) registration and the pull-mode fetch loop, per
// §4.9: a registered device periodically calls Fetch-Job to
// claim a job destined for it, Fetch-Document to retrieve the spooled
// bytes, and Update-Job-Status/Update-Active-Jobs to report progress.

package server

import (
	"context"
	"os"

	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/go-ippd/store"
	"github.com/OpenPrinting/goipp"
	"github.com/google/uuid"
)

// resolveDevice finds the calling proxy's Device on the target printer
// by the output-device-uuid operation attribute.
func resolveDevice(rc *reqContext) (*store.Device, *ippError) {
	if rc.printer == nil {
		return nil, errBadRequest
	}
	devUUID, ok := operationAttr(rc.msg, "output-device-uuid")
	if !ok {
		return nil, errBadRequest
	}
	rc.printer.RLock()
	dev, found := rc.printer.Devices[devUUID]
	rc.printer.RUnlock()
	if !found {
		return nil, errNotFound
	}
	return dev, nil
}

// devicesPerPrinterMax bounds how many output devices a single printer
// will accept before it no longer counts as having "capacity" for the
// proxy-group search step of Register-Output-Device.
const devicesPerPrinterMax = 16

// findRegisteredDevice scans every printer for one whose device list
// already contains devUUID, the reuse case of Register-Output-Device.
func findRegisteredDevice(sys *store.System, devUUID string) (*store.Printer, *store.Device) {
	var printer *store.Printer
	var dev *store.Device
	sys.Printers.Each(func(_ int, p *store.Printer) bool {
		p.RLock()
		d, ok := p.Devices[devUUID]
		p.RUnlock()
		if ok {
			printer, dev = p, d
			return false
		}
		return true
	})
	return printer, dev
}

// findPrinterWithCapacity picks any printer in proxyGroup that has not
// yet reached devicesPerPrinterMax registered devices.
func findPrinterWithCapacity(sys *store.System, proxyGroup string) *store.Printer {
	var found *store.Printer
	sys.Printers.Each(func(_ int, p *store.Printer) bool {
		p.RLock()
		match := p.ProxyGroup == proxyGroup && len(p.Devices) < devicesPerPrinterMax
		p.RUnlock()
		if match {
			found = p
			return false
		}
		return true
	})
	return found
}

// uuidTail returns the last dash-separated segment of a UUID string,
// used to name the printer Register-Output-Device creates when no
// existing printer can take the device (§4.9).
func uuidTail(devUUID string) string {
	parsed, err := uuid.Parse(devUUID)
	if err != nil {
		return devUUID
	}
	s := parsed.String()
	if i := len(s) - 12; i > 0 {
		return s[i:]
	}
	return s
}

// registerDeviceOn adds devUUID to printer's device list, allocating a
// new Device if one doesn't already exist there.
func registerDeviceOn(sys *store.System, printer *store.Printer, devUUID string) *store.Device {
	printer.Lock()
	dev, found := printer.Devices[devUUID]
	if !found {
		id := sys.DeviceIDs.Next()
		dev = store.NewDevice(id, devUUID, printer)
		printer.Devices[devUUID] = dev
		sys.Devices.Put(id, dev)
	}
	printer.Unlock()
	return dev
}

// handleRegisterOutputDevice implements §4.9's three-way placement
// algorithm: reuse a printer that already has this device registered,
// else place it on any printer in its proxy-group with spare capacity,
// else spin up a fresh printer at /ipp/print/<uuid-tail> for it.
func handleRegisterOutputDevice(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	devUUID, ok := operationAttr(rc.msg, "output-device-uuid")
	if !ok {
		return nil, errBadRequest
	}

	sys := rc.srv.Sys
	printer, dev := findRegisteredDevice(sys, devUUID)

	if printer == nil {
		proxyGroup := ""
		if rc.printer != nil {
			rc.printer.RLock()
			proxyGroup = rc.printer.ProxyGroup
			rc.printer.RUnlock()
		}
		printer = findPrinterWithCapacity(sys, proxyGroup)
	}

	if printer == nil {
		proxyGroup := ""
		if rc.printer != nil {
			rc.printer.RLock()
			proxyGroup = rc.printer.ProxyGroup
			rc.printer.RUnlock()
		}
		printer = sys.CreatePrinter(uuidTail(devUUID))
		printer.Lock()
		printer.ProxyGroup = proxyGroup
		printer.Unlock()
		rc.srv.Scheduler.Wake(printer.ID)
	}

	if dev == nil {
		dev = registerDeviceOn(sys, printer, devUUID)
	}

	rb := rc.newResponse(goipp.StatusOk)
	g := ipp.NewAttributeSet(ipp.GroupPrinter)
	g.Add(ipp.NewAttribute("output-device-uuid", goipp.TagURI, goipp.String(dev.UUID)))
	g.Add(ipp.NewAttribute("printer-uri-supported", goipp.TagURI, goipp.String(printer.Resource)))
	rb.AddGroup(g)
	return rb, nil
}

func handleDeregisterOutputDevice(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	devUUID, ok := operationAttr(rc.msg, "output-device-uuid")
	if !ok {
		return nil, errBadRequest
	}

	var found *store.Device
	rc.srv.Sys.Printers.Each(func(_ int, p *store.Printer) bool {
		p.Lock()
		if dev, ok := p.Devices[devUUID]; ok {
			found = dev
			delete(p.Devices, devUUID)
		}
		p.Unlock()
		return found == nil
	})
	if found == nil {
		return nil, errNotFound
	}
	rc.srv.Sys.Devices.Delete(found.ID)
	return rc.newResponse(goipp.StatusOk), nil
}

func handleGetOutputDeviceAttributes(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	dev, err := resolveDevice(rc)
	if err != nil {
		return nil, err
	}
	dev.RLock()
	g := dev.Attrs.Copy(ipp.GroupPrinter)
	g.Add(ipp.NewAttribute("output-device-uuid", goipp.TagURI, goipp.String(dev.UUID)))
	dev.RUnlock()

	rb := rc.newResponse(goipp.StatusOk)
	rb.AddGroup(g)
	return rb, nil
}

func handleUpdateOutputDeviceAttributes(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	dev, err := resolveDevice(rc)
	if err != nil {
		return nil, err
	}
	updates := ipp.GroupByTag(rc.msg, goipp.TagPrinterGroup)

	dev.Lock()
	dev.MergeAttrs(updates.All())
	dev.Unlock()

	return rc.newResponse(goipp.StatusOk), nil
}

// handleUpdateActiveJobs lets a proxy report the subset of a printer's
// jobs it is currently willing to accept/continue processing, via
// parallel job-ids/output-device-job-states 1setOf operation
// attributes. A job reported as completed, aborted or canceled is
// transitioned accordingly; anything else is just recorded on the job for
// Get-Jobs/Get-Job-Attributes to surface.
func handleUpdateActiveJobs(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	ids, ok := operationAttrListInts(rc.msg, "job-ids")
	if !ok {
		return rc.newResponse(goipp.StatusOk), nil
	}
	states, _ := operationAttrListInts(rc.msg, "output-device-job-states")

	for i, id := range ids {
		job := findJobByID(rc.printer, id)
		if job == nil {
			continue
		}
		state := 0
		if i < len(states) {
			state = states[i]
		}
		applyDeviceJobState(ctx, job, state)
	}
	return rc.newResponse(goipp.StatusOk), nil
}

// findJobByID looks up a job by id among the jobs ever submitted to p.
func findJobByID(p *store.Printer, id int) *store.Job {
	if p == nil {
		return nil
	}
	p.RLock()
	defer p.RUnlock()
	for _, j := range p.Jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// applyDeviceJobState folds a device-reported job-state enum (RFC 8011
// §5.3.7 numbering, as used elsewhere in this package) into the job,
// transitioning it to a terminal state when the device says the job is
// done, aborted or canceled.
func applyDeviceJobState(ctx context.Context, job *store.Job, state int) {
	job.Lock()
	job.DevState = state
	job.Unlock()

	switch state {
	case store.JobStateCode(store.JobCompleted):
		transitionJob(ctx, job, "complete")
	case store.JobStateCode(store.JobAborted):
		transitionJob(ctx, job, "abort")
	case store.JobStateCode(store.JobCanceled):
		transitionJob(ctx, job, "cancel")
	}
}

// handleUpdateJobStatus implements Update-Job-Status and
// Update-Document-Status: the proxy reports detailed progress for one
// job it has fetched (state, reasons, message, impressions completed).
func handleUpdateJobStatus(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	if rc.job == nil {
		return nil, errBadRequest
	}
	job := rc.job

	job.Lock()
	if reason, ok := operationAttr(rc.msg, "output-device-job-state-message"); ok {
		job.DevStateMessage = reason
	}
	if reasons, ok := operationAttrList(rc.msg, "output-device-job-state-reasons"); ok {
		job.DevStateReasons.Replace(reasons...)
	}
	if n, ok := operationInt(rc.msg, "impressions-completed"); ok {
		job.ImpressionsCompleted = n
	}
	job.Unlock()

	if state, ok := operationInt(rc.msg, "output-device-job-state"); ok {
		applyDeviceJobState(ctx, job, state)
	}

	return rc.newResponse(goipp.StatusOk), nil
}

// handleFetchJob lets a registered device claim the next job destined
// for it: the highest-priority job already moved to processing by the
// local scheduler that no device has claimed yet. Claiming only
// records which device owns the job; the scheduler continues to own
// the job's own state transitions.
func handleFetchJob(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	dev, err := resolveDevice(rc)
	if err != nil {
		return nil, err
	}

	job := claimNextJobForDevice(rc.printer, dev)
	rb := rc.newResponse(goipp.StatusOk)
	if job == nil {
		return rb, nil
	}

	job.RLock()
	g := job.Attrs.Copy(ipp.GroupJob)
	g.Add(ipp.NewAttribute("job-id", goipp.TagInteger, goipp.Integer(job.ID)))
	g.Add(ipp.NewAttribute("document-format", goipp.TagMimeType, goipp.String(job.Format)))
	job.RUnlock()
	rb.AddGroup(g)
	return rb, nil
}

func claimNextJobForDevice(p *store.Printer, dev *store.Device) *store.Job {
	if p == nil {
		return nil
	}
	p.RLock()
	jobs := append([]*store.Job(nil), p.ActiveJobs...)
	p.RUnlock()

	devUUID, parseErr := uuid.Parse(dev.UUID)
	if parseErr != nil {
		devUUID = uuid.Nil
	}

	for _, j := range jobs {
		j.Lock()
		claim := j.StateLocked() == store.JobProcessing && !j.HasDev
		if claim {
			j.HasDev = true
			j.DevUUID = devUUID
		}
		j.Unlock()
		if claim {
			return j
		}
	}
	return nil
}

// handleFetchDocument streams the spooled document bytes for a fetched
// job back to the calling proxy, appended to the IPP response after
// its attribute groups.
func handleFetchDocument(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	if rc.job == nil {
		return nil, errBadRequest
	}
	job := rc.job

	job.RLock()
	path, format := job.Filename, job.Format
	job.RUnlock()
	if path == "" {
		return nil, errNotFound
	}

	f, openErr := os.Open(path)
	if openErr != nil {
		return nil, errNotFound
	}

	rb := rc.newResponse(goipp.StatusOk)
	g := ipp.NewAttributeSet(ipp.GroupJob)
	g.Add(ipp.NewAttribute("document-format", goipp.TagMimeType, goipp.String(format)))
	rb.AddGroup(g)

	rc.outBody = f
	return rb, nil
}
