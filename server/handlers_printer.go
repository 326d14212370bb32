// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Printer query, configuration and lifecycle operations.3.

package server

import (
	"context"
	"time"

	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/go-ippd/schema"
	"github.com/OpenPrinting/go-ippd/store"
	"github.com/OpenPrinting/goipp"
)

// printerStateCode maps a printer-state keyword to its wire enum
// value (RFC 8011 §5.4.12).
func printerStateCode(state string) int {
	switch state {
	case store.PrinterIdle:
		return 3
	case store.PrinterProcessing:
		return 4
	case store.PrinterStopped:
		return 5
	}
	return 0
}

// printerAttr is a small helper for pulling a single string-valued
// attribute out of a decoded printer-attributes group.
func printerAttr(g *ipp.AttributeSet, name string) (string, bool) {
	a, ok := g.Find(name)
	if !ok || len(a.Values) == 0 {
		return "", false
	}
	return a.Values[0].V.String(), true
}

// printerAttrGroup builds the full printer-group response for p,
// filtered by requested-attributes.
func printerAttrGroup(p *store.Printer, filter func(ipp.Attribute) bool) *ipp.AttributeSet {
	p.RLock()
	defer p.RUnlock()

	pg := p.PInfo.CopyFilter(ipp.GroupPrinter, filter)
	pg.Add(ipp.NewAttribute("printer-uuid", goipp.TagURI, goipp.String("urn:uuid:"+p.UUID.String())))
	pg.Add(ipp.NewAttribute("printer-state", goipp.TagEnum, goipp.Integer(printerStateCode(p.StateLocked()))))
	pg.Add(ipp.NewAttribute("printer-is-accepting-jobs", goipp.TagBoolean, goipp.Boolean(p.IsAccepting)))

	reasons := ipp.Attribute{Name: "printer-state-reasons"}
	for _, r := range p.StateReasons.Keywords() {
		reasons.Values.Add(goipp.TagKeyword, goipp.String(r))
	}
	pg.Add(reasons)
	return pg
}

func handleGetPrinterAttributes(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	requested, _ := operationAttrList(rc.msg, "requested-attributes")
	filter := ipp.RequestedAttributesFilter(requested)

	rb := rc.newResponse(goipp.StatusOk)
	rb.AddGroup(printerAttrGroup(rc.printer, filter))
	return rb, nil
}

func handleSetPrinterAttributes(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printerGroup := ipp.GroupByTag(rc.msg, goipp.TagPrinterGroup)
	result := schema.Validate(schema.PrinterCreationTable, printerGroup, nil, schema.OpSet, nil)
	if !result.OK {
		rb := rc.newResponse(result.Status)
		rb.AddGroup(result.Unsupported)
		return rb, nil
	}

	printer := rc.printer
	printer.Lock()
	printerGroup.Iterate(func(a ipp.Attribute) bool {
		printer.PInfo.Set(a)
		return true
	})
	printer.ConfigTime = time.Now()
	printer.Unlock()

	return rc.newResponse(goipp.StatusOk), nil
}

func handleCreatePrinter(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printerGroup := ipp.GroupByTag(rc.msg, goipp.TagPrinterGroup)
	result := schema.Validate(schema.PrinterCreationTable, printerGroup, nil, schema.OpCreate, nil)
	if !result.OK {
		rb := rc.newResponse(result.Status)
		rb.AddGroup(result.Unsupported)
		return rb, nil
	}

	// printer-name is a printer-attributes-group field (schema.PrinterCreationTable),
	// not create-op-exempt, so it is read from printerGroup rather than the
	// operation group; printer-service-type is an operation attribute naming the
	// service kind (print/print3d/faxout), not the printer's identity.
	name, ok := printerAttr(printerGroup, "printer-name")
	if !ok || name == "" {
		return nil, errBadRequest
	}
	if _, exists := rc.srv.Sys.FindPrinterByName(name); exists {
		return nil, ippErrorf(goipp.StatusErrorNotPossible, "printer already exists")
	}

	printer := rc.srv.Sys.CreatePrinter(name)
	printer.Lock()
	printerGroup.Iterate(func(a ipp.Attribute) bool {
		printer.PInfo.Set(a)
		return true
	})
	printer.Unlock()

	rc.srv.Scheduler.Wake(printer.ID)

	rb := rc.newResponse(goipp.StatusOk)
	rb.AddGroup(printerAttrGroup(printer, func(ipp.Attribute) bool { return true }))
	return rb, nil
}

func handleDeletePrinter(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer

	printer.Lock()
	// RemoveFromActive compacts ActiveJobs in place on every terminal
	// transition, so this loop must iterate over a snapshot rather than
	// the live slice it is mutating underneath us.
	pending := append([]*store.Job(nil), printer.ActiveJobs...)
	for _, j := range pending {
		transitionJobLocked(ctx, printer, j, "abort")
	}
	printer.IsShutdown = true
	printer.Unlock()

	rc.srv.Sys.Printers.Delete(printer.ID)
	return rc.newResponse(goipp.StatusOk), nil
}

// transitionJobLocked is transitionJob's variant for callers that
// already hold the printer's write lock.
func transitionJobLocked(ctx context.Context, printer *store.Printer, job *store.Job, event string) {
	reached, err := job.Transition(ctx, event)
	if err == nil && reached {
		printer.RemoveFromActive(job)
	}
}

func handleGetPrinters(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	requested, _ := operationAttrList(rc.msg, "requested-attributes")
	filter := ipp.RequestedAttributesFilter(requested)

	rb := rc.newResponse(goipp.StatusOk)
	rc.srv.Sys.Printers.Each(func(_ int, p *store.Printer) bool {
		rb.AddGroup(printerAttrGroup(p, filter))
		return true
	})
	return rb, nil
}

func handlePausePrinter(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	printer.Lock()
	err := printer.Stop(ctx)
	printer.Unlock()
	if err != nil {
		return nil, errNotPossible
	}
	rc.srv.Events.AddEvent(printer, nil, "printer-state-changed", nil)
	return rc.newResponse(goipp.StatusOk), nil
}

func handleResumePrinter(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	printer.Lock()
	err := printer.Resume(ctx)
	printer.Unlock()
	if err != nil {
		return nil, errNotPossible
	}
	rc.srv.Events.AddEvent(printer, nil, "printer-state-changed", nil)
	rc.srv.Scheduler.Wake(printer.ID)
	return rc.newResponse(goipp.StatusOk), nil
}

func handleEnablePrinter(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	printer.Lock()
	printer.IsAccepting = true
	printer.Unlock()
	return rc.newResponse(goipp.StatusOk), nil
}

func handleDisablePrinter(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	printer.Lock()
	printer.IsAccepting = false
	printer.Unlock()
	return rc.newResponse(goipp.StatusOk), nil
}

func handleRestartPrinter(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	printer.Lock()
	if printer.StateLocked() == store.PrinterStopped {
		printer.Resume(ctx)
	}
	printer.Unlock()
	rc.srv.Scheduler.Wake(printer.ID)
	return rc.newResponse(goipp.StatusOk), nil
}

func handleShutdownPrinter(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	printer.Lock()
	printer.IsShutdown = true
	printer.IsAccepting = false
	printer.Unlock()
	rc.srv.Events.AddEvent(printer, nil, "printer-state-changed", nil)
	return rc.newResponse(goipp.StatusOk), nil
}

func handleStartupPrinter(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	printer := rc.printer
	printer.Lock()
	printer.IsShutdown = false
	printer.IsAccepting = true
	printer.Unlock()
	rc.srv.Scheduler.Wake(printer.ID)
	return rc.newResponse(goipp.StatusOk), nil
}

// serverResourcesMax bounds how many resources a single printer may
// have allocated at once, per spec.md §4.8 ("at most
// SERVER_RESOURCES_MAX per printer").
const serverResourcesMax = 100

func handleAllocatePrinterResources(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	ids, _ := operationAttrList(rc.msg, "resource-ids")
	printer := rc.printer

	printer.Lock()
	defer printer.Unlock()
	for _, idStr := range ids {
		id, ok := parsePositiveInt(idStr)
		if !ok {
			continue
		}
		if printer.Resources[id] {
			continue
		}
		if len(printer.Resources) >= serverResourcesMax {
			return nil, ippErrorf(goipp.StatusErrorNotPossible, "printer has reached its maximum allocated resources")
		}
		res, found := rc.srv.Sys.Resources.Get(id)
		if !found {
			continue
		}
		res.Lock()
		installed := res.StateLocked() == store.ResourceInstalled && !store.IsTemplate(res.Type)
		if installed {
			res.Acquire()
		}
		res.Unlock()
		if !installed {
			return nil, ippErrorf(goipp.StatusErrorNotPossible, "resource is not an installed, non-template resource")
		}
		printer.Resources[id] = true
	}
	return rc.newResponse(goipp.StatusOk), nil
}

func handleDeallocatePrinterResources(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	ids, _ := operationAttrList(rc.msg, "resource-ids")
	printer := rc.printer

	printer.Lock()
	defer printer.Unlock()
	for _, idStr := range ids {
		id, ok := parsePositiveInt(idStr)
		if !ok {
			continue
		}
		res, found := rc.srv.Sys.Resources.Get(id)
		if !found {
			continue
		}
		res.Lock()
		res.Release(ctx)
		res.Unlock()
		delete(printer.Resources, id)
	}
	return rc.newResponse(goipp.StatusOk), nil
}

func parsePositiveInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
