// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// System-wide and all-printers operations.3/§4.4.

package server

import (
	"context"

	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/go-ippd/schema"
	"github.com/OpenPrinting/go-ippd/store"
	"github.com/OpenPrinting/goipp"
)

func eachPrinter(sys *store.System, fn func(*store.Printer)) {
	sys.Printers.Each(func(_ int, p *store.Printer) bool {
		fn(p)
		return true
	})
}

func handleGetSystemAttributes(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	requested, _ := operationAttrList(rc.msg, "requested-attributes")
	filter := ipp.RequestedAttributesFilter(requested)

	sys := rc.srv.Sys
	sys.RLock()
	sg := sys.Attrs.CopyFilter(ipp.GroupSystem, filter)
	sg.Add(ipp.NewAttribute("system-name", goipp.TagName, goipp.String(sys.Name)))
	sg.Add(ipp.NewAttribute("system-default-printer-id", goipp.TagInteger, goipp.Integer(sys.DefaultPrinterID)))
	sys.RUnlock()

	rb := rc.newResponse(goipp.StatusOk)
	rb.AddGroup(sg)
	return rb, nil
}

func handleSetSystemAttributes(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	systemGroup := ipp.GroupByTag(rc.msg, goipp.TagSystemGroup)
	result := schema.Validate(schema.SystemSettableTable, systemGroup, nil, schema.OpSet, nil)
	if !result.OK {
		rb := rc.newResponse(result.Status)
		rb.AddGroup(result.Unsupported)
		return rb, nil
	}

	sys := rc.srv.Sys
	sys.Lock()
	systemGroup.Iterate(func(a ipp.Attribute) bool {
		switch a.Name {
		case "system-name":
			if len(a.Values) > 0 {
				sys.Name = a.Values[0].V.String()
			}
		case "system-default-printer-id":
			if len(a.Values) > 0 {
				if n, ok := a.Values[0].V.(goipp.Integer); ok {
					sys.DefaultPrinterID = int(n)
				}
			}
		default:
			sys.Attrs.Set(a)
		}
		return true
	})
	sys.Unlock()

	return rc.newResponse(goipp.StatusOk), nil
}

func handleDisableAllPrinters(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	eachPrinter(rc.srv.Sys, func(p *store.Printer) {
		p.Lock()
		p.IsAccepting = false
		p.Unlock()
	})
	return rc.newResponse(goipp.StatusOk), nil
}

func handleEnableAllPrinters(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	eachPrinter(rc.srv.Sys, func(p *store.Printer) {
		p.Lock()
		p.IsAccepting = true
		p.Unlock()
	})
	return rc.newResponse(goipp.StatusOk), nil
}

func handlePauseAllPrinters(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	eachPrinter(rc.srv.Sys, func(p *store.Printer) {
		p.Lock()
		p.Stop(ctx)
		p.Unlock()
	})
	return rc.newResponse(goipp.StatusOk), nil
}

func handleResumeAllPrinters(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	eachPrinter(rc.srv.Sys, func(p *store.Printer) {
		p.Lock()
		p.Resume(ctx)
		p.Unlock()
		rc.srv.Scheduler.Wake(p.ID)
	})
	return rc.newResponse(goipp.StatusOk), nil
}

func handleShutdownAllPrinters(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	eachPrinter(rc.srv.Sys, func(p *store.Printer) {
		p.Lock()
		p.IsShutdown = true
		p.IsAccepting = false
		p.Unlock()
	})
	return rc.newResponse(goipp.StatusOk), nil
}

func handleStartupAllPrinters(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	eachPrinter(rc.srv.Sys, func(p *store.Printer) {
		p.Lock()
		p.IsShutdown = false
		p.IsAccepting = true
		p.Unlock()
		rc.srv.Scheduler.Wake(p.ID)
	})
	return rc.newResponse(goipp.StatusOk), nil
}

func handleRestartSystem(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	eachPrinter(rc.srv.Sys, func(p *store.Printer) {
		p.Lock()
		if p.StateLocked() == store.PrinterStopped {
			p.Resume(ctx)
		}
		p.IsShutdown = false
		p.Unlock()
		rc.srv.Scheduler.Wake(p.ID)
	})
	return rc.newResponse(goipp.StatusOk), nil
}
