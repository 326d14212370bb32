// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Resource object lifecycle.8.

package server

import (
	"context"

	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/go-ippd/jobengine"
	"github.com/OpenPrinting/go-ippd/store"
	"github.com/OpenPrinting/goipp"
)

func resourceStateCode(state string) int {
	switch state {
	case store.ResourcePending:
		return 3
	case store.ResourceAvailable:
		return 4
	case store.ResourceInstalled:
		return 5
	case store.ResourceCanceled:
		return 6
	case store.ResourceAborted:
		return 7
	}
	return 0
}

func resolveResource(rc *reqContext) (*store.Resource, *ippError) {
	id, ok := operationInt(rc.msg, "resource-id")
	if !ok {
		return nil, errBadRequest
	}
	res, found := rc.srv.Sys.Resources.Get(id)
	if !found {
		return nil, errNotFound
	}
	return res, nil
}

func resourceAttrGroup(res *store.Resource) *ipp.AttributeSet {
	res.RLock()
	defer res.RUnlock()

	g := res.Attrs.Copy(ipp.GroupResource)
	g.Add(ipp.NewAttribute("resource-id", goipp.TagInteger, goipp.Integer(res.ID)))
	g.Add(ipp.NewAttribute("resource-type", goipp.TagKeyword, goipp.String(res.Type)))
	g.Add(ipp.NewAttribute("resource-state", goipp.TagEnum, goipp.Integer(resourceStateCode(res.StateLocked()))))
	return g
}

func handleCreateResource(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	resType, ok := operationAttr(rc.msg, "resource-type")
	if !ok {
		return nil, errBadRequest
	}

	id := rc.srv.Sys.ResourceIDs.Next()
	res := store.NewResource(id, resType)
	rc.srv.Sys.Resources.Put(id, res)

	rb := rc.newResponse(goipp.StatusOk)
	rb.AddGroup(resourceAttrGroup(res))
	return rb, nil
}

func handleSendResourceData(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	res, err := resolveResource(rc)
	if err != nil {
		return nil, err
	}

	res.RLock()
	resType := res.Type
	res.RUnlock()

	path := jobengine.ResourceSpoolPath(rc.srv.SpoolDir, res.ID, resType)
	format, _, ioErr := jobengine.ReceiveDocument(path, resType, rc.body)
	if ioErr != nil {
		return nil, ippErrorf(goipp.StatusErrorDocumentAccess, "failed to spool resource")
	}

	res.Lock()
	res.Format, res.Filename = format, path
	transErr := res.Transition(ctx, "data-received")
	res.Unlock()
	if transErr != nil {
		return nil, errNotPossible
	}

	return rc.newResponse(goipp.StatusOk), nil
}

func handleInstallResource(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	res, err := resolveResource(rc)
	if err != nil {
		return nil, err
	}
	res.Lock()
	transErr := res.Transition(ctx, "install")
	res.Unlock()
	if transErr != nil {
		return nil, errNotPossible
	}
	return rc.newResponse(goipp.StatusOk), nil
}

func handleGetResourceAttributes(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	res, err := resolveResource(rc)
	if err != nil {
		return nil, err
	}
	rb := rc.newResponse(goipp.StatusOk)
	rb.AddGroup(resourceAttrGroup(res))
	return rb, nil
}

func handleGetResources(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	rb := rc.newResponse(goipp.StatusOk)
	rc.srv.Sys.Resources.Each(func(_ int, res *store.Resource) bool {
		rb.AddGroup(resourceAttrGroup(res))
		return true
	})
	return rb, nil
}

func handleSetResourceAttributes(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	res, err := resolveResource(rc)
	if err != nil {
		return nil, err
	}
	resGroup := ipp.GroupByTag(rc.msg, goipp.TagResourceGroup)
	res.Lock()
	resGroup.Iterate(func(a ipp.Attribute) bool {
		res.Attrs.Set(a)
		return true
	})
	res.Unlock()
	return rc.newResponse(goipp.StatusOk), nil
}

func handleCancelResource(ctx context.Context, rc *reqContext) (*ipp.ResponseBuilder, *ippError) {
	res, err := resolveResource(rc)
	if err != nil {
		return nil, err
	}
	res.Lock()
	cancelErr := res.RequestCancel(ctx)
	res.Unlock()
	if cancelErr != nil {
		return nil, errNotPossible
	}
	return rc.newResponse(goipp.StatusOk), nil
}
