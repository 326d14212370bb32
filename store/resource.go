// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// The Resource object and its lifecycle.8.

package store

import (
	"context"
	"os"
	"sync"

	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/looplab/fsm"
)

// Resource states.
const (
	ResourcePending   = "pending"
	ResourceAvailable = "available"
	ResourceInstalled = "installed"
	ResourceCanceled  = "canceled"
	ResourceAborted   = "aborted"
)

// Resource type keywords.8.
const (
	ResourceTypeStaticICCProfile = "static-icc-profile"
	ResourceTypeStaticStrings    = "static-strings"
	ResourceTypeTemplatePrinter  = "template-printer"
	ResourceTypeTemplateJob      = "template-job"
)

// IsTemplate reports whether resType names a template resource, which
// is applied to Create-Printer/job-creation rather than allocated.
func IsTemplate(resType string) bool {
	return resType == ResourceTypeTemplatePrinter || resType == ResourceTypeTemplateJob
}

// Resource is an uploaded resource object: an ICC profile, a strings
// file, or a template attribute set.
type Resource struct {
	mu sync.RWMutex

	ID   int
	Type string

	fsm *fsm.FSM

	Format   string
	Filename string
	file     *os.File

	Use    int
	cancel bool

	Attrs *ipp.AttributeSet
}

// NewResource creates a Resource in the pending state.
func NewResource(id int, resType string) *Resource {
	r := &Resource{
		ID:    id,
		Type:  resType,
		Attrs: ipp.NewAttributeSet(ipp.GroupResource),
	}
	r.fsm = fsm.NewFSM(
		ResourcePending,
		fsm.Events{
			{Name: "data-received", Src: []string{ResourcePending}, Dst: ResourceAvailable},
			{Name: "install", Src: []string{ResourceAvailable}, Dst: ResourceInstalled},
			{Name: "cancel", Src: []string{ResourcePending, ResourceAvailable, ResourceInstalled}, Dst: ResourceCanceled},
			{Name: "abort", Src: []string{ResourcePending, ResourceAvailable}, Dst: ResourceAborted},
		},
		fsm.Callbacks{},
	)
	return r
}

// Lock/Unlock/RLock/RUnlock expose the resource's reader-writer lock.
func (r *Resource) Lock()    { r.mu.Lock() }
func (r *Resource) Unlock()  { r.mu.Unlock() }
func (r *Resource) RLock()   { r.mu.RLock() }
func (r *Resource) RUnlock() { r.mu.RUnlock() }

// State returns the resource's current state keyword.
func (r *Resource) State() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fsm.Current()
}

// StateLocked returns the resource's current state keyword. The
// caller must already hold r's lock (read or write); unlike State, it
// does not take the lock itself.
func (r *Resource) StateLocked() string {
	return r.fsm.Current()
}

// Transition drives the resource's FSM. Caller must hold the
// resource's write lock.
func (r *Resource) Transition(ctx context.Context, event string) error {
	return r.fsm.Event(ctx, event)
}

// RequestCancel sets the deferred-cancel flag:
// if Use > 0 the actual state transition to canceled is deferred until
// use drops to zero. Caller must hold the resource's write lock.
func (r *Resource) RequestCancel(ctx context.Context) error {
	if r.Use > 0 {
		r.cancel = true
		return nil
	}
	return r.Transition(ctx, "cancel")
}

// Release decrements Use and, if a deferred cancel is pending and use
// has reached zero, completes the cancellation. Caller must hold the
// resource's write lock.
func (r *Resource) Release(ctx context.Context) error {
	if r.Use > 0 {
		r.Use--
	}
	if r.cancel && r.Use == 0 {
		return r.Transition(ctx, "cancel")
	}
	return nil
}

// Acquire increments Use, recording that another printer now
// references this installed resource. Caller must hold the resource's
// write lock.
func (r *Resource) Acquire() {
	r.Use++
}
