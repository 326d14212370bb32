// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// The System object: process-wide registries and the outermost lock,
//.2.

package store

import (
	"sync"
	"time"

	"github.com/OpenPrinting/go-ippd/ipp"
)

// System is the top-level container for every registry in the
// process. Its own lock is the outermost lock in the locking order
// (§4.2): registry -> object, System outermost.
type System struct {
	mu sync.RWMutex

	Printers      *Registry[Printer]
	Subscriptions *Registry[Subscription]
	Resources     *Registry[Resource]
	Devices       *Registry[Device]

	PrinterIDs      *IDAllocator
	JobIDs          *IDAllocator
	SubscriptionIDs *IDAllocator
	ResourceIDs     *IDAllocator
	DeviceIDs       *IDAllocator

	DefaultPrinterID int
	Name             string
	Location         string
	Attrs            *ipp.AttributeSet

	StartTime time.Time
}

// NewSystem creates an empty System.
func NewSystem() *System {
	return &System{
		Printers:        NewRegistry[Printer](),
		Subscriptions:   NewRegistry[Subscription](),
		Resources:       NewRegistry[Resource](),
		Devices:         NewRegistry[Device](),
		PrinterIDs:      NewIDAllocator(1),
		JobIDs:          NewIDAllocator(1),
		SubscriptionIDs: NewIDAllocator(1),
		ResourceIDs:     NewIDAllocator(1),
		DeviceIDs:       NewIDAllocator(1),
		Attrs:           ipp.NewAttributeSet(ipp.GroupSystem),
		StartTime:       time.Now(),
	}
}

// Lock/Unlock/RLock/RUnlock expose the System's own lock, used to
// guard process-wide settings (default printer, system-name, ...)
// rather than any single registry.
func (s *System) Lock()    { s.mu.Lock() }
func (s *System) Unlock()  { s.mu.Unlock() }
func (s *System) RLock()   { s.mu.RLock() }
func (s *System) RUnlock() { s.mu.RUnlock() }

// CreatePrinter allocates an id, builds a Printer, and registers it.
func (s *System) CreatePrinter(name string) *Printer {
	id := s.PrinterIDs.Next()
	p := NewPrinter(id, name)
	s.Printers.Put(id, p)
	return p
}

// FindPrinterByName scans the printer registry for a printer whose
// Name equals name. Target URIs resolve by
// name, not numeric id.
func (s *System) FindPrinterByName(name string) (*Printer, bool) {
	var found *Printer
	s.Printers.Each(func(_ int, p *Printer) bool {
		p.RLock()
		match := p.Name == name
		p.RUnlock()
		if match {
			found = p
			return false
		}
		return true
	})
	return found, found != nil
}
