// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// The output Device (remote proxy) object.9.

package store

import (
	"sync"

	"github.com/OpenPrinting/go-ippd/ipp"
)

// Device represents a registered output device (a remote printer
// proxy/agent).
type Device struct {
	mu sync.RWMutex

	ID      int
	UUID    string
	Printer *Printer

	Attrs *ipp.AttributeSet // capability snapshot supplied by the proxy
}

// NewDevice creates a Device attached to p.
func NewDevice(id int, uuidStr string, p *Printer) *Device {
	return &Device{
		ID:      id,
		UUID:    uuidStr,
		Printer: p,
		Attrs:   ipp.NewAttributeSet(ipp.GroupPrinter),
	}
}

// Lock/Unlock/RLock/RUnlock expose the device's lock.
func (d *Device) Lock()    { d.mu.Lock() }
func (d *Device) Unlock()  { d.mu.Unlock() }
func (d *Device) RLock()   { d.mu.RLock() }
func (d *Device) RUnlock() { d.mu.RUnlock() }

// MergeAttrs merges the proxy's claimed capabilities into Attrs,
// supporting both full attribute replacement (name not ending in
// ".N"/".N-M") and the sparse indexed form described in §4.9.
// Caller must hold the device's write lock.
func (d *Device) MergeAttrs(updates []ipp.Attribute) {
	for _, u := range updates {
		name, idx, isSparse := parseSparseName(u.Name)
		if !isSparse {
			d.Attrs.Set(u)
			continue
		}
		d.mergeSparse(name, idx, u)
	}
}

// sparseIndex is a parsed "name.N" or "name.N-M" suffix.
type sparseIndex struct {
	lo, hi int
}

func (d *Device) mergeSparse(name string, idx sparseIndex, u ipp.Attribute) {
	existing, ok := d.Attrs.Find(name)
	if !ok {
		d.Attrs.Add(ipp.Attribute{Name: name, Values: u.Values})
		return
	}
	for i := idx.lo; i <= idx.hi; i++ {
		for len(existing.Values) <= i {
			existing.Values = append(existing.Values, existing.Values[len(existing.Values)-1])
		}
		if len(u.Values) > 0 {
			existing.Values[i] = u.Values[0]
		}
	}
	d.Attrs.Set(existing)
}

// parseSparseName splits a "name.N" or "name.N-M" update key into its
// base name and index range.
func parseSparseName(full string) (name string, idx sparseIndex, ok bool) {
	dot := -1
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == '.' {
			dot = i
			break
		}
		if full[i] < '0' || full[i] > '9' {
			if full[i] != '-' {
				break
			}
		}
	}
	if dot < 0 {
		return "", sparseIndex{}, false
	}
	suffix := full[dot+1:]
	name = full[:dot]

	lo, hi, parsed := parseRange(suffix)
	if !parsed {
		return "", sparseIndex{}, false
	}
	return name, sparseIndex{lo: lo, hi: hi}, true
}

func parseRange(s string) (lo, hi int, ok bool) {
	dash := -1
	for i, c := range s {
		if c == '-' {
			dash = i
			break
		}
	}
	atoi := func(x string) (int, bool) {
		if x == "" {
			return 0, false
		}
		n := 0
		for _, c := range x {
			if c < '0' || c > '9' {
				return 0, false
			}
			n = n*10 + int(c-'0')
		}
		return n, true
	}
	if dash < 0 {
		n, ok := atoi(s)
		return n, n, ok
	}
	a, ok1 := atoi(s[:dash])
	b, ok2 := atoi(s[dash+1:])
	return a, b, ok1 && ok2
}
