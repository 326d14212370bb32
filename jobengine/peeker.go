// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Peeker prefetches the first bytes of a document body so the job
// engine can run format detection before committing the stream to the
// spool file, then replays those bytes to the spool writer.

package jobengine

import (
	"bytes"
	"io"
)

// Peeker wraps an io.Reader and allows peeking some leading bytes,
// then rewinding so a later full read sees them again.
type Peeker struct {
	in  io.Reader
	out io.Reader
	buf bytes.Buffer
}

// NewPeeker wraps in.
func NewPeeker(in io.Reader) *Peeker {
	p := &Peeker{in: in}
	p.out = io.TeeReader(in, &p.buf)
	return p
}

// Read implements io.Reader.
func (p *Peeker) Read(b []byte) (int, error) {
	return p.out.Read(b)
}

// PeekN reads up to n bytes without consuming them from the stream
// the caller will read afterward: Rewind must be called before any
// further Read once the peek is done.
func (p *Peeker) PeekN(n int) []byte {
	buf := make([]byte, n)
	got, _ := io.ReadFull(p, buf)
	return buf[:got]
}

// Rewind makes the previously-peeked bytes available again to Read.
func (p *Peeker) Rewind() {
	consumed := bytes.NewReader(p.buf.Bytes())
	p.buf = bytes.Buffer{}
	p.out = io.MultiReader(consumed, p.in)
}
