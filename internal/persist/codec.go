// Package persist implements the catalog's on-disk serialization: a
// versioned, length-prefixed binary encoding of a Snapshot, restorable into
// a fresh Mutator. The wire shape follows the same io.Writer/io.Reader,
// explicit-version-byte discipline as OPA's internal/wasm/encoding
// ReadModule/WriteModule pair, built on encoding/binary the way OPA's own
// wasm compiler (internal/compiler/wasm/wasm.go) writes its binary sections.
package persist

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/coredb-io/polystore/internal/perr"
)

// FormatMajor is bumped whenever a wire-incompatible change is made to the
// section layout below. Load rejects any file whose major version exceeds
// this, rather than guess at an unknown shape.
const FormatMajor = 1

// FormatMinor is bumped for backward-compatible additions. Readers only
// ever reject on major and do not check the minor byte. Records carry no
// per-record length, so a reader cannot skip a field appended to a
// record; only bytes after the last section go unread.
const FormatMinor = 0

var magic = [4]byte{'P', 'S', 'C', 'T'}

type writer struct {
	w   *bufio.Writer
	err error
}

func newWriter(w io.Writer) *writer {
	return &writer{w: bufio.NewWriter(w)}
}

func (w *writer) byte(b byte) {
	if w.err != nil {
		return
	}
	w.err = w.w.WriteByte(b)
}

func (w *writer) bool(b bool) {
	if b {
		w.byte(1)
	} else {
		w.byte(0)
	}
}

func (w *writer) uvarint(v uint64) {
	if w.err != nil {
		return
	}
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, w.err = w.w.Write(buf[:n])
}

func (w *writer) id(id int64) { w.uvarint(uint64(id)) }

func (w *writer) ids(ids []int64) {
	w.uvarint(uint64(len(ids)))
	for _, id := range ids {
		w.id(id)
	}
}

func (w *writer) str(s string) {
	w.uvarint(uint64(len(s)))
	if w.err != nil {
		return
	}
	_, w.err = w.w.WriteString(s)
}

func (w *writer) strs(ss []string) {
	w.uvarint(uint64(len(ss)))
	for _, s := range ss {
		w.str(s)
	}
}

// optStr writes a presence flag followed by the string, for *string fields.
func (w *writer) optStr(s *string) {
	if s == nil {
		w.bool(false)
		return
	}
	w.bool(true)
	w.str(*s)
}

func (w *writer) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

type reader struct {
	r   *bufio.Reader
	err error
}

func newReader(r io.Reader) *reader {
	return &reader{r: bufio.NewReader(r)}
}

func (r *reader) byte() byte {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.err = err
	}
	return b
}

func (r *reader) bool() bool { return r.byte() != 0 }

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := binary.ReadUvarint(r.r)
	if err != nil {
		r.err = err
	}
	return v
}

func (r *reader) id() int64 { return int64(r.uvarint()) }

func (r *reader) ids() []int64 {
	n := r.uvarint()
	if r.err != nil || n == 0 {
		return nil
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = r.id()
	}
	return out
}

func (r *reader) str() string {
	n := r.uvarint()
	if r.err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = err
		return ""
	}
	return string(buf)
}

func (r *reader) strs() []string {
	n := r.uvarint()
	if r.err != nil || n == 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = r.str()
	}
	return out
}

func (r *reader) optStr() *string {
	if !r.bool() {
		return nil
	}
	s := r.str()
	return &s
}

func wrapIOErr(err error) error {
	if err == nil {
		return nil
	}
	return perr.Wrap(perr.Internal, err, "persist: malformed catalog snapshot")
}
