package transcoder

import (
	"bytes"
	"encoding/binary"
)

// WideText is a null-terminated sequence of UTF-16 code units. The
// terminator lives in the backing storage and is never part of Len or Units.
type WideText struct {
	buf   []uint16 // content followed by one zero unit
	alloc Allocator
}

// WideView decodes a little-endian UTF-16 payload into a terminated WideText.
// A trailing odd byte cannot form a code unit and is dropped. The view is
// heap backed and needs no Release, though calling it is harmless.
func WideView(payload []byte) *WideText {
	n := len(payload) / 2
	buf := make([]uint16, n+1)
	for i := range n {
		buf[i] = binary.LittleEndian.Uint16(payload[2*i:])
	}
	return &WideText{buf: buf}
}

// Len is the number of code units, excluding the terminator.
func (w *WideText) Len() int {
	if w == nil || len(w.buf) == 0 {
		return 0
	}
	return len(w.buf) - 1
}

// Units returns the content without the terminator.
func (w *WideText) Units() []uint16 {
	if w == nil || len(w.buf) == 0 {
		return nil
	}
	return w.buf[:len(w.buf)-1]
}

// Terminated returns the content followed by the zero unit.
func (w *WideText) Terminated() []uint16 {
	if w == nil {
		return nil
	}
	return w.buf
}

// LittleEndian serializes the content as UTF-16LE bytes, as written to disk.
func (w *WideText) LittleEndian() []byte {
	units := w.Units()
	out := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[2*i:], u)
	}
	return out
}

// Release returns the storage to the allocator that produced it. It is safe
// to call more than once and on a nil receiver.
func (w *WideText) Release() {
	if w == nil || w.buf == nil {
		return
	}
	if w.alloc != nil {
		w.alloc.FreeUnits(w.buf)
	}
	w.buf = nil
	w.alloc = nil
}

// UTF8Text is a null-terminated UTF-8 byte sequence.
type UTF8Text struct {
	buf   []byte // content followed by one zero byte
	alloc Allocator
}

// UTF8View wraps b up to and including its first zero byte without
// copying, so a buffer that is already terminated is used in place. A b
// without a zero byte is copied into terminated storage. The view aliases
// b and must not outlive it.
func UTF8View(b []byte) *UTF8Text {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return &UTF8Text{buf: b[:i+1 : i+1]}
	}
	buf := make([]byte, len(b)+1)
	copy(buf, b)
	return &UTF8Text{buf: buf}
}

// Len is the number of bytes, excluding the terminator.
func (u *UTF8Text) Len() int {
	if u == nil || len(u.buf) == 0 {
		return 0
	}
	return len(u.buf) - 1
}

// Bytes returns the content without the terminator.
func (u *UTF8Text) Bytes() []byte {
	if u == nil || len(u.buf) == 0 {
		return nil
	}
	return u.buf[:len(u.buf)-1]
}

// Terminated returns the content followed by the zero byte.
func (u *UTF8Text) Terminated() []byte {
	if u == nil {
		return nil
	}
	return u.buf
}

// String returns the content as a Go string.
func (u *UTF8Text) String() string {
	return string(u.Bytes())
}

// Release returns the storage to the allocator that produced it. It is safe
// to call more than once and on a nil receiver.
func (u *UTF8Text) Release() {
	if u == nil || u.buf == nil {
		return
	}
	if u.alloc != nil {
		u.alloc.FreeBytes(u.buf)
	}
	u.buf = nil
	u.alloc = nil
}
