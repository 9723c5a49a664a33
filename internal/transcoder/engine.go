package transcoder

import (
	"bytes"
	"encoding/binary"
	"slices"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/greatbody/bomswap/internal/errors"
	"golang.org/x/text/encoding/unicode"
)

const (
	opWideToUTF8 = "WideToUTF8"
	opUTF8ToWide = "UTF8ToWide"
)

// utf16LE carries no BOM in either direction; BOMs are handled by Detect and
// by whoever writes the file.
var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// replacementUTF8 is U+FFFD, the character the x/text codecs substitute for
// input they cannot represent.
var replacementUTF8 = []byte(string(utf8.RuneError))

// Engine converts between UTF-16 code units and UTF-8. Each call measures
// the output, allocates exactly that much from the Allocator and converts
// into it. Invalid input is rejected, never replaced.
type Engine struct {
	alloc Allocator
}

// NewEngine returns an Engine drawing buffers from alloc. A nil alloc uses
// the heap.
func NewEngine(alloc Allocator) *Engine {
	if alloc == nil {
		alloc = HeapAllocator{}
	}
	return &Engine{alloc: alloc}
}

var defaultEngine = NewEngine(HeapAllocator{})

// WideToUTF8 converts null-terminated UTF-16 code units to UTF-8 using the
// heap allocator.
func WideToUTF8(units []uint16) (*UTF8Text, error) {
	return defaultEngine.WideToUTF8(units)
}

// UTF8ToWide converts null-terminated UTF-8 to UTF-16 code units using the
// heap allocator.
func UTF8ToWide(b []byte) (*WideText, error) {
	return defaultEngine.UTF8ToWide(b)
}

// WideToUTF8 converts units up to the first zero unit (or the end of the
// slice) into a newly allocated, null-terminated UTF-8 text.
func (e *Engine) WideToUTF8(units []uint16) (*UTF8Text, error) {
	units = units[:wideLen(units)]

	size, err := sizeUTF8(units)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, errors.InvalidSequence(opWideToUTF8, -1, "sizing returned zero length")
	}

	dst, err := e.alloc.AllocBytes(size)
	if err != nil {
		return nil, allocationError(opWideToUTF8, size, err)
	}
	if len(dst) < size {
		e.alloc.FreeBytes(dst)
		return nil, errors.Allocation(opWideToUTF8, size)
	}
	dst = dst[:size]

	if err := e.encodeUTF8(dst[:size-1], units); err != nil {
		e.alloc.FreeBytes(dst)
		return nil, err
	}
	dst[size-1] = 0

	return &UTF8Text{buf: dst, alloc: e.alloc}, nil
}

// UTF8ToWide converts b up to the first zero byte (or the end of the slice)
// into newly allocated, null-terminated UTF-16 code units.
func (e *Engine) UTF8ToWide(b []byte) (*WideText, error) {
	b = b[:utf8Len(b)]

	size, err := sizeWide(b)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, errors.InvalidSequence(opUTF8ToWide, -1, "sizing returned zero length")
	}

	dst, err := e.alloc.AllocUnits(size)
	if err != nil {
		return nil, allocationError(opUTF8ToWide, size, err)
	}
	if len(dst) < size {
		e.alloc.FreeUnits(dst)
		return nil, errors.Allocation(opUTF8ToWide, size)
	}
	dst = dst[:size]

	if err := e.encodeWide(dst[:size-1], b); err != nil {
		e.alloc.FreeUnits(dst)
		return nil, err
	}
	dst[size-1] = 0

	return &WideText{buf: dst, alloc: e.alloc}, nil
}

// encodeUTF8 fills dst, which was sized by sizeUTF8, from units.
func (e *Engine) encodeUTF8(dst []byte, units []uint16) error {
	if len(units) == 0 {
		return nil
	}

	src, err := e.alloc.AllocBytes(2 * len(units))
	if err != nil {
		return allocationError(opWideToUTF8, 2*len(units), err)
	}
	defer e.alloc.FreeBytes(src)
	src = src[:2*len(units)]

	for i, u := range units {
		binary.LittleEndian.PutUint16(src[2*i:], u)
	}

	nDst, nSrc, err := utf16LE.NewDecoder().Transform(dst, src, true)
	if err != nil {
		return errors.New(errors.KindInvalidCharacterSequence).
			Op(opWideToUTF8).
			Offset(nSrc / 2).
			Cause(err).
			Build()
	}
	if nDst != len(dst) || nSrc != len(src) {
		return errors.InvalidSequence(opWideToUTF8, nSrc/2,
			"substitution detected: wrote %d of %d bytes", nDst, len(dst))
	}
	if bytes.Count(dst, replacementUTF8) != countUnit(units, utf8.RuneError) {
		return errors.InvalidSequence(opWideToUTF8, -1, "substitution detected: replacement character in output")
	}
	return nil
}

// encodeWide fills dst, which was sized by sizeWide, from b.
func (e *Engine) encodeWide(dst []uint16, b []byte) error {
	if len(b) == 0 {
		return nil
	}

	scratch, err := e.alloc.AllocBytes(2 * len(dst))
	if err != nil {
		return allocationError(opUTF8ToWide, 2*len(dst), err)
	}
	defer e.alloc.FreeBytes(scratch)
	scratch = scratch[:2*len(dst)]

	nDst, nSrc, err := utf16LE.NewEncoder().Transform(scratch, b, true)
	if err != nil {
		return errors.New(errors.KindInvalidCharacterSequence).
			Op(opUTF8ToWide).
			Offset(nSrc).
			Cause(err).
			Build()
	}
	if nDst != len(scratch) || nSrc != len(b) {
		return errors.InvalidSequence(opUTF8ToWide, nSrc,
			"substitution detected: wrote %d of %d units", nDst/2, len(dst))
	}

	for i := range dst {
		dst[i] = binary.LittleEndian.Uint16(scratch[2*i:])
	}
	if countUnit(dst, utf8.RuneError) != bytes.Count(b, replacementUTF8) {
		return errors.InvalidSequence(opUTF8ToWide, -1, "substitution detected: replacement character in output")
	}
	return nil
}

// sizeUTF8 returns the number of bytes needed for units, terminator included.
func sizeUTF8(units []uint16) (int, error) {
	n := 0
	for i := 0; i < len(units); i++ {
		r := rune(units[i])
		switch {
		case r < utf8.RuneSelf:
			n++
		case r < 0x800:
			n += 2
		case utf16.IsSurrogate(r):
			if r >= 0xdc00 || i+1 >= len(units) || !isLowSurrogate(rune(units[i+1])) {
				return 0, errors.InvalidSequence(opWideToUTF8, i, "unpaired surrogate %#04x", units[i])
			}
			n += 4
			i++
		default:
			n += 3
		}
	}
	return n + 1, nil
}

// sizeWide returns the number of code units needed for b, terminator included.
func sizeWide(b []byte) (int, error) {
	n := 0
	for i := 0; i < len(b); {
		if b[i] < utf8.RuneSelf {
			n++
			i++
			continue
		}
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return 0, errors.InvalidSequence(opUTF8ToWide, i, "ill-formed UTF-8 byte %#02x", b[i])
		}
		if r > 0xffff {
			n += 2
		} else {
			n++
		}
		i += size
	}
	return n + 1, nil
}

func isLowSurrogate(r rune) bool {
	return r >= 0xdc00 && r <= 0xdfff
}

func countUnit(units []uint16, r rune) int {
	n := 0
	for _, u := range units {
		if rune(u) == r {
			n++
		}
	}
	return n
}

func wideLen(units []uint16) int {
	if i := slices.Index(units, 0); i >= 0 {
		return i
	}
	return len(units)
}

func utf8Len(b []byte) int {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return i
	}
	return len(b)
}

func allocationError(op string, size int, cause error) error {
	return errors.New(errors.KindAllocation).
		Op(op).
		Detail("cannot allocate %d elements", size).
		Cause(cause).
		Build()
}
