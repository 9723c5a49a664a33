package transcoder

import (
	"bytes"
	"slices"
	"testing"
	"unicode/utf16"

	"github.com/greatbody/bomswap/internal/errors"
)

// countingAllocator tracks outstanding buffers and can fail a chosen call.
type countingAllocator struct {
	HeapAllocator
	live   int
	calls  int
	failOn int // 1-based call number to fail, 0 to never fail
}

func (c *countingAllocator) fail(n int) error {
	c.calls++
	if c.calls == c.failOn {
		return errors.Allocation("test", n)
	}
	return nil
}

func (c *countingAllocator) AllocBytes(n int) ([]byte, error) {
	if err := c.fail(n); err != nil {
		return nil, err
	}
	b, err := c.HeapAllocator.AllocBytes(n)
	if err == nil {
		c.live++
	}
	return b, err
}

func (c *countingAllocator) AllocUnits(n int) ([]uint16, error) {
	if err := c.fail(n); err != nil {
		return nil, err
	}
	u, err := c.HeapAllocator.AllocUnits(n)
	if err == nil {
		c.live++
	}
	return u, err
}

func (c *countingAllocator) FreeBytes([]byte)   { c.live-- }
func (c *countingAllocator) FreeUnits([]uint16) { c.live-- }

var samples = []string{
	"",
	"AB",
	"Hello, World!",
	"héllo wörld",
	"你好",
	"日本語のテキスト",
	"emoji 😀 and 𝄞",
	"\ufeffleading zero width no-break space",
	"literal replacement \ufffd is fine",
	"\u07ff\u0800\uffff\U00010000\U0010ffff",
}

func wide(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

func TestWideToUTF8(t *testing.T) {
	for _, s := range samples {
		got, err := WideToUTF8(wide(s))
		if err != nil {
			t.Fatalf("WideToUTF8(%q) failed: %v", s, err)
		}
		if !bytes.Equal(got.Bytes(), []byte(s)) {
			t.Errorf("WideToUTF8(%q) = % x, want % x", s, got.Bytes(), []byte(s))
		}
		if got.Len() != len(s) {
			t.Errorf("WideToUTF8(%q).Len() = %d, want %d", s, got.Len(), len(s))
		}
		term := got.Terminated()
		if len(term) != len(s)+1 || term[len(term)-1] != 0 {
			t.Errorf("WideToUTF8(%q) is not null-terminated: % x", s, term)
		}
	}
}

func TestUTF8ToWide(t *testing.T) {
	for _, s := range samples {
		got, err := UTF8ToWide([]byte(s))
		if err != nil {
			t.Fatalf("UTF8ToWide(%q) failed: %v", s, err)
		}
		want := wide(s)
		if !slices.Equal(got.Units(), want) {
			t.Errorf("UTF8ToWide(%q) = %x, want %x", s, got.Units(), want)
		}
		term := got.Terminated()
		if len(term) != len(want)+1 || term[len(term)-1] != 0 {
			t.Errorf("UTF8ToWide(%q) is not null-terminated: %x", s, term)
		}
	}
}

func TestRoundTripFromWide(t *testing.T) {
	for _, s := range samples {
		units := wide(s)

		mid, err := WideToUTF8(units)
		if err != nil {
			t.Fatalf("WideToUTF8(%q) failed: %v", s, err)
		}
		back, err := UTF8ToWide(mid.Bytes())
		if err != nil {
			t.Fatalf("UTF8ToWide(%q) failed: %v", s, err)
		}
		if !slices.Equal(back.Units(), units) {
			t.Errorf("round trip of %q: got %x, want %x", s, back.Units(), units)
		}
	}
}

func TestRoundTripFromUTF8(t *testing.T) {
	for _, s := range samples {
		mid, err := UTF8ToWide([]byte(s))
		if err != nil {
			t.Fatalf("UTF8ToWide(%q) failed: %v", s, err)
		}
		back, err := WideToUTF8(mid.Units())
		if err != nil {
			t.Fatalf("WideToUTF8(%q) failed: %v", s, err)
		}
		if back.String() != s {
			t.Errorf("round trip of %q: got %q", s, back.String())
		}
	}
}

func TestMeasuresToTerminator(t *testing.T) {
	u, err := WideToUTF8([]uint16{0x41, 0x00, 0x42})
	if err != nil {
		t.Fatalf("WideToUTF8 failed: %v", err)
	}
	if u.String() != "A" {
		t.Errorf("WideToUTF8 with embedded terminator = %q, want %q", u.String(), "A")
	}

	w, err := UTF8ToWide([]byte("A\x00B"))
	if err != nil {
		t.Fatalf("UTF8ToWide failed: %v", err)
	}
	if !slices.Equal(w.Units(), []uint16{0x41}) {
		t.Errorf("UTF8ToWide with embedded terminator = %x, want [41]", w.Units())
	}
}

func TestWideToUTF8RejectsUnpairedSurrogates(t *testing.T) {
	inputs := map[string][]uint16{
		"lone high":           {0xD800},
		"lone low":            {0xDC00},
		"high then ASCII":     {0xD83D, 0x0041},
		"reversed pair":       {0xDE00, 0xD83D},
		"high before the end": {0x0041, 0xDBFF},
		"two highs":           {0xD800, 0xD800, 0xDC00},
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			alloc := &countingAllocator{}
			got, err := NewEngine(alloc).WideToUTF8(in)
			if !errors.Is(err, errors.ErrInvalidCharacterSequence) {
				t.Fatalf("WideToUTF8(%x) error = %v, want invalid character sequence", in, err)
			}
			if got != nil {
				t.Errorf("WideToUTF8(%x) returned a result on failure", in)
			}
			if alloc.live != 0 {
				t.Errorf("WideToUTF8(%x) leaked %d buffers", in, alloc.live)
			}
		})
	}
}

func TestUTF8ToWideRejectsIllFormedInput(t *testing.T) {
	inputs := map[string][]byte{
		"lone continuation":   {0x80},
		"truncated sequence":  {0xE6, 0x97},
		"overlong slash":      {0xC0, 0xAF},
		"encoded surrogate":   {0xED, 0xA0, 0x80},
		"beyond U+10FFFF":     {0xF4, 0x90, 0x80, 0x80},
		"invalid after ASCII": {0x41, 0x42, 0xFF},
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			alloc := &countingAllocator{}
			got, err := NewEngine(alloc).UTF8ToWide(in)
			if !errors.Is(err, errors.ErrInvalidCharacterSequence) {
				t.Fatalf("UTF8ToWide(% x) error = %v, want invalid character sequence", in, err)
			}
			if got != nil {
				t.Errorf("UTF8ToWide(% x) returned a result on failure", in)
			}
			if alloc.live != 0 {
				t.Errorf("UTF8ToWide(% x) leaked %d buffers", in, alloc.live)
			}
		})
	}
}

func TestInvalidSequenceReportsOffset(t *testing.T) {
	_, err := UTF8ToWide([]byte{0x41, 0x42, 0x80})
	var e *errors.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	if e.Offset != 2 || e.Op != opUTF8ToWide {
		t.Errorf("error = %+v, want offset 2 in %s", e, opUTF8ToWide)
	}
}

func TestAllocationFailureReleasesEverything(t *testing.T) {
	tests := []struct {
		name   string
		failOn int
		run    func(*Engine) error
	}{
		{"wide: sized buffer", 1, func(e *Engine) error { _, err := e.WideToUTF8(wide("AB")); return err }},
		{"wide: scratch after sizing", 2, func(e *Engine) error { _, err := e.WideToUTF8(wide("AB")); return err }},
		{"utf8: sized buffer", 1, func(e *Engine) error { _, err := e.UTF8ToWide([]byte("AB")); return err }},
		{"utf8: scratch after sizing", 2, func(e *Engine) error { _, err := e.UTF8ToWide([]byte("AB")); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc := &countingAllocator{failOn: tt.failOn}
			err := tt.run(NewEngine(alloc))
			if !errors.Is(err, errors.ErrAllocationFailure) {
				t.Fatalf("error = %v, want allocation failure", err)
			}
			if alloc.live != 0 {
				t.Errorf("leaked %d buffers", alloc.live)
			}
		})
	}
}

func TestAllocationLimit(t *testing.T) {
	e := NewEngine(HeapAllocator{Limit: 8})

	if _, err := e.WideToUTF8(wide("ABC")); err != nil {
		t.Fatalf("3 characters and their scratch buffer should fit a limit of 8: %v", err)
	}
	if _, err := e.WideToUTF8(wide("ABCDEFG")); !errors.Is(err, errors.ErrAllocationFailure) {
		t.Errorf("WideToUTF8 over the limit: error = %v, want allocation failure", err)
	}
	if _, err := e.UTF8ToWide([]byte("ABCDEFG")); !errors.Is(err, errors.ErrAllocationFailure) {
		t.Errorf("UTF8ToWide over the limit: error = %v, want allocation failure", err)
	}
}

func TestReleaseReturnsStorage(t *testing.T) {
	alloc := &countingAllocator{}
	e := NewEngine(alloc)

	u, err := e.WideToUTF8(wide("héllo"))
	if err != nil {
		t.Fatalf("WideToUTF8 failed: %v", err)
	}
	w, err := e.UTF8ToWide(u.Bytes())
	if err != nil {
		t.Fatalf("UTF8ToWide failed: %v", err)
	}
	if alloc.live != 2 {
		t.Fatalf("live buffers = %d, want 2 (one per result)", alloc.live)
	}

	u.Release()
	w.Release()
	u.Release()
	w.Release()
	if alloc.live != 0 {
		t.Errorf("live buffers after Release = %d, want 0", alloc.live)
	}
	if u.Len() != 0 || w.Len() != 0 {
		t.Errorf("released texts still report content")
	}
}

func TestConversionDetectsSubstitution(t *testing.T) {
	e := NewEngine(nil)

	// A destination sized as if the lone surrogate were a 3 byte character.
	if err := e.encodeUTF8(make([]byte, 3), []uint16{0xD800}); !errors.Is(err, errors.ErrInvalidCharacterSequence) {
		t.Errorf("encodeUTF8 with lone surrogate: error = %v, want invalid character sequence", err)
	}
	if err := e.encodeWide(make([]uint16, 1), []byte{0x80}); !errors.Is(err, errors.ErrInvalidCharacterSequence) {
		t.Errorf("encodeWide with lone continuation byte: error = %v, want invalid character sequence", err)
	}
}

func TestEmptyInput(t *testing.T) {
	u, err := WideToUTF8(nil)
	if err != nil {
		t.Fatalf("WideToUTF8(nil) failed: %v", err)
	}
	if u.Len() != 0 || !bytes.Equal(u.Terminated(), []byte{0}) {
		t.Errorf("WideToUTF8(nil) = % x, want a lone terminator", u.Terminated())
	}

	w, err := UTF8ToWide([]byte{})
	if err != nil {
		t.Fatalf("UTF8ToWide(empty) failed: %v", err)
	}
	if w.Len() != 0 || !slices.Equal(w.Terminated(), []uint16{0}) {
		t.Errorf("UTF8ToWide(empty) = %x, want a lone terminator", w.Terminated())
	}
}
