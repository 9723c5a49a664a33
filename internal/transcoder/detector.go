package transcoder

import (
	"bytes"
	"strings"
)

// Encoding represents the detected encoding of a file.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingUTF16LE          // "Unicode" on Windows: UTF-16 little-endian
	EncodingUTF8
)

var (
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
)

// String returns the name used in logs and diagnostics.
func (e Encoding) String() string {
	switch e {
	case EncodingUTF16LE:
		return "UTF-16LE"
	case EncodingUTF8:
		return "UTF-8"
	default:
		return "unknown"
	}
}

// BOM returns a copy of the byte order mark for e, or nil for EncodingUnknown.
func (e Encoding) BOM() []byte {
	switch e {
	case EncodingUTF16LE:
		return bytes.Clone(bomUTF16LE)
	case EncodingUTF8:
		return bytes.Clone(bomUTF8)
	default:
		return nil
	}
}

// Opposite returns the encoding a file of kind e is converted to.
func (e Encoding) Opposite() Encoding {
	switch e {
	case EncodingUTF16LE:
		return EncodingUTF8
	case EncodingUTF8:
		return EncodingUTF16LE
	default:
		return EncodingUnknown
	}
}

// ParseEncoding maps a user supplied name to an Encoding.
func ParseEncoding(name string) Encoding {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-16le", "utf16le", "utf-16", "unicode":
		return EncodingUTF16LE
	case "utf-8", "utf8":
		return EncodingUTF8
	default:
		return EncodingUnknown
	}
}

// Detect classifies data by its byte order mark and returns the offset of
// the first payload byte. Any amount of content may follow the BOM.
// Data without a recognized BOM is EncodingUnknown with offset 0.
func Detect(data []byte) (Encoding, int) {
	if bytes.HasPrefix(data, bomUTF16LE) {
		return EncodingUTF16LE, len(bomUTF16LE)
	}
	if bytes.HasPrefix(data, bomUTF8) {
		return EncodingUTF8, len(bomUTF8)
	}
	return EncodingUnknown, 0
}

// DetectExact is the older classification that only accepts data consisting
// of nothing but a BOM. It cannot classify a file with content and is not
// used for conversion.
func DetectExact(data []byte) (Encoding, int) {
	switch {
	case bytes.Equal(data, bomUTF16LE):
		return EncodingUTF16LE, len(bomUTF16LE)
	case bytes.Equal(data, bomUTF8):
		return EncodingUTF8, len(bomUTF8)
	default:
		return EncodingUnknown, 0
	}
}
