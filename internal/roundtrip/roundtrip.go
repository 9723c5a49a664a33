// Package roundtrip converts a file with a byte order mark to the other
// supported encoding and proves the conversion by converting it back.
package roundtrip

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"slices"
	"unicode/utf8"

	"github.com/greatbody/bomswap/internal/config"
	"github.com/greatbody/bomswap/internal/errors"
	"github.com/greatbody/bomswap/internal/fileio"
	"github.com/greatbody/bomswap/internal/logging"
	"github.com/greatbody/bomswap/internal/transcoder"
	"go.uber.org/zap"
)

// Report describes what a Run found and did.
type Report struct {
	Path      string
	Kind      transcoder.Encoding // detected encoding of the input
	Target    transcoder.Encoding // encoding the text was converted to
	Offset    int                 // first payload byte after the BOM
	Truncated bool                // the file was larger than the read buffer
	Converted bool

	PayloadLength   int // input payload bytes that took part in the conversion
	ForwardLength   int // converted payload bytes, BOM excluded
	RecoveredLength int // payload bytes after converting back

	Outputs []string
}

// Runner executes the read, detect, convert, verify, write sequence.
type Runner struct {
	cfg    *config.Config
	engine *transcoder.Engine
	diag   io.Writer
	log    *zap.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithEngine replaces the engine built from the config's allocation limit.
func WithEngine(e *transcoder.Engine) Option {
	return func(r *Runner) { r.engine = e }
}

// WithDiagnostics sets where hex dumps are written. The default discards them.
func WithDiagnostics(w io.Writer) Option {
	return func(r *Runner) { r.diag = w }
}

// WithLogger replaces the process logger for this runner.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.log = l }
}

func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		engine: transcoder.NewEngine(transcoder.HeapAllocator{Limit: cfg.MaxAllocation}),
		diag:   io.Discard,
		log:    logging.Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// conversion is the outcome of a forward and backward transcode, already
// verified and copied out of the transcoder's buffers.
type conversion struct {
	payloadLen int
	forward    []byte // in the target encoding, no BOM
	recovered  []byte // in the source encoding, no BOM
}

// Run converts the file at path. A file without a recognized BOM is left
// alone and reported with Converted false, unless FailOnUnknown is set.
// Nothing is written unless both conversions succeed and agree.
func (r *Runner) Run(ctx context.Context, path string) (*Report, error) {
	raw, err := fileio.ReadBoundedBytes(path, r.cfg.ReadLimit())
	if err != nil {
		return nil, err
	}
	r.dump("Raw bytes", raw.Bytes())

	kind, offset := transcoder.Detect(raw.Bytes())
	report := &Report{
		Path:      path,
		Kind:      kind,
		Target:    kind.Opposite(),
		Offset:    offset,
		Truncated: raw.Truncated(),
	}

	log := r.log.With(zap.String("path", path))
	if raw.Truncated() {
		log.Warn("file exceeds the read buffer, converting the leading part only",
			zap.Int("limit", r.cfg.ReadLimit()))
	}

	if kind == transcoder.EncodingUnknown {
		log.Info("no byte order mark recognized, nothing to convert")
		if r.cfg.FailOnUnknown {
			return report, errors.New(errors.KindUnrecognizedEncoding).
				Op("DetectEncoding").
				Path(path).
				Detail("no UTF-16LE or UTF-8 byte order mark").
				Build()
		}
		return report, nil
	}
	log.Info("detected encoding", zap.Stringer("encoding", kind), zap.Int("offset", offset))

	if want := r.cfg.Expected(); want != transcoder.EncodingUnknown && want != kind {
		return report, errors.New(errors.KindUnrecognizedEncoding).
			Op("DetectEncoding").
			Path(path).
			Detail("detected %s, expected %s", kind, want).
			Build()
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	payload := raw.Bytes()[offset:]
	if raw.Truncated() {
		if whole := completeTail(kind, payload); len(whole) < len(payload) {
			log.Warn("read limit splits a character, dropping its leading bytes",
				zap.Int("dropped", len(payload)-len(whole)))
			payload = whole
		}
	}

	var conv *conversion
	switch kind {
	case transcoder.EncodingUTF16LE:
		conv, err = r.fromWide(payload)
	case transcoder.EncodingUTF8:
		// The read buffer keeps zero padding after the content, so an uncut
		// payload is viewed in place.
		text := payload
		if len(payload) == raw.Len()-offset {
			text = raw.Terminated()[offset:]
		}
		conv, err = r.fromUTF8(text, len(payload))
	}
	if err != nil {
		return report, withPath(err, path)
	}

	report.PayloadLength = conv.payloadLen
	report.ForwardLength = len(conv.forward)
	report.RecoveredLength = len(conv.recovered)
	r.dump("Converted "+report.Target.String(), conv.forward)
	r.dump("Recovered "+kind.String(), conv.recovered)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	outputs, err := r.write(path, kind, conv)
	report.Outputs = outputs
	if err != nil {
		return report, err
	}

	report.Converted = true
	log.Info("round trip verified",
		zap.Stringer("from", kind),
		zap.Stringer("to", report.Target),
		zap.Int("payload_bytes", report.PayloadLength),
		zap.Int("converted_bytes", report.ForwardLength),
		zap.Strings("outputs", outputs))
	return report, nil
}

// fromWide handles a UTF-16LE payload: UTF-16 to UTF-8 and back.
func (r *Runner) fromWide(payload []byte) (*conversion, error) {
	if len(payload)%2 != 0 {
		r.log.Warn("odd UTF-16 payload length, ignoring the trailing byte", zap.Int("bytes", len(payload)))
	}

	original := transcoder.WideView(payload)
	units := untilZero(original.Units())
	if len(units) < original.Len() {
		r.log.Warn("embedded terminator, converting up to it", zap.Int("unit", len(units)))
	}

	forward, err := r.engine.WideToUTF8(original.Terminated())
	if err != nil {
		return nil, err
	}
	defer forward.Release()

	back, err := r.engine.UTF8ToWide(forward.Terminated())
	if err != nil {
		return nil, err
	}
	defer back.Release()

	if i := firstDiff(units, back.Units()); i >= 0 {
		return nil, mismatch(i, len(units), back.Len())
	}

	return &conversion{
		payloadLen: 2 * len(units),
		forward:    bytes.Clone(forward.Bytes()),
		recovered:  back.LittleEndian(),
	}, nil
}

// fromUTF8 handles a UTF-8 payload of n bytes: UTF-8 to UTF-16 and back.
// text holds the payload, optionally followed by its terminator.
func (r *Runner) fromUTF8(text []byte, n int) (*conversion, error) {
	original := transcoder.UTF8View(text)
	if original.Len() < n {
		r.log.Warn("embedded terminator, converting up to it", zap.Int("byte", original.Len()))
	}

	forward, err := r.engine.UTF8ToWide(original.Terminated())
	if err != nil {
		return nil, err
	}
	defer forward.Release()

	back, err := r.engine.WideToUTF8(forward.Terminated())
	if err != nil {
		return nil, err
	}
	defer back.Release()

	if i := firstDiff(original.Bytes(), back.Bytes()); i >= 0 {
		return nil, mismatch(i, original.Len(), back.Len())
	}

	return &conversion{
		payloadLen: original.Len(),
		forward:    forward.LittleEndian(),
		recovered:  bytes.Clone(back.Bytes()),
	}, nil
}

// write stores the converted text and, when configured, the recovered text.
// When a write fails, the files already written by this call are removed.
func (r *Runner) write(path string, kind transcoder.Encoding, conv *conversion) (outputs []string, err error) {
	dir := filepath.Dir(path)
	if r.cfg.OutputDir != "" {
		dir = r.cfg.OutputDir
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.IO("CreateDirectory", dir, err)
		}
	}
	base := filepath.Join(dir, filepath.Base(path))

	target := kind.Opposite()
	suffix := r.cfg.UTF8Suffix
	if target == transcoder.EncodingUTF16LE {
		suffix = r.cfg.UnicodeSuffix
	}

	defer func() {
		if err == nil {
			return
		}
		for _, out := range outputs {
			if rmErr := os.Remove(out); rmErr != nil {
				r.log.Warn("cannot remove partial output", zap.String("output", out), zap.Error(rmErr))
			}
		}
		outputs = nil
	}()

	out := base + suffix
	if err = fileio.WriteBytes(out, slices.Concat(target.BOM(), conv.forward)); err != nil {
		return outputs, err
	}
	outputs = append(outputs, out)

	if r.cfg.WriteRoundTrip {
		out = base + r.cfg.RoundTripSuffix
		if err = fileio.WriteBytes(out, slices.Concat(kind.BOM(), conv.recovered)); err != nil {
			return outputs, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// completeTail drops a character the read limit cut short at the end of
// payload: a partial UTF-8 sequence, or a high surrogate whose low half was
// not read. An odd trailing byte is left for the UTF-16 view to drop.
func completeTail(kind transcoder.Encoding, payload []byte) []byte {
	switch kind {
	case transcoder.EncodingUTF8:
		for i := len(payload) - 1; i >= 0 && i >= len(payload)-utf8.UTFMax; i-- {
			if utf8.RuneStart(payload[i]) {
				if !utf8.FullRune(payload[i:]) {
					return payload[:i]
				}
				break
			}
		}
	case transcoder.EncodingUTF16LE:
		n := len(payload) &^ 1
		if n >= 2 {
			if u := binary.LittleEndian.Uint16(payload[n-2:]); u >= 0xd800 && u < 0xdc00 {
				return payload[:n-2]
			}
		}
	}
	return payload
}

func (r *Runner) dump(header string, data []byte) {
	if !r.cfg.HexDump {
		return
	}
	if err := fileio.HexDump(r.diag, header, data); err != nil {
		r.log.Debug("hex dump failed", zap.Error(err))
	}
}

func mismatch(at, want, got int) error {
	return errors.New(errors.KindRoundTripMismatch).
		Op("CompareText").
		Offset(at).
		Detail("recovered %d elements, original had %d", got, want).
		Build()
}

func withPath(err error, path string) error {
	var e *errors.Error
	if errors.As(err, &e) && e.Path == "" {
		e.Path = path
	}
	return err
}

// untilZero cuts s at its first zero element, the way the transcoder
// measures its input.
func untilZero[T uint16 | byte](s []T) []T {
	if i := slices.Index(s, 0); i >= 0 {
		return s[:i]
	}
	return s
}

// firstDiff returns the index of the first differing element, or -1 when
// a and b are equal.
func firstDiff[T comparable](a, b []T) int {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return i
		}
	}
	if len(a) != len(b) {
		return n
	}
	return -1
}
