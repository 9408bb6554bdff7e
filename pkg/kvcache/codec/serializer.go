package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

const (
	// HeaderLength is the size of the fixed header: two flag bytes and the int64 expiry.
	HeaderLength = 2 + 8

	// CompressionThreshold is the payload+tag length above which bodies are gzipped.
	CompressionThreshold = 200
)

// Format errors.
var (
	ErrFormat     = errors.New("malformed cache entry")
	ErrUnknownTag = fmt.Errorf("%w: unknown type tag", ErrFormat)
)

// SerializerOption configures a Serializer.
type SerializerOption func(*Serializer)

// WithCompressionThreshold overrides CompressionThreshold. A negative value disables compression.
func WithCompressionThreshold(n int) SerializerOption {
	return func(s *Serializer) {
		s.threshold = n
	}
}

// Serializer reads and writes entry files.
type Serializer struct {
	registry  *Registry
	threshold int
}

// NewSerializer returns a Serializer resolving tags through reg.
// A nil reg uses NewRegistry().
func NewSerializer(reg *Registry, opts ...SerializerOption) *Serializer {
	if reg == nil {
		reg = NewRegistry()
	}
	s := &Serializer{
		registry:  reg,
		threshold: CompressionThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serialize writes entry to w. A plain string value is stored literally;
// anything else is JSON encoded through its registered codec. When
// entry.TypeTag is empty it is derived from the value.
// IsSerialized and IsCompressed on entry are updated to what was written.
func (s *Serializer) Serialize(w io.Writer, entry *Entry) error {
	if entry.TypeTag == "" {
		tag, err := s.registry.TagOf(entry.Value)
		if err != nil {
			return err
		}
		entry.TypeTag = tag
	}

	payload, serialized, err := s.encodePayload(entry)
	if err != nil {
		return err
	}

	entry.IsSerialized = serialized
	entry.IsCompressed = s.threshold >= 0 && len(payload)+len(entry.TypeTag) > s.threshold

	var header [HeaderLength]byte
	header[0] = boolByte(entry.IsCompressed)
	header[1] = boolByte(entry.IsSerialized)
	binary.LittleEndian.PutUint64(header[2:], uint64(ToTicks(entry.ExpiresAt))) //nolint:gosec // two's complement round-trips

	if _, err = w.Write(header[:]); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	if !entry.IsCompressed {
		return writeBody(w, entry.TypeTag, payload)
	}

	gz := gzip.NewWriter(w)
	if err = writeBody(gz, entry.TypeTag, payload); err != nil {
		_ = gz.Close()
		return err
	}
	if err = gz.Close(); err != nil {
		return fmt.Errorf("flushing compressed body: %w", err)
	}
	return nil
}

func (s *Serializer) encodePayload(entry *Entry) ([]byte, bool, error) {
	if str, ok := entry.Value.(string); ok {
		return []byte(str), false, nil
	}

	c, ok := s.registry.Lookup(entry.TypeTag)
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnregisteredType, entry.TypeTag)
	}

	payload, err := c.Encode(entry.Value)
	if err != nil {
		return nil, false, fmt.Errorf("encoding %q value: %w", entry.TypeTag, err)
	}
	return payload, true, nil
}

func writeBody(w io.Writer, tag string, payload []byte) error {
	if _, err := io.WriteString(w, tag+"\n"); err != nil {
		return fmt.Errorf("writing type tag: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}
	return nil
}

// Deserialize reads one entry from r. Structural problems are reported as
// errors wrapping ErrFormat; an unknown tag wraps ErrUnknownTag.
func (s *Serializer) Deserialize(r io.Reader) (*Entry, error) {
	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		IsCompressed: header[0] != 0,
		IsSerialized: header[1] != 0,
		ExpiresAt:    FromTicks(int64(binary.LittleEndian.Uint64(header[2:]))), //nolint:gosec // see Serialize
	}

	body := r
	if entry.IsCompressed {
		gz, gzErr := gzip.NewReader(r)
		if gzErr != nil {
			return nil, fmt.Errorf("%w: opening compressed body: %w", ErrFormat, gzErr)
		}
		defer gz.Close()
		body = gz
	}

	br := bufio.NewReader(body)
	tagLine, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: reading type tag: %w", ErrFormat, err)
	}
	entry.TypeTag = strings.TrimSuffix(tagLine, "\n")

	payload, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading payload: %w", ErrFormat, err)
	}

	c, ok := s.registry.Lookup(entry.TypeTag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, entry.TypeTag)
	}

	if !entry.IsSerialized {
		if entry.TypeTag != TagString {
			return nil, fmt.Errorf("%w: literal payload with tag %q", ErrFormat, entry.TypeTag)
		}
		entry.Value = string(payload)
		return entry, nil
	}

	entry.Value, err = c.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %q payload: %w", ErrFormat, entry.TypeTag, err)
	}
	return entry, nil
}

// ReadExpiry reads only the fixed header and returns the expiry instant.
// The zero time means the entry never expires.
func (s *Serializer) ReadExpiry(r io.Reader) (time.Time, error) {
	header, err := readHeader(r)
	if err != nil {
		return time.Time{}, err
	}
	return FromTicks(int64(binary.LittleEndian.Uint64(header[2:]))), nil //nolint:gosec // see Serialize
}

func readHeader(r io.Reader) ([HeaderLength]byte, error) {
	var header [HeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return header, fmt.Errorf("%w: truncated header", ErrFormat)
		}
		return header, fmt.Errorf("reading header: %w", err)
	}
	return header, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
