package snapshot

import (
	"fmt"
	"io"
	"os"

	"github.com/DataDog/zstd"

	"github.com/goopsie/arcRedirect/pkg/arc"
)

// DefaultCompressionLevel is the default compression level for encoding.
const DefaultCompressionLevel = zstd.BestSpeed

type options struct {
	level int
}

// Option configures Encode.
type Option func(*options)

// WithCompressionLevel sets the zstd compression level.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

// Encode compresses data and writes it with a header to w.
func Encode(w io.Writer, data []byte, opts ...Option) error {
	o := options{level: DefaultCompressionLevel}
	for _, opt := range opts {
		opt(&o)
	}

	compressed, err := zstd.CompressLevel(nil, data, o.level)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}

	h := newHeader(len(data), len(compressed))
	if err := h.Validate(); err != nil {
		return err
	}
	headerBytes, err := h.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if _, err := w.Write(headerBytes); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// ReadAll reads and decompresses a snapshot stream. The payload must decode
// to exactly the length the header declares.
func ReadAll(r io.Reader) ([]byte, error) {
	var headerBuf [HeaderSize]byte
	if _, err := io.ReadFull(r, headerBuf[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var h Header
	if err := h.UnmarshalBinary(headerBuf[:]); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	zr := zstd.NewReader(io.LimitReader(r, int64(h.CompressedLength)))
	defer zr.Close()

	// one byte past the declared length exposes a payload that is too long
	data, err := io.ReadAll(io.LimitReader(zr, int64(h.Length)+1))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	if uint64(len(data)) != h.Length {
		return nil, fmt.Errorf("content is %d bytes, header declares %d: %w", len(data), h.Length, ErrInvalidHeader)
	}
	return data, nil
}

// Write stores the tables in w.
func Write(w io.Writer, tables *arc.LoadedTables, opts ...Option) error {
	data, err := tables.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal tables: %w", err)
	}
	return Encode(w, data, opts...)
}

// Read loads tables from r.
func Read(r io.Reader) (*arc.LoadedTables, error) {
	data, err := ReadAll(r)
	if err != nil {
		return nil, err
	}

	tables := &arc.LoadedTables{}
	if err := tables.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("parse tables: %w", err)
	}
	return tables, nil
}

// ReadFile loads tables from the snapshot file at path.
func ReadFile(path string) (*arc.LoadedTables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// WriteFile stores the tables in a snapshot file at path.
func WriteFile(path string, tables *arc.LoadedTables, opts ...Option) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if err := Write(f, tables, opts...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
