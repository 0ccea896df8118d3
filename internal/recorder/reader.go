package recorder

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Reader iterates the records of a capture.
type Reader struct {
	r       io.Reader
	closer  io.Closer
	decoder *cbor.Decoder
}

// NewReader reads records from r.
func NewReader(r io.Reader) *Reader {
	rd := &Reader{r: r, decoder: newDecoder(r)}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// Open opens a capture file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture: %w", err)
	}
	return NewReader(f), nil
}

// Next returns the next record, or io.EOF after the last complete one.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.decoder.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("decoding capture record: %w", err)
	}
	return rec, nil
}

// ReadAll returns every remaining record.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
